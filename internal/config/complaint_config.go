package config

import "time"

const (
	// Evidence fusion
	FallbackConfidence     = 0.3
	StrongObjectCount      = 3
	StrongSignalConfidence = 0.8

	// Object/label formula
	ObjectWeight       = 15
	ObjectCap          = 45
	StrongObjectBonus  = 15
	ConfidenceWeight   = 80
	RepeatWeight       = 5
	RepeatCap          = 20
	NearbyDelta        = 0.005
	NearbyWindow       = 7 * 24 * time.Hour
	WeakConfidence     = 0.25
	WeakFloor          = 20
	DefaultFloor       = 40
	GuardMinScore      = 60
	GuardMinObjects    = 2
	GuardMinConfidence = 0.6
	GuardCap           = 55

	// AI-verdict formula
	VerdictBaseline          = 40
	VerdictConfidentAt       = 0.75
	VerdictGarbageBonus      = 20
	VerdictNotGarbagePenalty = 15
	VerdictSeverityStep      = 10
	VerdictMinScore          = 20

	// Tiers
	CriticalThreshold = 80
	HighThreshold     = 60
	MediumThreshold   = 40

	// Listing
	AdminListLimit = 50
)

// GarbageKeywords match label text (lowercased, substring).
var GarbageKeywords = []string{
	"garbage",
	"trash",
	"waste",
	"dump",
	"dumping",
	"litter",
	"plastic",
	"pollution",
	"rubbish",
	"refuse",
	"landfill",
	"junk",
	"scrap",
	"debris",
}

// GarbageObjectTerms match detected object names (lowercased, substring).
var GarbageObjectTerms = []string{"plastic", "bag", "bottle", "waste", "container"}
