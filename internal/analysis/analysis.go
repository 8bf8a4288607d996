// Package analysis turns raw perception output into the evidence the scoring
// engine consumes. Two mutually exclusive pipelines exist: label/object
// detections fused into Signals, and a single structured AI verdict.
package analysis

import (
	"strings"

	"cleancity/backend/internal/config"
	"cleancity/backend/internal/models"
)

// Annotation is one detector hit: a label or an object name with its score in [0,1].
type Annotation struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Detections is the raw output of the label/object detector. Both sets are unordered.
type Detections struct {
	Labels  []Annotation `json:"labels"`
	Objects []Annotation `json:"objects"`
}

// Signals is the normalized result of fusing Detections.
type Signals struct {
	Confidence    float64 `json:"confidence"`
	ObjectCount   int     `json:"object_count"`
	PersonPresent bool    `json:"person_present"`
}

// Fuse reduces detections to Signals and returns the label texts that matched a
// garbage keyword. An empty detection set yields the weak 0.3 baseline.
func Fuse(d Detections) (Signals, []string) {
	var s Signals
	var matched []string

	for _, label := range d.Labels {
		desc := strings.ToLower(label.Name)
		if containsAny(desc, config.GarbageKeywords) {
			s.Confidence = max(s.Confidence, label.Score)
			matched = append(matched, desc)
		}
		if strings.Contains(desc, "person") || strings.Contains(desc, "face") {
			s.PersonPresent = true
		}
	}

	for _, obj := range d.Objects {
		name := strings.ToLower(obj.Name)
		if containsAny(name, config.GarbageObjectTerms) {
			s.ObjectCount++
		}
		if strings.Contains(name, "person") {
			s.PersonPresent = true
		}
	}

	if s.Confidence == 0 && s.ObjectCount == 0 && !s.PersonPresent {
		s.Confidence = config.FallbackConfidence
	}
	if s.ObjectCount >= config.StrongObjectCount {
		s.Confidence = max(s.Confidence, config.StrongSignalConfidence)
	}
	return s, matched
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// VerdictSeverity is the reasoning model's own severity estimate.
type VerdictSeverity string

const (
	VerdictLow    VerdictSeverity = "LOW"
	VerdictMedium VerdictSeverity = "MEDIUM"
	VerdictHigh   VerdictSeverity = "HIGH"
)

// AIVerdict is the structured answer of the reasoning model.
type AIVerdict struct {
	IsPublicGarbage bool            `json:"isPublicGarbage"`
	Confidence      float64         `json:"confidence"`
	Severity        VerdictSeverity `json:"severity"`
	Reason          string          `json:"reason"`
}

// Evidence is what a pipeline hands to the scoring engine. It is one of
// LabelObjectEvidence or VerdictEvidence.
type Evidence interface {
	Pipeline() string
	Summary() models.EvidenceSummary
	isEvidence()
}

// LabelObjectEvidence is produced by the detector pipeline.
type LabelObjectEvidence struct {
	Signals       Signals
	MatchedLabels []string
}

func (LabelObjectEvidence) Pipeline() string { return config.PipelineLabelObject }
func (LabelObjectEvidence) isEvidence()      {}

func (e LabelObjectEvidence) Summary() models.EvidenceSummary {
	return models.EvidenceSummary{
		Pipeline:      config.PipelineLabelObject,
		Confidence:    e.Signals.Confidence,
		ObjectCount:   e.Signals.ObjectCount,
		PersonPresent: e.Signals.PersonPresent,
	}
}

// VerdictEvidence is produced by the reasoning-model pipeline. A nil Verdict
// means no AI opinion was available.
type VerdictEvidence struct {
	Verdict *AIVerdict
	Model   string
}

func (VerdictEvidence) Pipeline() string { return config.PipelineAIVerdict }
func (VerdictEvidence) isEvidence()      {}

func (e VerdictEvidence) Summary() models.EvidenceSummary {
	s := models.EvidenceSummary{Pipeline: config.PipelineAIVerdict, Model: e.Model}
	if e.Verdict == nil {
		s.Reason = "no AI verdict available"
		return s
	}
	garbage := e.Verdict.IsPublicGarbage
	s.IsPublicGarbage = &garbage
	s.Confidence = e.Verdict.Confidence
	s.Severity = string(e.Verdict.Severity)
	s.Reason = e.Verdict.Reason
	return s
}
