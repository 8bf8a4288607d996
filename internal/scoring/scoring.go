// Package scoring turns evidence into a severity score and priority tier.
package scoring

import (
	"context"
	"math"
	"time"

	"cleancity/backend/internal/analysis"
	"cleancity/backend/internal/config"
	"cleancity/backend/internal/metrics"
	"cleancity/backend/internal/models"

	"go.uber.org/zap"
)

// HistoryCounter counts complaints created since a point in time inside a
// square of +/- delta degrees around (lat, lng).
type HistoryCounter interface {
	CountNearbySince(ctx context.Context, lat, lng, delta float64, since time.Time) (int64, error)
}

// Result is the outcome of scoring one submission.
type Result struct {
	Score        int
	Priority     models.Priority
	RepeatNearby int
}

// Engine scores evidence. History and Now are injected so tests can fix the
// snapshot the nearby scan sees.
type Engine struct {
	History        HistoryCounter
	Now            func() time.Time
	HistoryTimeout time.Duration
	Logger         *zap.Logger
}

// NewEngine returns an engine reading history from h with the wall clock.
func NewEngine(h HistoryCounter, historyTimeout time.Duration, logger *zap.Logger) *Engine {
	return &Engine{History: h, Now: time.Now, HistoryTimeout: historyTimeout, Logger: logger}
}

// Score applies the formula matching the evidence kind. It never fails.
func (e *Engine) Score(ctx context.Context, ev analysis.Evidence, loc models.Location) Result {
	switch ev := ev.(type) {
	case analysis.LabelObjectEvidence:
		repeat := e.repeatCount(ctx, loc)
		score := ScoreSignals(ev.Signals, repeat)
		return Result{Score: score, Priority: TierFor(score), RepeatNearby: repeat}
	case analysis.VerdictEvidence:
		score := ScoreVerdict(ev.Verdict)
		return Result{Score: score, Priority: TierFor(score)}
	default:
		return Result{Score: config.VerdictBaseline, Priority: models.PriorityMedium}
	}
}

// repeatCount reads nearby history. A failed or slow read counts as zero.
func (e *Engine) repeatCount(ctx context.Context, loc models.Location) int {
	if e.History == nil {
		return 0
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	if e.HistoryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.HistoryTimeout)
		defer cancel()
	}

	start := time.Now()
	n, err := e.History.CountNearbySince(ctx, loc.Lat, loc.Lng, config.NearbyDelta, now().Add(-config.NearbyWindow))
	metrics.UpstreamDuration.WithLabelValues("history").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamDegraded.WithLabelValues("history").Inc()
		if e.Logger != nil {
			e.Logger.Warn("Nearby history unavailable, scoring without repeat boost",
				zap.Float64("lat", loc.Lat), zap.Float64("lng", loc.Lng), zap.Error(err))
		}
		return 0
	}
	return int(n)
}

// ScoreSignals is the object/label formula. repeatCount is the number of
// recent complaints near the report.
func ScoreSignals(s analysis.Signals, repeatCount int) int {
	score := float64(min(s.ObjectCount*config.ObjectWeight, config.ObjectCap))
	if s.ObjectCount >= config.StrongObjectCount {
		score += config.StrongObjectBonus
	}
	score += s.Confidence * config.ConfidenceWeight
	score += float64(min(max(repeatCount, 0)*config.RepeatWeight, config.RepeatCap))

	if s.Confidence < config.WeakConfidence && score < config.WeakFloor {
		score = config.WeakFloor
	} else if score < config.DefaultFloor {
		score = config.DefaultFloor
	}

	final := min(int(math.Round(score)), 100)

	// Demote high scores that lack corroborating objects.
	if final >= config.GuardMinScore && s.ObjectCount < config.GuardMinObjects && s.Confidence < config.GuardMinConfidence {
		final = min(final, config.GuardCap)
	}
	return final
}

// ScoreVerdict is the AI-verdict formula. A nil verdict scores the civic baseline.
// The corroboration guard of ScoreSignals is not applied here.
func ScoreVerdict(v *analysis.AIVerdict) int {
	score := config.VerdictBaseline
	if v != nil {
		if v.Confidence >= config.VerdictConfidentAt {
			if v.IsPublicGarbage {
				score += config.VerdictGarbageBonus
			} else {
				score -= config.VerdictNotGarbagePenalty
			}
		}
		switch v.Severity {
		case analysis.VerdictHigh:
			score += config.VerdictSeverityStep
		case analysis.VerdictLow:
			score -= config.VerdictSeverityStep
		}
	}
	return min(max(score, config.VerdictMinScore), 100)
}

// TierFor maps a score to its priority tier.
func TierFor(score int) models.Priority {
	switch {
	case score >= config.CriticalThreshold:
		return models.PriorityCritical
	case score >= config.HighThreshold:
		return models.PriorityHigh
	case score >= config.MediumThreshold:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}
