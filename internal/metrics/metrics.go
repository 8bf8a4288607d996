package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ComplaintsSubmitted counts accepted submissions by priority tier.
	ComplaintsSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cleancity",
		Subsystem: "complaints",
		Name:      "submitted_total",
		Help:      "Total number of complaints accepted, labeled by priority tier.",
	}, []string{"priority", "pipeline"})

	// SeverityScore observes the final severity score of each new complaint.
	SeverityScore = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cleancity",
		Subsystem: "complaints",
		Name:      "severity_score",
		Help:      "Severity score assigned at creation.",
		Buckets:   []float64{20, 30, 40, 50, 55, 60, 70, 80, 90, 100},
	}, []string{"pipeline"})

	// Transitions counts lifecycle transition attempts by outcome.
	Transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cleancity",
		Subsystem: "lifecycle",
		Name:      "transitions_total",
		Help:      "Lifecycle transition requests, labeled by operation and result.",
	}, []string{"operation", "result"})

	// UpstreamDegraded counts collaborator failures absorbed by fallback policy.
	UpstreamDegraded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cleancity",
		Subsystem: "upstream",
		Name:      "degraded_total",
		Help:      "External collaborator failures that were absorbed instead of surfaced.",
	}, []string{"collaborator"})

	// UpstreamDuration is the wall time of each outbound collaborator call.
	UpstreamDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cleancity",
		Subsystem: "upstream",
		Name:      "call_duration_seconds",
		Help:      "Duration of outbound collaborator calls.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"collaborator"})

	// EventSubscribers is the number of connected live event subscribers.
	EventSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cleancity",
		Subsystem: "events",
		Name:      "subscribers",
		Help:      "Currently connected websocket event subscribers.",
	})
)

// Register registers service metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ComplaintsSubmitted,
			SeverityScore,
			Transitions,
			UpstreamDegraded,
			UpstreamDuration,
			EventSubscribers,
		)
	})
}
