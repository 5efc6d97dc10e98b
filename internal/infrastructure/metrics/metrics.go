package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// AnalysesTotal counts pipeline runs by outcome ("success" or an error kind).
	AnalysesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toxiscan",
		Subsystem: "pipeline",
		Name:      "analyses_total",
		Help:      "Total number of label analyses, labeled by result.",
	}, []string{"result"})

	// StageDurationSeconds is time spent per pipeline stage.
	StageDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "toxiscan",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Time spent in each analysis pipeline stage.",
		Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60},
	}, []string{"stage"})

	// InferenceRequestsTotal counts calls to the inference endpoint.
	InferenceRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toxiscan",
		Subsystem: "inference",
		Name:      "requests_total",
		Help:      "Total number of inference requests, labeled by operation and result.",
	}, []string{"operation", "result"})

	// HazardCatalogLookupsTotal counts hazard reference loads by source.
	HazardCatalogLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toxiscan",
		Subsystem: "hazards",
		Name:      "catalog_lookups_total",
		Help:      "Hazard reference set loads, labeled by result (hit, miss, cache_error).",
	}, []string{"result"})

	// FlaggedIngredients observes how many ingredients each analysis flagged.
	FlaggedIngredients = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "toxiscan",
		Subsystem: "pipeline",
		Name:      "flagged_ingredients",
		Help:      "Number of flagged ingredients per successful analysis.",
		Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
	})

	// EventPublishErrorsTotal counts failed analysis.completed publications.
	EventPublishErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "toxiscan",
		Subsystem: "events",
		Name:      "publish_errors_total",
		Help:      "Total number of analysis.completed events that could not be published.",
	})
)

// Register registers pipeline metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			AnalysesTotal,
			StageDurationSeconds,
			InferenceRequestsTotal,
			HazardCatalogLookupsTotal,
			FlaggedIngredients,
			EventPublishErrorsTotal,
		)
	})
}
