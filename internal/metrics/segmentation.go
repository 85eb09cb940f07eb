package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Segmentation Prometheus metrics.
var (
	CriteriaEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tractseg",
			Name:      "criteria_evaluations_total",
			Help:      "Total number of criterion evaluations",
		},
		[]string{"kind", "status"},
	)

	CriteriaDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tractseg",
			Name:      "criteria_duration_seconds",
			Help:      "Criterion evaluation duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
		[]string{"kind"},
	)

	StreamlinesEvaluatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tractseg",
			Name:      "streamlines_evaluated_total",
			Help:      "Streamlines tested against a criterion",
		},
		[]string{"kind"},
	)

	StreamlinesPrunedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tractseg",
			Name:      "streamlines_pruned_total",
			Help:      "Streamlines rejected by the bounding-box test before any distance query",
		},
	)

	ConnectivityStreamlinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tractseg",
			Name:      "connectivity_streamlines_total",
			Help:      "Streamlines assigned to a connectivity bucket",
		},
		[]string{"labeled"}, // "both" / "one" / "none"
	)

	SegmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tractseg",
			Name:      "segments_total",
			Help:      "Recipe segments run",
		},
		[]string{"status"},
	)
)

var registerOnce sync.Once

// RegisterSegmentationMetrics registers the segmentation metrics on the
// default registry. Safe to call more than once.
func RegisterSegmentationMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(CriteriaEvaluationsTotal)
		prometheus.MustRegister(CriteriaDuration)
		prometheus.MustRegister(StreamlinesEvaluatedTotal)
		prometheus.MustRegister(StreamlinesPrunedTotal)
		prometheus.MustRegister(ConnectivityStreamlinesTotal)
		prometheus.MustRegister(SegmentsTotal)
	})
}

// ObserveCriterion records one evaluation pass of the given kind.
func ObserveCriterion(kind string, streamlines int, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	CriteriaEvaluationsTotal.WithLabelValues(kind, status).Inc()
	CriteriaDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err == nil {
		StreamlinesEvaluatedTotal.WithLabelValues(kind).Add(float64(streamlines))
	}
}
