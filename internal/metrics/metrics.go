package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reduction outcomes.
const (
	OutcomeOK                 = "ok"
	OutcomeNoValidPixels      = "no_valid_pixels"
	OutcomeMalformedTimestamp = "malformed_timestamp"
	OutcomeError              = "error"
	OutcomeAbandoned          = "abandoned"
)

var (
	ReductionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basinseries_reductions_total",
			Help: "Per-image region reductions by outcome",
		},
		[]string{"variable", "outcome"},
	)

	ReductionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "basinseries_reduction_latency_seconds",
			Help:    "Time to reduce one image over the area of interest",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"variable"},
	)

	SeriesLength = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "basinseries_series_observations",
			Help: "Observations in the most recently built series",
		},
		[]string{"variable"},
	)

	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basinseries_fetches_total",
			Help: "Raster fetches by source scheme and status",
		},
		[]string{"scheme", "status"},
	)

	FetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "basinseries_fetch_latency_seconds",
			Help:    "Raster fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"scheme"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basinseries_raster_cache_lookups_total",
			Help: "Raster cache lookups by result",
		},
		[]string{"result"},
	)
)
