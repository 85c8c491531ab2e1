package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SunAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daylightmatch_sunapi_calls_total",
			Help: "Total sunrise/sunset API requests, including retries",
		},
		[]string{"status"},
	)

	SunAPILatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "daylightmatch_sunapi_latency_seconds",
			Help:    "Sunrise/sunset API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	FetchFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "daylightmatch_fetch_failures_total",
			Help: "Dates that could not be fetched after retries",
		},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daylightmatch_cache_lookups_total",
			Help: "Per-run day record cache lookups",
		},
		[]string{"result"},
	)

	CandidatesExamined = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "daylightmatch_candidates_examined",
			Help: "Historical dates examined by the last search",
		},
	)

	BestDiffMinutes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "daylightmatch_best_diff_minutes",
			Help: "Day length difference of the best match in minutes, -1 when none",
		},
	)

	LastSuccessTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "daylightmatch_last_success_timestamp_seconds",
			Help: "Unix time of the last report written",
		},
	)
)

// WriteTextfile writes every registered metric to path in the text exposition
// format, for pickup by node_exporter's textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
