// Package metrics provides Prometheus metrics for the addon engine.
// Labels stay low-cardinality: no addon urls, content ids or stream urls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeOK      = "ok"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

var (
	// AddonRequestsTotal counts addon calls by resource and outcome.
	AddonRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "addonx_addon_requests_total",
		Help: "Total number of addon resource requests, by resource and outcome.",
	}, []string{"resource", "outcome"})

	AddonRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "addonx_addon_request_duration_seconds",
		Help:    "Duration of addon resource requests, by resource.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
	}, []string{"resource"})

	// StreamCacheTotal counts result cache lookups.
	StreamCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "addonx_stream_cache_total",
		Help: "Total number of stream result cache lookups, by result (hit/miss/shared).",
	}, []string{"result"})

	// StreamsNormalizedTotal counts provider streams by normalizer verdict.
	StreamsNormalizedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "addonx_streams_normalized_total",
		Help: "Total number of provider streams seen by the normalizer, by verdict.",
	}, []string{"verdict"})

	FanOutDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "addonx_fanout_duration_seconds",
		Help:    "Wall clock duration of a full fan-out, by content type.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 8},
	}, []string{"type"})

	// PlaybackResolveTotal counts playback resolutions by outcome.
	PlaybackResolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "addonx_playback_resolve_total",
		Help: "Total number of playback resolutions, by outcome.",
	}, []string{"outcome"})

	// ReachabilityProbeTotal counts reachability verdicts, including memoized ones.
	ReachabilityProbeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "addonx_reachability_probe_total",
		Help: "Total number of reachability probes, by verdict and whether it was memoized.",
	}, []string{"verdict", "memoized"})
)

// ObserveAddonRequest records one addon call.
func ObserveAddonRequest(resource, outcome string, elapsed time.Duration) {
	AddonRequestsTotal.WithLabelValues(resource, outcome).Inc()
	AddonRequestDuration.WithLabelValues(resource).Observe(elapsed.Seconds())
}

func RecordCacheLookup(result string) {
	StreamCacheTotal.WithLabelValues(result).Inc()
}

func RecordNormalized(verdict string) {
	StreamsNormalizedTotal.WithLabelValues(verdict).Inc()
}

func ObserveFanOut(contentType string, elapsed time.Duration) {
	FanOutDuration.WithLabelValues(contentType).Observe(elapsed.Seconds())
}

func RecordPlaybackResolve(outcome string) {
	PlaybackResolveTotal.WithLabelValues(outcome).Inc()
}

func RecordProbe(reachable, memoized bool) {
	verdict := "unreachable"
	if reachable {
		verdict = "reachable"
	}
	cached := "false"
	if memoized {
		cached = "true"
	}
	ReachabilityProbeTotal.WithLabelValues(verdict, cached).Inc()
}
