// Package metrics provides Prometheus metrics for ddnsweaver.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "ddnsweaver"

// Result label values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Pass mode label values.
const (
	ModeOneShot   = "oneshot"
	ModeScheduled = "scheduled"
)

// IP resolution source label values.
const (
	SourceCache  = "cache"
	SourceRemote = "remote"
)

var (
	// BuildInfo exposes the running version as labels on a constant gauge.
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "build_info",
		Help:      "Build information about the running binary.",
	}, []string{"version", "go_version"})

	// RecordSyncsTotal counts per-family reconciliations.
	RecordSyncsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "record_syncs_total",
		Help:      "Record reconciliations by record name, family, action and result.",
	}, []string{"record", "family", "action", "result"})

	// RecordSyncDuration observes the wall time of one record sync across all its families.
	RecordSyncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "record_sync_duration_seconds",
		Help:      "Duration of a record sync across all configured families.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"record"})

	// PassesTotal counts full reconciliation passes (one-shot runs or scheduler ticks).
	PassesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "passes_total",
		Help:      "Reconciliation passes by result.",
	}, []string{"mode", "result"})

	// ProviderAPIRequestsTotal counts remote provider calls.
	ProviderAPIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "provider_api_requests_total",
		Help:      "Provider API requests by provider, operation and result.",
	}, []string{"provider", "operation", "result"})

	// ProviderAPIDuration observes remote provider call latency.
	ProviderAPIDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "provider_api_duration_seconds",
		Help:      "Provider API request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider", "operation"})

	// IPResolutionsTotal counts public IP lookups by where the answer came from.
	IPResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "ip_resolutions_total",
		Help:      "Public IP resolutions by strategy, family, source and result.",
	}, []string{"strategy", "family", "source", "result"})

	// ScheduledJobs reports how many record jobs the scheduler owns.
	ScheduledJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "scheduled_jobs",
		Help:      "Number of record jobs registered with the scheduler.",
	})
)

// SetBuildInfo records version information.
func SetBuildInfo(version, goVersion string) {
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}

// Result maps an error to a result label value.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
