// Package metrics provides Prometheus metrics for aliddns.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "aliddns"

var (
	// BuildInfo is always 1, labelled with the running version.
	BuildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "build_info",
			Help:      "Build information, value is always 1.",
		},
		[]string{"version", "go_version"},
	)

	// ReconciliationsTotal counts update cycles by outcome (success, error).
	ReconciliationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "reconciliations_total",
			Help:      "Total number of update cycles by status.",
		},
		[]string{"status"},
	)

	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "reconciliation_duration_seconds",
			Help:      "Duration of update cycles.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	LastSuccessTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last cycle that finished without error.",
		},
	)

	HostnamesManaged = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "hostnames_managed",
			Help:      "Number of hostnames kept up to date.",
		},
	)

	RecordsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "records_created_total",
			Help:      "Total number of records created.",
		},
		[]string{"type"},
	)

	RecordsUpdatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "records_updated_total",
			Help:      "Total number of record values rewritten.",
		},
		[]string{"type"},
	)

	RecordsEnabledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "records_enabled_total",
			Help:      "Total number of disabled records switched back on.",
		},
	)

	RecordsSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "records_skipped_total",
			Help:      "Total number of records left untouched, by reason.",
		},
		[]string{"reason"},
	)

	RecordsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "records_failed_total",
			Help:      "Total number of failed record operations.",
		},
		[]string{"type", "operation"},
	)

	ProviderAPIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "provider_api_requests_total",
			Help:      "Total number of DNS API calls by action and status.",
		},
		[]string{"action", "status"},
	)

	ProviderAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "provider_api_duration_seconds",
			Help:      "Duration of DNS API calls.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	ProviderHealthy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "provider_healthy",
			Help:      "1 if the last readiness ping to the DNS API succeeded.",
		},
	)

	// PublicAddress is 1 for the currently discovered address of each family.
	PublicAddress = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "public_address_info",
			Help:      "Currently discovered public address, value is always 1.",
		},
		[]string{"family", "address"},
	)

	IPv6Available = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "ipv6_available",
			Help:      "1 if the last discovery found a public IPv6 address.",
		},
	)

	DiscoveryFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "discovery_failures_total",
			Help:      "Total number of failed public address lookups by family.",
		},
		[]string{"family"},
	)
)

func init() {
	prometheus.MustRegister(
		BuildInfo,
		ReconciliationsTotal,
		ReconciliationDuration,
		LastSuccessTimestamp,
		HostnamesManaged,
		RecordsCreatedTotal,
		RecordsUpdatedTotal,
		RecordsEnabledTotal,
		RecordsSkippedTotal,
		RecordsFailedTotal,
		ProviderAPIRequestsTotal,
		ProviderAPIDuration,
		ProviderHealthy,
		PublicAddress,
		IPv6Available,
		DiscoveryFailuresTotal,
	)
}

// SetBuildInfo publishes the build information gauge.
func SetBuildInfo(version, goVersion string) {
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}

// SetPublicAddress replaces the published address for family ("ipv4" or "ipv6").
// An empty address clears it.
func SetPublicAddress(family, address string) {
	PublicAddress.DeletePartialMatch(prometheus.Labels{"family": family})
	if address != "" {
		PublicAddress.WithLabelValues(family, address).Set(1)
	}
}

// BoolToFloat converts a bool to 1 or 0 for gauges.
func BoolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
