// Package telemetry provides the core's structured logging and metrics,
// grounded on wisbric-nightowl's internal/telemetry/metrics.go: package
// level prometheus collectors, registered once, named by the contract in
// spec §4.8.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

var (
	ProviderSelectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kari_llm_provider_selections_total",
			Help: "Total number of provider selection decisions.",
		},
		[]string{"provider", "policy", "result"},
	)

	ProviderFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kari_llm_provider_fallbacks_total",
			Help: "Total number of fallbacks from one provider to another.",
		},
		[]string{"from", "to", "reason"},
	)

	ProviderLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kari_llm_provider_latency_seconds",
			Help:    "Provider dispatch latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "policy"},
	)

	ProviderFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kari_llm_provider_failures_total",
			Help: "Total number of provider dispatch failures by error class.",
		},
		[]string{"provider", "error_type"},
	)

	MemoryStoreTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kari_memory_store_total",
			Help: "Total number of memory write operations.",
		},
	)

	MemoryRecallTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kari_memory_recall_total",
			Help: "Total number of memory recall operations.",
		},
	)

	MemoryRecallMissTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kari_memory_recall_miss_total",
			Help: "Total number of recalls that found nothing across every tier.",
		},
	)
)

// All returns every collector owned by this package, for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		ProviderSelectionsTotal,
		ProviderFallbacksTotal,
		ProviderLatencySeconds,
		ProviderFailuresTotal,
		MemoryStoreTotal,
		MemoryRecallTotal,
		MemoryRecallMissTotal,
	}
}

// Register registers every collector in All() against reg, silently
// skipping any that are already registered (collisions are de-duplicated
// per spec §4.8: "Metrics ... are registered once per process; collisions
// are de-duplicated").
func Register(reg *prometheus.Registry) {
	for _, c := range All() {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if isAlreadyRegistered(err, &already) {
				continue
			}
		}
	}
}

func isAlreadyRegistered(err error, target *prometheus.AlreadyRegisteredError) bool {
	are, ok := err.(prometheus.AlreadyRegisteredError)
	if ok {
		*target = are
		return true
	}
	return false
}
