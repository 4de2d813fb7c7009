// Package metrics holds Prometheus instruments that are used across the
// service.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CachedProfiles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "profile_cache_entries",
			Help: "Number of profile entries (including not-found tombstones) held in memory.",
		})

	ProfileCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "profile_cache_hits_total",
			Help: "Cumulative number of profile lookups served from memory.",
		})

	ProfileCacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "profile_cache_misses_total",
			Help: "Cumulative number of profile lookups that went to the remote store.",
		})

	ProfileFetchErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "profile_fetch_errors_total",
			Help: "Cumulative number of remote store fetches that failed.",
		})

	ProfileEvictTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "profile_cache_evict_total",
			Help: "Cumulative number of profile entries evicted or invalidated.",
		})

	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_transitions_total",
			Help: "Verification state transitions by action and result.",
		}, []string{"action", "result"})
)

func init() {
	prometheus.MustRegister(
		CachedProfiles,
		ProfileCacheHitsTotal,
		ProfileCacheMissesTotal,
		ProfileFetchErrorsTotal,
		ProfileEvictTotal,
		TransitionsTotal,
	)
}
