package snapshot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upstreamFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsnap_upstream_fetch_total",
		Help: "Snapshot fetches from upstream by result",
	}, []string{"result"})

	upstreamFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedsnap_upstream_fetch_duration_seconds",
		Help:    "Duration of snapshot fetches from upstream",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms up to ~5s
	})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsnap_snapshot_cache_lookups_total",
		Help: "Snapshot cache lookups by outcome",
	}, []string{"outcome"})
)
