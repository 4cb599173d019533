package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the retrieval pipeline and the reaction machine. Registered
// on the default registry, served by the /metrics server in this package.
var (
	ResultCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallcast_result_cache_hits_total",
		Help: "Tag-result lookups answered from the cache.",
	})

	ResultCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallcast_result_cache_misses_total",
		Help: "Tag-result lookups that fell through to the upstream API.",
	})

	UpstreamFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallcast_upstream_fetches_total",
		Help: "Upstream posts API fetches by outcome.",
	}, []string{"outcome"})

	ReactionsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallcast_reactions_processed_total",
		Help: "Reaction events processed by kind.",
	}, []string{"kind"})

	BroadcastsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallcast_link_broadcasts_total",
		Help: "Link update payloads published to the broadcast transport.",
	})
)
