package memcache

import "github.com/prometheus/client_golang/prometheus"

var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "client_cache_hits_total",
		Help: "The total number of cache reads served from memory",
	})

	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "client_cache_misses_total",
		Help: "The total number of cache reads that found no live entry",
	})

	cacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "client_cache_evictions_total",
		Help: "The total number of entries evicted to stay within capacity",
	})

	cacheExpirations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "client_cache_expirations_total",
		Help: "The total number of entries purged after their TTL elapsed",
	})
)

func init() {
	prometheus.MustRegister(cacheHits, cacheMisses, cacheEvictions, cacheExpirations)
}
