package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheRequestsTotal, cacheEvictionsTotal) }

var cacheRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cache_requests_total",
		Help: "Tracks cache hits and misses for various caches.",
	},
	[]string{"cache", "result"}, // e.g., cache="job", result="hit"
)

var cacheEvictionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cache_evictions_total",
		Help: "Entries removed from a cache by the TTL sweep.",
	},
	[]string{"cache"},
)

func IncCacheRequest(cacheName, result string) {
	cacheRequestsTotal.WithLabelValues(norm(cacheName), norm(result)).Inc()
}

func AddCacheEvictions(cacheName string, n int) {
	cacheEvictionsTotal.WithLabelValues(norm(cacheName)).Add(float64(n))
}
