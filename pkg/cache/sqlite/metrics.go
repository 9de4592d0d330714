package sqlite

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pario-ai/skillgate/pkg/models"
)

// Metrics holds Prometheus collectors for the fingerprint cache.
//
//   - skillgate_cache_hits_total
//   - skillgate_cache_misses_total
//   - skillgate_cache_sets_total{category}
//   - skillgate_cache_expired_total
type Metrics struct {
	Hits    prometheus.Counter
	Misses  prometheus.Counter
	Sets    *prometheus.CounterVec
	Expired prometheus.Counter
}

// NewMetrics creates the cache collectors and registers them on reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Hits: f.NewCounter(prometheus.CounterOpts{
			Name: "skillgate_cache_hits_total",
			Help: "Cache lookups that returned a live entry",
		}),
		Misses: f.NewCounter(prometheus.CounterOpts{
			Name: "skillgate_cache_misses_total",
			Help: "Cache lookups that found nothing or an expired entry",
		}),
		Sets: f.NewCounterVec(prometheus.CounterOpts{
			Name: "skillgate_cache_sets_total",
			Help: "Cache writes by category",
		}, []string{"category"}),
		Expired: f.NewCounter(prometheus.CounterOpts{
			Name: "skillgate_cache_expired_total",
			Help: "Entries removed because their TTL passed",
		}),
	}
}

func (m *Metrics) hit() {
	if m != nil {
		m.Hits.Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.Misses.Inc()
	}
}

func (m *Metrics) set(c models.CacheCategory) {
	if m != nil {
		m.Sets.WithLabelValues(string(c)).Inc()
	}
}

func (m *Metrics) expired(n int64) {
	if m != nil && n > 0 {
		m.Expired.Add(float64(n))
	}
}
