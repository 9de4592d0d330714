package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pario-ai/skillgate/pkg/models"
)

// Metrics holds Prometheus collectors for orchestration outcomes.
type Metrics struct {
	Executions *prometheus.CounterVec
	Confidence prometheus.Histogram
}

// NewMetrics creates the orchestrator collectors and registers them on reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Executions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "skillgate_orchestrator_executions_total",
			Help: "Orchestrations by terminal status",
		}, []string{"status"}),
		Confidence: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "skillgate_orchestrator_confidence",
			Help:    "Confidence computed for admitted and rejected queries",
			Buckets: []float64{0.2, 0.4, 0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 1},
		}),
	}
}

func (m *Metrics) observe(r models.ExecutionResult) {
	if m == nil {
		return
	}
	m.Executions.WithLabelValues(string(r.Status)).Inc()
	if !r.CacheHit {
		m.Confidence.Observe(r.Confidence)
	}
}
