package tools

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pario-ai/skillgate/pkg/models"
)

// Metrics counts tool call state transitions.
type Metrics struct {
	Calls *prometheus.CounterVec
}

// NewMetrics creates the tool collectors and registers them on reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Calls: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "skillgate_tool_calls_total",
			Help: "Tool calls by tool and resulting status",
		}, []string{"tool", "status"}),
	}
}

func (m *Metrics) observe(c *models.ToolCall) {
	if m != nil {
		m.Calls.WithLabelValues(c.ToolName, string(c.Status)).Inc()
	}
}
