package gate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — Observer, который пишет решения гейтов в Prometheus.
type Metrics struct {
	// Traffic: решения по гейтам с разбивкой по причине
	Decisions *prometheus.CounterVec

	// Errors: получатель без нужного атрибута
	AttributeErrors *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		Decisions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "condgate_decisions_total",
			Help: "Total number of gate decisions by reason.",
		}, []string{"gate", "reason"}),

		AttributeErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "condgate_attribute_errors_total",
			Help: "Total number of calls failed because the receiver lacks the gate attribute.",
		}, []string{"gate"}),
	}
}

func (m *Metrics) ObserveDecision(d Decision) {
	m.Decisions.WithLabelValues(d.Gate, string(d.Reason)).Inc()
}

func (m *Metrics) ObserveError(gate string, _ error) {
	m.AttributeErrors.WithLabelValues(gate).Inc()
}
