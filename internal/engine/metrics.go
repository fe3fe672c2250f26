package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исход гейтированного вызова
const (
	OutcomeCalled     = "called"
	OutcomeSuppressed = "suppressed"
	OutcomeError      = "error"
)

type Metrics struct {
	// Latency: сколько времени заняла обработка (включая обернутый хендлер)
	RequestDuration *prometheus.HistogramVec

	// Traffic: кол-во вызовов по исходу
	Requests *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "condgate_request_duration_seconds",
			Help:    "Histogram of gated request latencies.",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"transport", "rule", "outcome"}),

		Requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "condgate_requests_total",
			Help: "Total number of gated requests by outcome.",
		}, []string{"transport", "rule", "outcome"}),
	}
}

func (m *Metrics) observe(transport, rule, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(transport, rule, outcome).Inc()
	m.RequestDuration.WithLabelValues(transport, rule, outcome).Observe(time.Since(start).Seconds())
}
