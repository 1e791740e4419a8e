package service

import (
	"github.com/Arsyadam/bhawikarsu-store/pkg/metrics"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	charges     *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

func NewMetrics(registry *metrics.Registry) *Metrics {
	m := &Metrics{
		charges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "b96",
			Name:      "order_charges_total",
			Help:      "QRIS charge attempts by result.",
		}, []string{"result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "b96",
			Name:      "order_status_transitions_total",
			Help:      "Order status transitions by source and target status.",
		}, []string{"from", "to"}),
	}

	registry.MustRegister(m.charges, m.transitions)

	return m
}

func (m *Metrics) charge(result string) {
	if m == nil {
		return
	}

	m.charges.WithLabelValues(result).Inc()
}

func (m *Metrics) transition(from, to domain.OrderStatus) {
	if m == nil {
		return
	}

	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}
