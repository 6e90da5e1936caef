package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "flipbot_signals_total", Help: "Webhook signals received"},
		[]string{"outcome"}, // accepted | rejected | unauthorized
	)
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "flipbot_decisions_total", Help: "Rotation decisions by action"},
		[]string{"action"}, // open | rotate | ignore
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "flipbot_orders_total", Help: "Order placements by result"},
		[]string{"instrument", "result"}, // placed | rejected | unreachable
	)
	ExchangeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flipbot_exchange_call_seconds",
			Help:    "Exchange REST call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(SignalsTotal, DecisionsTotal, OrdersTotal, ExchangeLatency)
}
