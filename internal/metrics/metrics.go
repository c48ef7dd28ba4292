// Package metrics exposes the Prometheus counters the runtime updates
// during operation:
//   - nanotrader_ticks_total{symbol}: ticks processed
//   - nanotrader_orders_total{side}: orders submitted
//   - nanotrader_cancels_total: cancel requests issued
//   - nanotrader_decisions_total{rule}: rule firings (buy-1, hold-1, ...)
//   - nanotrader_net_position: current signed net position
//
// Registered in init() and served by the HTTP handler started in main at
// /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ticksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nanotrader_ticks_total",
			Help: "Ticks processed",
		},
		[]string{"symbol"},
	)

	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nanotrader_orders_total",
			Help: "Orders submitted",
		},
		[]string{"side"},
	)

	cancelsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nanotrader_cancels_total",
			Help: "Cancel requests issued",
		},
	)

	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nanotrader_decisions_total",
			Help: "Strategy rule firings",
		},
		[]string{"rule"},
	)

	netPosition = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nanotrader_net_position",
			Help: "Current signed net position",
		},
	)
)

func init() {
	prometheus.MustRegister(ticksTotal, ordersTotal, cancelsTotal, decisionsTotal, netPosition)
}

func IncTick(symbol string) { ticksTotal.WithLabelValues(symbol).Inc() }

func IncOrder(side string) { ordersTotal.WithLabelValues(side).Inc() }

func IncCancel() { cancelsTotal.Inc() }

func IncDecision(rule string) { decisionsTotal.WithLabelValues(rule).Inc() }

func SetNetPosition(net float64) { netPosition.Set(net) }
