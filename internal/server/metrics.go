package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry *prometheus.Registry

	assignments prometheus.Counter
	actions     *prometheus.CounterVec
	conversions prometheus.Counter
	signups     prometheus.Counter
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &metrics{
		registry: reg,
		assignments: factory.NewCounter(prometheus.CounterOpts{
			Name: "imperius_assignments_total",
			Help: "Variant assignments created.",
		}),
		actions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "imperius_lead_actions_total",
			Help: "Lead actions recorded, by action type.",
		}, []string{"action_type"}),
		conversions: factory.NewCounter(prometheus.CounterOpts{
			Name: "imperius_conversions_total",
			Help: "Conversion events recorded.",
		}),
		signups: factory.NewCounter(prometheus.CounterOpts{
			Name: "imperius_waitlist_signups_total",
			Help: "Waitlist signups accepted.",
		}),
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
