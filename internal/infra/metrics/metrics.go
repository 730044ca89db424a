package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the operational counters of the bot.
type Metrics struct {
	TicketsCreated  prometheus.Counter
	TicketsClosed   prometheus.Counter
	TicketsReopened prometheus.Counter
	NotifyFailures  prometheus.Counter
}

// New creates and registers the bot counters on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TicketsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "helpdesk_tickets_created_total", Help: "Tickets created."},
		),
		TicketsClosed: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "helpdesk_tickets_closed_total", Help: "Tickets closed."},
		),
		TicketsReopened: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "helpdesk_tickets_reopened_total", Help: "Closed tickets reopened by a substantive user reply."},
		),
		NotifyFailures: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "helpdesk_notify_failures_total", Help: "Outbound notification sends that failed."},
		),
	}
	reg.MustRegister(m.TicketsCreated, m.TicketsClosed, m.TicketsReopened, m.NotifyFailures)
	return m
}

// Handler returns the /metrics HTTP handler for the given registry.
func Handler(reg *prometheus.Registry) http.Handler {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
