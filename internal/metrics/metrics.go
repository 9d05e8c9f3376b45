package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Metrics holds the gateway's prometheus collectors.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	RateLimitAllowed  *prometheus.CounterVec
	RateLimitDenied   *prometheus.CounterVec
	EventsIngested    *prometheus.CounterVec
	WebhookDeliveries *prometheus.CounterVec
	SchedulerJobRuns  *prometheus.CounterVec
	SchedulerJobFails *prometheus.CounterVec
}

// New registers the gateway collectors on the default registry.
func New() *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "affcd_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		RateLimitAllowed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "affcd_rate_limit_allowed_total",
			Help: "Requests allowed by the rate limiter.",
		}, []string{"action"}),
		RateLimitDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "affcd_rate_limit_denied_total",
			Help: "Requests denied by the rate limiter.",
		}, []string{"action"}),
		EventsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "affcd_events_ingested_total",
			Help: "Usage events accepted by type.",
		}, []string{"event_type"}),
		WebhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "affcd_webhook_deliveries_total",
			Help: "Outbound webhook deliveries by result.",
		}, []string{"result"}),
		SchedulerJobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "affcd_scheduler_job_runs_total",
			Help: "Scheduler job executions.",
		}, []string{"job"}),
		SchedulerJobFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "affcd_scheduler_job_failures_total",
			Help: "Scheduler job failures.",
		}, []string{"job"}),
	}

	prometheus.MustRegister(
		m.RequestsTotal,
		m.RateLimitAllowed,
		m.RateLimitDenied,
		m.EventsIngested,
		m.WebhookDeliveries,
		m.SchedulerJobRuns,
		m.SchedulerJobFails,
	)

	return m
}

// Module provides the metrics collectors.
var Module = fx.Module("metrics",
	fx.Provide(New),
)
