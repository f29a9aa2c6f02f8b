package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WebhookEventsTotal counts verified provider deliveries by event type and outcome.
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartlinks",
		Subsystem: "billing",
		Name:      "webhook_events_total",
		Help:      "Verified payment webhook deliveries by event type and outcome.",
	}, []string{"event_type", "outcome"})

	// WebhookRejectedTotal counts deliveries rejected before dispatch.
	WebhookRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartlinks",
		Subsystem: "billing",
		Name:      "webhook_rejected_total",
		Help:      "Payment webhook deliveries rejected before dispatch.",
	}, []string{"reason"})

	// EntitlementDecisionsTotal counts access gate decisions.
	EntitlementDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartlinks",
		Subsystem: "billing",
		Name:      "entitlement_decisions_total",
		Help:      "Access gate decisions by result and reason.",
	}, []string{"decision", "reason"})

	// TransitionsTotal counts billing state writes by transition.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartlinks",
		Subsystem: "billing",
		Name:      "transitions_total",
		Help:      "Billing transitions by name and result (applied, noop, conflict).",
	}, []string{"transition", "result"})

	// ProviderRequestDuration tracks payment provider call latency.
	ProviderRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "smartlinks",
		Subsystem: "billing",
		Name:      "provider_request_duration_seconds",
		Help:      "Payment provider call duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "result"})
)

// Handler exposes the default registry in Prometheus text format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
