// Package metrics holds the Prometheus collectors of the service
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "plzdm"

var (
	// WebhookEventsTotal counts Stripe webhook deliveries by event type and outcome
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "webhook_events_total",
		Help:      "Stripe webhook deliveries by event type and outcome.",
	}, []string{"event_type", "outcome"})

	// WebhookDuration tracks webhook processing latency
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "webhook_duration_seconds",
		Help:      "Stripe webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// DispatchTotal counts welcome message dispatch attempts by outcome
	DispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "welcome_messages_total",
		Help:      "Welcome message dispatch attempts by outcome.",
	}, []string{"outcome"})

	// ThrottledTotal counts requests rejected by the per-user throttle
	ThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "throttled_requests_total",
		Help:      "Requests rejected by the per-user throttle.",
	})
)

// outcome labels
const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"

	OutcomeSent        = "sent"
	OutcomeRateLimited = "rate_limited"
	OutcomeAPIError    = "api_error"
	OutcomeTransport   = "transport_error"
)
