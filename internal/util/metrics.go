package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Total number of webhook events received, by event type",
	}, []string{"type"})

	WebhookEventsUnhandledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_unhandled_total",
		Help: "Total number of webhook events with no registered handler",
	}, []string{"type"})

	WebhookEventsDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_events_duplicate_total",
		Help: "Total number of webhook deliveries skipped as duplicates",
	})

	WebhookHandlerFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_handler_failures_total",
		Help: "Total number of webhook handlers that aborted with an error",
	}, []string{"type"})

	WebhookProcessingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "webhook_processing_latency_seconds",
		Help:    "Latency of webhook event reconciliation",
		Buckets: prometheus.DefBuckets,
	})

	PaymentsSucceededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_succeeded_total",
		Help: "Total number of payments reconciled as succeeded",
	})

	PaymentsCanceledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_canceled_total",
		Help: "Total number of payments reconciled as canceled or expired",
	})

	RefundsRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refunds_recorded_total",
		Help: "Total number of refunds recorded from charge.refunded events",
	})

	FeeTransactionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fee_transactions_created_total",
		Help: "Total number of provider fee transactions created",
	})

	RegistrationMovesResolvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "registration_moves_resolved_total",
		Help: "Total number of registration transfers finalized on payment success",
	})

	RegistrationMovesRevertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "registration_moves_reverted_total",
		Help: "Total number of registration transfers reverted on payment failure",
	})

	AuditEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_entries_total",
		Help: "Total number of audit log entries written, by severity",
	}, []string{"severity"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
