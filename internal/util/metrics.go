package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OfferEvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offer_evaluations_total",
		Help: "Total number of offer evaluations against an order",
	}, []string{"result"})

	OfferRedemptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offer_redemptions_total",
		Help: "Total number of recorded offer usages",
	}, []string{"offer_type"})

	OfferCacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offer_cache_lookups_total",
		Help: "Active offer cache lookups",
	}, []string{"result"})

	WalletCreditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_credits_total",
		Help: "Total number of wallet credits",
	}, []string{"source"})

	WalletDebitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_debits_total",
		Help: "Total number of wallet debits",
	}, []string{"source"})

	WalletAdjustmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_adjustments_total",
		Help: "Total number of admin wallet adjustments",
	})

	WalletRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_rejections_total",
		Help: "Total number of rejected wallet mutations",
	}, []string{"reason"})

	WalletMutationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wallet_mutation_latency_seconds",
		Help:    "Latency of wallet read-modify-write operations",
		Buckets: prometheus.DefBuckets,
	})

	ConflictRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conflict_retries_total",
		Help: "Total number of retries after an optimistic version conflict",
	}, []string{"operation"})

	EventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_consumed_total",
		Help: "Total number of consumed events",
	}, []string{"event_type", "result"})

	MessageRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_message_retries_total",
		Help: "Total number of failed message handling attempts that were retried",
	}, []string{"topic"})

	MessagesDeadLetteredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_messages_dead_lettered_total",
		Help: "Total number of messages parked on the dead-letter topic or dropped",
	}, []string{"topic", "reason"})

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
