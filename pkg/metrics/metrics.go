// Package metrics provides Prometheus metrics for the clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clover"

var (
	// SubmissionsTotal tracks received submissions by kind and outcome
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingress",
			Name:      "submissions_total",
			Help:      "Total number of form submissions by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	// StoredIdentities tracks distinct identity keys held by the record store
	StoredIdentities = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "identities",
			Help:      "Number of distinct identity keys in the record store",
		},
	)

	// MatchesTotal tracks match evaluations by outcome
	MatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "evaluations_total",
			Help:      "Total number of match evaluations by outcome",
		},
		[]string{"outcome"},
	)

	// MatchConfidence tracks the distribution of match confidence
	MatchConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "confidence",
			Help:      "Confidence of evaluated matches",
			Buckets:   []float64{0, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
	)

	// DeliveriesTotal tracks report deliveries by status
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "reports_total",
			Help:      "Total number of report deliveries by status",
		},
		[]string{"status"},
	)

	// DeliveryAttempts tracks how many attempts each delivery needed
	DeliveryAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "attempts",
			Help:      "Number of attempts per report delivery",
			Buckets:   []float64{1, 2, 3, 5, 10},
		},
	)

	// HTTPRequestsTotal tracks outbound HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http_client",
			Name:      "requests_total",
			Help:      "Total number of outbound HTTP requests",
		},
		[]string{"method", "status_code"},
	)

	// HTTPRequestDuration tracks outbound HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound HTTP requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method"},
	)

	// DLQEntriesTotal tracks failed deliveries sent to the dead letter queue
	DLQEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dlq",
			Name:      "entries_total",
			Help:      "Total number of failed deliveries sent to the dead letter queue",
		},
		[]string{"reason"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// KafkaMessagesConsumed tracks Kafka messages consumed
	KafkaMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kafka",
			Name:      "messages_consumed_total",
			Help:      "Total number of messages consumed from Kafka",
		},
		[]string{"topic", "status"},
	)

	// DatabaseQueryDuration tracks database query duration
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Duration of database queries in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	// RedisOperationDuration tracks Redis operation duration
	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "operation_duration_seconds",
			Help:      "Duration of Redis operations in seconds",
			Buckets:   []float64{0.0001, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
		[]string{"operation"},
	)
)

// RecordSubmission records an ingress outcome, "accepted" or "rejected"
func RecordSubmission(kind, status string) {
	SubmissionsTotal.WithLabelValues(kind, status).Inc()
}

// RecordMatch records a match evaluation
func RecordMatch(confident bool, confidence float64) {
	outcome := "unconfident"
	if confident {
		outcome = "confident"
	}
	MatchesTotal.WithLabelValues(outcome).Inc()
	MatchConfidence.Observe(confidence)
}

// RecordDelivery records a finished delivery
func RecordDelivery(status string, attempts int) {
	DeliveriesTotal.WithLabelValues(status).Inc()
	if attempts > 0 {
		DeliveryAttempts.Observe(float64(attempts))
	}
}

// RecordHTTPRequest records an outbound HTTP request metric
func RecordHTTPRequest(method, statusCode string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordDLQEntry records a dead letter queue entry
func RecordDLQEntry(reason string) {
	DLQEntriesTotal.WithLabelValues(reason).Inc()
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}

// RecordKafkaConsume records a consumed Kafka message
func RecordKafkaConsume(topic, status string) {
	KafkaMessagesConsumed.WithLabelValues(topic, status).Inc()
}

// RecordDatabaseQuery records a database query duration
func RecordDatabaseQuery(operation string, durationSeconds float64) {
	DatabaseQueryDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordRedisOperation records a Redis operation duration
func RecordRedisOperation(operation string, durationSeconds float64) {
	RedisOperationDuration.WithLabelValues(operation).Observe(durationSeconds)
}
