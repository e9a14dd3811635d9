package messaging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeScheduled   = "scheduled"
	outcomePublished   = "published"
	outcomeUnpublished = "unpublished"
	outcomeInvalid     = "invalid"
)

var (
	publisherMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_publisher_messages_total",
		Help: "Messages handled by the batch publisher by outcome.",
	}, []string{"topic", "outcome"})

	publisherBatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "courier_publisher_batch_duration_seconds",
		Help:    "Duration of batch publish calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})

	consumerMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_consumer_messages_total",
		Help: "Messages handled by the consumer group by outcome.",
	}, []string{"topic", "outcome"})
)
