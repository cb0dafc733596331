package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Consumer outcomes recorded by Metrics.
const (
	OutcomeProcessed    = "processed"
	OutcomeDuplicate    = "duplicate"
	OutcomeMalformed    = "malformed"
	OutcomeFailed       = "failed"
	OutcomeDeadLettered = "dead_lettered"
)

// Metrics holds the bus collectors. A nil *Metrics records nothing.
type Metrics struct {
	consumed        *prometheus.CounterVec
	processing      *prometheus.HistogramVec
	published       *prometheus.CounterVec
	publishDuration *prometheus.HistogramVec
}

// NewMetrics creates the bus collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_consumer_messages_total",
			Help: "Kafka messages handled by consumers, by outcome",
		}, []string{"topic", "consumer_group", "outcome"}),
		processing: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kafka_consumer_processing_duration_seconds",
			Help:    "Duration of Kafka message processing in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic", "consumer_group"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_producer_messages_total",
			Help: "Kafka publish attempts, by result",
		}, []string{"topic", "result"}),
		publishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kafka_producer_publish_duration_seconds",
			Help:    "Duration of Kafka publish operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
	}
	reg.MustRegister(m.consumed, m.processing, m.published, m.publishDuration)
	return m
}

func (m *Metrics) observeConsumed(topic, group, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.consumed.WithLabelValues(topic, group, outcome).Inc()
	if outcome == OutcomeProcessed {
		m.processing.WithLabelValues(topic, group).Observe(seconds)
	}
}

func (m *Metrics) observePublished(topic string, err error, seconds float64) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.published.WithLabelValues(topic, result).Inc()
	m.publishDuration.WithLabelValues(topic).Observe(seconds)
}
