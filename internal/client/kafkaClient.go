package client

import (
	"time"

	"dp-canteen-service/internal/config"

	"github.com/segmentio/kafka-go"
)

// NewKafkaWriter returns a writer for the order topic, or nil when no brokers are configured.
func NewKafkaWriter(cfg config.Kafka) *kafka.Writer {
	if len(cfg.Brokers) == 0 {
		return nil
	}

	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.OrderTopic,
		Balancer:               &kafka.Hash{}, // same order ref, same partition
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}
