package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dp-canteen-service/internal/model"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type EventType string

const (
	OrderCreated         EventType = "order.created"
	OrderPaid            EventType = "order.paid"
	OrderPickupConfirmed EventType = "order.pickup_confirmed"
	OrderStatusChanged   EventType = "order.status_changed"
	OrderCancelled       EventType = "order.cancelled"
)

type OrderEvent struct {
	Type       EventType         `json:"type"`
	OrderRef   string            `json:"order_ref"`
	UserID     string            `json:"user_id"`
	CanteenID  uint              `json:"canteen_id"`
	Status     model.OrderStatus `json:"status"`
	Total      string            `json:"total"`
	Actor      string            `json:"actor,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

func NewOrderEvent(t EventType, order *model.Order, actor string, at time.Time) OrderEvent {
	return OrderEvent{
		Type:       t,
		OrderRef:   order.OrderRef,
		UserID:     order.UserID,
		CanteenID:  order.CanteenID,
		Status:     order.Status,
		Total:      order.Total.StringFixed(2),
		Actor:      actor,
		OccurredAt: at,
	}
}

// Publisher emits order lifecycle events. Services call it after their transaction commits.
type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	writer MessageWriter
	logger *zap.Logger
}

// NewKafkaPublisher keys every message by order reference so one order's events stay on one partition.
func NewKafkaPublisher(writer MessageWriter, logger *zap.Logger) Publisher {
	return &kafkaPublisher{
		writer: writer,
		logger: logger,
	}
}

func (p *kafkaPublisher) Publish(ctx context.Context, event OrderEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderRef),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
		Time: event.OccurredAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s for %s: %w", event.Type, event.OrderRef, err)
	}

	p.logger.Debug("order event published",
		zap.String("type", string(event.Type)),
		zap.String("order_ref", event.OrderRef))
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

type logPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher is used when no brokers are configured; events only reach the log.
func NewLogPublisher(logger *zap.Logger) Publisher {
	return &logPublisher{logger: logger}
}

func (p *logPublisher) Publish(_ context.Context, event OrderEvent) error {
	p.logger.Info("order event",
		zap.String("type", string(event.Type)),
		zap.String("order_ref", event.OrderRef),
		zap.String("status", string(event.Status)),
		zap.String("actor", event.Actor))
	return nil
}

func (p *logPublisher) Close() error { return nil }
