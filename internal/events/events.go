// Package events publishes booking lifecycle events for downstream
// consumers (analytics, CRM export). Publishing is best-effort: a broker
// outage never fails the booking operation that produced the event.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	TypeBookingCreated   = "booking.created.v1"
	TypeBookingConfirmed = "booking.confirmed.v1"
	TypeBookingCancelled = "booking.cancelled.v1"
	TypeBookingExpired   = "booking.expired.v1"
	TypeSlotCaught       = "catchqueue.slot.claimed.v1"
)

type Event struct {
	Type    string
	Payload map[string]any
}

type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Noop is used when no brokers are configured.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (*Noop) Publish(context.Context, Event) {}

type Kafka struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func NewKafka(brokers []string, topic string, logger *slog.Logger) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			WriteTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

func (k *Kafka) Publish(ctx context.Context, e Event) {
	eventID := uuid.NewString()
	payload := map[string]any{}
	for key, v := range e.Payload {
		payload[key] = v
	}
	payload["occurred_at"] = time.Now().UTC().Format(time.RFC3339)

	raw, err := json.Marshal(payload)
	if err != nil {
		k.logger.Error("event marshal failed", "type", e.Type, "err", err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(eventID),
		Value: raw,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(eventID)},
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.logger.Warn("event publish failed", "type", e.Type, "err", err)
	}
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
