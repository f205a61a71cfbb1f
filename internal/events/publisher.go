package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/vuonglv2610/storefront/internal/domain"
)

const paymentEventsTopic = "payment-events"

// Event types emitted when a checkout reaches a terminal view.
const (
	TypeOrderPlaced   = "order.placed"
	TypeOrderFailed   = "order.failed"
	TypePaymentStatus = "payment.status_changed"
)

type Event struct {
	Type      string               `json:"type"`
	OrderID   string               `json:"orderId,omitempty"`
	PaymentID string               `json:"paymentId,omitempty"`
	Status    domain.PaymentStatus `json:"status"`
	Method    domain.PaymentMethod `json:"method,omitempty"`
	Amount    decimal.Decimal      `json:"amount"`
	At        time.Time            `json:"at"`
}

// Publisher pushes checkout lifecycle events for downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
	log    zerolog.Logger
}

func NewKafkaPublisher(brokers []string, log zerolog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  paymentEventsTopic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: writer, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event failed: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.PaymentID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write event failed: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher is used when no brokers are configured. Events are logged
// and dropped; the checkout flow never depends on the bus being up.
type NopPublisher struct {
	Log zerolog.Logger
}

func (n NopPublisher) Publish(ctx context.Context, event Event) error {
	n.Log.Debug().Str("type", event.Type).Str("payment", event.PaymentID).Msg("event bus disabled, event dropped")
	return nil
}

func (n NopPublisher) Close() error { return nil }
