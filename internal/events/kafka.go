// Package events publishes transaction lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ayo6706/delexpay-ledger/internal/domain"
	"github.com/segmentio/kafka-go"
)

const EventStatusChanged = "transaction.status_changed"

// messageWriter is the part of kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Envelope is the JSON body written for every status event.
type Envelope struct {
	Type             string    `json:"type"`
	TransactionID    string    `json:"transaction_id"`
	OwnerID          string    `json:"owner_id"`
	Kind             string    `json:"kind"`
	From             string    `json:"from,omitempty"`
	To               string    `json:"to"`
	SettlementMicros int64     `json:"settlement_micros"`
	ActorID          *string   `json:"actor_id,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// KafkaPublisher writes events keyed by owner so one account's events stay ordered.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event domain.StatusEvent) error {
	env := Envelope{
		Type:             EventStatusChanged,
		TransactionID:    event.TransactionID.String(),
		OwnerID:          event.OwnerID.String(),
		Kind:             string(event.Kind),
		From:             string(event.From),
		To:               string(event.To),
		SettlementMicros: event.SettlementMicros,
		OccurredAt:       event.OccurredAt.UTC(),
	}
	if event.ActorID != nil {
		actor := event.ActorID.String()
		env.ActorID = &actor
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode status event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(env.OwnerID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventStatusChanged)},
		},
		Time: env.OccurredAt,
	}); err != nil {
		return fmt.Errorf("%w: kafka write: %v", domain.ErrDependencyUnavailable, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
