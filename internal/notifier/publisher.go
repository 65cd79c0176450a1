package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/smehubhq/payments-service/internal/models"
)

// SettledEvent is published downstream after a transaction reaches completed.
// Consumers (email receipts, seller dashboards) must treat it as at-least-once.
type SettledEvent struct {
	TransactionID     string    `json:"transaction_id"`
	ExternalReference string    `json:"external_reference"`
	Type              string    `json:"type"`
	GrossAmount       int64     `json:"gross_amount"`
	NetAmount         int64     `json:"net_amount"`
	Currency          string    `json:"currency"`
	SettledAt         time.Time `json:"settled_at"`
}

type Publisher interface {
	PublishSettled(ctx context.Context, txn models.Transaction) error
}

type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.LeastBytes{},
		},
		topic: topic,
	}
}

func (p *KafkaPublisher) PublishSettled(ctx context.Context, txn models.Transaction) error {
	ev := SettledEvent{
		TransactionID:     txn.ID,
		ExternalReference: txn.ExternalReference,
		Type:              string(txn.Type),
		GrossAmount:       txn.GrossAmount,
		NetAmount:         txn.NetAmount,
		Currency:          txn.Currency,
		SettledAt:         time.Now(),
	}
	v, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(txn.ExternalReference),
		Value: v,
		Time:  time.Now(),
		Topic: p.topic,
	})
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// Noop is used when no brokers are configured.
type Noop struct{}

func (Noop) PublishSettled(context.Context, models.Transaction) error { return nil }
