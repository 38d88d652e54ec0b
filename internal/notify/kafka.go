package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/ignite/affiliate-ledger/internal/domain"
)

// messageWriter is the subset of *kafka.Writer the sender uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender publishes notifications keyed by promoter so one promoter's
// messages stay ordered within a partition.
type KafkaSender struct {
	writer messageWriter
}

// NewKafkaSender creates a sender writing to topic.
func NewKafkaSender(brokers []string, topic string) (*KafkaSender, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka sender requires at least one broker")
	}
	return &KafkaSender{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
	}}, nil
}

func (s *KafkaSender) Send(ctx context.Context, n domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.PromoterID),
		Value: payload,
		Time:  n.OccurredAt,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(n.Kind)},
		},
	}); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSender) Close() error { return s.writer.Close() }
