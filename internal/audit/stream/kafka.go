package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"pension/internal/audit"
)

// Producer is the part of *kgo.Client the sink needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaSink writes each entry as a JSON record keyed by entity id, so the
// history of one member stays ordered within a partition.
type KafkaSink struct {
	producer Producer
	topic    string
}

func NewKafkaSink(producer Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

type payload struct {
	ID            string `json:"id"`
	EntityID      string `json:"entity_id"`
	EntityType    string `json:"entity_type"`
	ChangeType    string `json:"change_type"`
	ChangeDetails string `json:"change_details"`
	CreatedAt     string `json:"created_at"`
}

func (s *KafkaSink) Publish(ctx context.Context, entry audit.TransactionHistory) error {
	value, err := json.Marshal(payload{
		ID:            entry.ID.String(),
		EntityID:      entry.EntityID.String(),
		EntityType:    string(entry.EntityType),
		ChangeType:    string(entry.ChangeType),
		ChangeDetails: entry.ChangeDetails,
		CreatedAt:     entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(entry.EntityID.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "change_type", Value: []byte(entry.ChangeType)},
		},
	}
	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce history entry: %w", err)
	}
	return nil
}
