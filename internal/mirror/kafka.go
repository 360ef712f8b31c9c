package mirror

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"weride/internal/types"
)

// Kafka appends snapshots to a topic keyed by ride id, so a ride's updates stay in one partition.
type Kafka struct {
	writer *kafka.Writer
}

func NewKafka(brokers []string, topic string) *Kafka {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.Hash{}})
	return &Kafka{writer: w}
}

func (k *Kafka) Publish(ctx context.Context, rideID types.ID, s Snapshot) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(rideID), Value: b}); err != nil {
		return fmt.Errorf("kafka write ride %s: %w", rideID, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
