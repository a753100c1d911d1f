package auditsink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"hotel_inventory/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events keyed by entity id, so every event of one
// booking or room lands on the same partition in emission order.
type KafkaSink struct {
	w messageWriter
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}}
}

func newKafkaSinkWithWriter(w messageWriter) *KafkaSink { return &KafkaSink{w: w} }

func (s *KafkaSink) Record(ctx context.Context, ev domain.AuditEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.EntityType + ":" + ev.EntityID),
		Value: value,
		Time:  ev.At,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(ev.Action)},
			{Key: "actor", Value: []byte(ev.Actor)},
		},
	})
}

func (s *KafkaSink) Close() error { return s.w.Close() }
