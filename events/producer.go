/*
Package events publishes booking lifecycle events to Kafka.

PURPOSE:
  Downstream consumers (notifications, analytics) follow the booking
  lifecycle from a topic instead of polling the database. Publishing is
  best effort: the services treat a nil producer as "events disabled" and
  never fail a booking operation over a publish error.
*/
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/voyago/travel-engine/booking"
)

type Producer struct {
	writer *kafka.Writer
	topic  string
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		topic: topic,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Publish writes one lifecycle event keyed by booking id, so all events
// of a booking land on the same partition in order.
func (p *Producer) Publish(ctx context.Context, key string, event booking.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

var _ booking.Publisher = (*Producer)(nil)
