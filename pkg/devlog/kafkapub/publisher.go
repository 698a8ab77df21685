// Package kafkapub publishes answer events to a Kafka topic.
package kafkapub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/bytewidget/cozerelay/pkg/devlog"
)

// Publisher writes answer events to Kafka as JSON payloads keyed by event id.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a Kafka-backed answer publisher.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}
}

// PublishAnswer writes one event to the topic.
func (p *Publisher) PublishAnswer(ctx context.Context, event *devlog.AnswerEvent) error {
	if event == nil {
		return devlog.ErrNilAnswerEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal answer event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.EventID),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("failed to publish answer event: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying Kafka writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
