package nop

import (
	"context"

	"github.com/bytewidget/cozerelay/pkg/devlog"
)

// Publisher is a no-op answer publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op answer publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishAnswer validates input and otherwise does nothing.
func (p *Publisher) PublishAnswer(_ context.Context, event *devlog.AnswerEvent) error {
	if event == nil {
		return devlog.ErrNilAnswerEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
