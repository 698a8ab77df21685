package devlog

import "context"

// Publisher publishes answer events to a telemetry backend.
type Publisher interface {
	PublishAnswer(ctx context.Context, event *AnswerEvent) error
	Close() error
}
