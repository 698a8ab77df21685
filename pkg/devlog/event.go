// Package devlog defines a best-effort telemetry channel for completed
// answers. Publishing is always fire-and-forget from the caller's point of
// view: a failed publish never affects the answer stream.
package devlog

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeAnswerCompleted is emitted when a completed answer has been
	// surfaced to a consumer.
	EventTypeAnswerCompleted = "cozerelay.answer.completed"
)

// AnswerEvent is a transport-neutral payload for one completed answer.
type AnswerEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	Source        string    `json:"source,omitempty"`
	Question      string    `json:"question,omitempty"`
	Text          string    `json:"text"`
}
