// Package answer reduces a chat event stream to the sequence of completed
// answer texts a consumer actually wants to display. Deltas, lifecycle
// events and knowledge-retrieval chatter are dropped; recall-source markers
// are scrubbed out of the surviving text.
package answer

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bytewidget/cozerelay/pkg/coze"
	"github.com/bytewidget/cozerelay/pkg/devlog"
)

// EventSource yields chat events; nil, nil signals exhaustion. *coze.Stream
// satisfies this.
type EventSource interface {
	Next() (*coze.ChatEvent, error)
}

// Options tune a Filter.
type Options struct {
	// Question is attached to published telemetry events.
	Question string
	// Origin identifies the emitting side ("relay", "client") in telemetry.
	Origin string
	// Publisher, when set, receives one AnswerEvent per emitted text.
	// Publishing is fire-and-forget; failures never reach the caller.
	Publisher devlog.Publisher
}

// Filter pulls events from a source and yields completed answer texts.
type Filter struct {
	src  EventSource
	opts Options
}

// NewFilter wraps src.
func NewFilter(src EventSource, opts Options) *Filter {
	return &Filter{src: src, opts: opts}
}

// Next returns the next non-empty answer text, or io.EOF when the source is
// exhausted. Events that are not completed messages, or whose text filters
// down to nothing, yield nothing.
func (f *Filter) Next() (string, error) {
	for {
		ev, err := f.src.Next()
		if err != nil {
			return "", err
		}
		if ev == nil {
			return "", io.EOF
		}

		if ev.Event != coze.EventMessageCompleted {
			continue
		}

		msg, err := ev.Message()
		if err != nil {
			continue
		}

		text := CleanRecallSuffix(extractText(msg))
		if text == "" {
			continue
		}

		f.publish(text)
		return text, nil
	}
}

// extractText decides what, if anything, a completed message contributes.
//
// Some deployments wrap answer text in a JSON envelope on the completed
// channel; the only signal distinguishing an envelope from literal text that
// happens to be JSON is a successful decode, so content starting with "{"
// gets one decode attempt and is gated on msg_type. Everything else is taken
// literally when the message is plain text.
func extractText(msg *coze.Message) string {
	raw := msg.Content

	if strings.HasPrefix(strings.TrimSpace(raw), "{") {
		var envelope struct {
			MsgType string `json:"msg_type"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal([]byte(raw), &envelope); err == nil {
			if envelope.MsgType == coze.MessageTypeAnswer {
				return envelope.Content
			}
			// Structured but not an answer: knowledge recall, internal
			// events and the like are suppressed.
			return ""
		}
		// Undecodable: treat as literal text below.
	}

	if msg.ContentType == coze.ContentTypeText {
		return raw
	}
	return ""
}

// publish emits a telemetry event without blocking or failing the answer
// path.
func (f *Filter) publish(text string) {
	if f.opts.Publisher == nil {
		return
	}

	event := &devlog.AnswerEvent{
		SchemaVersion: devlog.SchemaVersionV1,
		EventType:     devlog.EventTypeAnswerCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        f.opts.Origin,
		Question:      f.opts.Question,
		Text:          text,
	}

	go func() {
		// Best effort only.
		_ = f.opts.Publisher.PublishAnswer(context.Background(), event)
	}()
}
