// Package coze implements a client for a Coze-style chat completion API:
// request shaping for the streaming chat endpoint and a pull-based event
// stream decoded from the upstream SSE response.
package coze

import "encoding/json"

// Event names emitted on the streaming chat channel. Unknown names pass
// through untouched so new upstream event types never break the relay.
const (
	EventChatCreated      = "conversation.chat.created"
	EventChatInProgress   = "conversation.chat.in_progress"
	EventChatCompleted    = "conversation.chat.completed"
	EventChatFailed       = "conversation.chat.failed"
	EventMessageDelta     = "conversation.message.delta"
	EventMessageCompleted = "conversation.message.completed"
	EventDone             = "done"
)

// Message type discriminators carried in message payloads.
const (
	MessageTypeAnswer   = "answer"
	MessageTypeFollowUp = "follow_up"
	MessageTypeVerbose  = "verbose"
	MessageTypeQuestion = "question"
)

// Content type discriminators carried in message payloads.
const (
	ContentTypeText         = "text"
	ContentTypeObjectString = "object_string"
)

// ChatEvent is one upstream event: the SSE event name plus its data payload.
// Data is always valid JSON — non-JSON payloads (the terminal "[DONE]"
// sentinel) are wrapped as JSON strings at decode time.
type ChatEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Message is the payload shape of message events.
type Message struct {
	Role        string `json:"role"`
	Type        string `json:"type"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

// Message decodes the event payload as a message. Callers should only do
// this for message events; other payload shapes fail to decode cleanly.
func (e *ChatEvent) Message() (*Message, error) {
	var m Message
	if err := json.Unmarshal(e.Data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
