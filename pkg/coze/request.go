package coze

import "encoding/json"

// StreamChatRequest shapes the body of a streaming chat call. BotID and
// UserID are always the relay's resolved values: matching keys in Extra are
// discarded at marshal time so a caller can never redirect the conversation
// to another bot or spoof another user.
type StreamChatRequest struct {
	BotID           string
	UserID          string
	Question        string
	AutoSaveHistory bool

	// Extra carries caller-supplied pass-through options (custom variables,
	// conversation ids, and whatever else the upstream grows).
	Extra map[string]any
}

// reservedOverrideKeys are stripped from Extra before merging.
var reservedOverrideKeys = map[string]struct{}{
	"bot_id":  {},
	"user_id": {},
}

// MarshalJSON produces the upstream wire shape: identity and message fields
// first, then Extra merged over the top (minus reserved keys).
func (r *StreamChatRequest) MarshalJSON() ([]byte, error) {
	body := map[string]any{
		"bot_id":            r.BotID,
		"user_id":           r.UserID,
		"stream":            true,
		"auto_save_history": r.AutoSaveHistory,
		"additional_messages": []map[string]string{
			{
				"role":         "user",
				"content":      r.Question,
				"content_type": ContentTypeText,
				"type":         MessageTypeQuestion,
			},
		},
	}

	for k, v := range r.Extra {
		if _, reserved := reservedOverrideKeys[k]; reserved {
			continue
		}
		body[k] = v
	}

	return json.Marshal(body)
}
