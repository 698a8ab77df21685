// Package relayclient is a Go consumer for the relay's NDJSON chat endpoint,
// used by the CLI and by anything else that wants completed answers rather
// than raw frames.
package relayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytewidget/cozerelay/pkg/devlog"
)

// DefaultTimeout bounds the wait for the first answer of a chat turn.
const DefaultTimeout = 25 * time.Second

// ErrTimeout is returned by AnswerStream.Next when no answer arrived within
// the configured timeout.
var ErrTimeout = errors.New("timed out waiting for an answer")

// ShortPrompt asks for a condensed answer, in the phrasing the browser
// widget uses.
func ShortPrompt(question string) string {
	return question + "（3句话以内）"
}

// LongPrompt asks for a detailed answer.
func LongPrompt(question string) string {
	return question + "（详细回答）"
}

// Client talks to a running relay.
type Client struct {
	// Target is the relay base URL, e.g. "http://localhost:8090".
	Target string
	// HTTPClient overrides the transport. Nil means a dedicated no-timeout
	// client; answer streams are long-lived.
	HTTPClient *http.Client
	// Timeout bounds the wait for the first answer. Zero means
	// DefaultTimeout.
	Timeout time.Duration
	// Publisher, when set, receives telemetry for every answer surfaced to
	// the caller.
	Publisher devlog.Publisher
}

// AskOptions carries per-question overrides forwarded to the relay.
type AskOptions struct {
	// Options is passed through as the chat request's options object. The
	// relay strips identity keys regardless of what is in here.
	Options map[string]any
}

// Ask posts a question and returns the stream of completed answers. The
// caller owns the stream and must Close it.
func (c *Client) Ask(ctx context.Context, question string, opts *AskOptions) (*AnswerStream, error) {
	payload := map[string]any{"question": question}
	if opts != nil && len(opts.Options) > 0 {
		payload["options"] = opts.Options
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.target()+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, relayError(resp)
	}

	return newAnswerStream(resp.Body, c.timeout(), question, c.Publisher), nil
}

// UpdateAnswer attaches an answer to the newest history record matching the
// question.
func (c *Client) UpdateAnswer(ctx context.Context, question, answer string) error {
	body, err := json.Marshal(map[string]string{
		"question": question,
		"answer":   answer,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal answer update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.target()+"/api/history/answer", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create answer update: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("answer update failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return relayError(resp)
	}
	return nil
}

func (c *Client) target() string {
	return strings.TrimRight(c.Target, "/")
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{}
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// relayError turns a non-200 relay response into an error, surfacing the
// relay's {"error": ...} body when one is present.
func relayError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(snippet, &body); err == nil && body.Error != "" {
		return fmt.Errorf("relay returned status %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("relay returned status %d", resp.StatusCode)
}
