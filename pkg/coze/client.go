package coze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytewidget/cozerelay/pkg/sse"
)

// DefaultBaseURL is the upstream API origin used when none is configured.
const DefaultBaseURL = "https://api.coze.cn"

// Client calls the upstream chat API. The zero value is not usable; use
// NewClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a Client for the given API origin. An empty baseURL
// falls back to DefaultBaseURL; a nil httpClient falls back to a dedicated
// no-timeout client (streams are long-lived, cancellation comes from ctx).
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// StreamChat opens a streaming chat call and returns the event stream. The
// caller owns the stream and must Close it. Exactly one upstream call is
// made; there are no retries.
func (c *Client) StreamChat(ctx context.Context, token string, req *StreamChatRequest) (*Stream, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, fmt.Errorf("chat request returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	return &Stream{
		body:   resp.Body,
		reader: sse.NewReader(resp.Body),
	}, nil
}

// Stream yields chat events pulled from an open upstream response. Pulling
// is lazy: the upstream body is only drained as fast as Next is called.
type Stream struct {
	body   io.ReadCloser
	reader *sse.Reader
}

// Next returns the next chat event, or nil, nil once the stream is
// exhausted. An abrupt connection loss mid-stream surfaces as a read error.
func (s *Stream) Next() (*ChatEvent, error) {
	ev, err := s.reader.Next()
	if err != nil {
		return nil, fmt.Errorf("failed to read chat stream: %w", err)
	}
	if ev == nil {
		return nil, nil
	}

	data := json.RawMessage(ev.Data)
	if !json.Valid(data) {
		// The terminal sentinel ("[DONE]") and any other bare payloads are
		// carried as JSON strings so every frame downstream is valid JSON.
		data, err = json.Marshal(ev.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to wrap event payload: %w", err)
		}
	}

	return &ChatEvent{Event: ev.Type, Data: data}, nil
}

// Close releases the underlying response body. Closing mid-stream aborts
// the upstream transfer.
func (s *Stream) Close() error {
	return s.body.Close()
}
