// Package httppub posts answer events to an HTTP log sink, mirroring the
// browser beacon the relay's /__log route exists for.
package httppub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bytewidget/cozerelay/pkg/devlog"
)

// Publisher POSTs answer text to a log sink URL.
type Publisher struct {
	target     string
	httpClient *http.Client
}

// NewPublisher creates an HTTP-backed answer publisher posting to target.
// A nil httpClient gets a short-timeout default; a slow sink must never
// hold up the answer path.
func NewPublisher(target string, httpClient *http.Client) *Publisher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 3 * time.Second}
	}

	return &Publisher{
		target:     target,
		httpClient: httpClient,
	}
}

// PublishAnswer posts the event's text to the sink. The sink's wire shape is
// a bare {"text": ...} object.
func (p *Publisher) PublishAnswer(ctx context.Context, event *devlog.AnswerEvent) error {
	if event == nil {
		return devlog.ErrNilAnswerEvent
	}

	payload, err := json.Marshal(map[string]string{"text": event.Text})
	if err != nil {
		return fmt.Errorf("failed to marshal log payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create log request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("log request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("log sink returned status %d", resp.StatusCode)
	}

	return nil
}

// Close is a no-op; the publisher holds no connections open.
func (p *Publisher) Close() error {
	return nil
}
