package relayclient

import (
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/bytewidget/cozerelay/pkg/answer"
	"github.com/bytewidget/cozerelay/pkg/coze"
	"github.com/bytewidget/cozerelay/pkg/devlog"
	"github.com/bytewidget/cozerelay/pkg/ndjson"
)

// AnswerStream yields completed answer texts from an open relay response.
// Next returns io.EOF once the turn is over.
type AnswerStream struct {
	body    io.ReadCloser
	filter  *answer.Filter
	timeout time.Duration
	started bool
}

func newAnswerStream(body io.ReadCloser, timeout time.Duration, question string, publisher devlog.Publisher) *AnswerStream {
	events := &frameSource{reader: ndjson.NewReader(body)}
	return &AnswerStream{
		body: body,
		filter: answer.NewFilter(events, answer.Options{
			Question:  question,
			Origin:    "relayclient",
			Publisher: publisher,
		}),
		timeout: timeout,
	}
}

type pullResult struct {
	text string
	err  error
}

// Next returns the next answer text. The first call is bounded by the
// configured timeout: the transport has no mid-flight cancellation beyond
// the request context, so on timeout the body is closed to unblock the
// reader and ErrTimeout is returned.
func (s *AnswerStream) Next() (string, error) {
	if s.started {
		return s.filter.Next()
	}
	s.started = true

	ch := make(chan pullResult, 1)
	go func() {
		text, err := s.filter.Next()
		ch <- pullResult{text: text, err: err}
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.text, res.err
	case <-timer.C:
		s.body.Close()
		return "", ErrTimeout
	}
}

// Close releases the underlying response body. Closing mid-stream tells the
// relay the client is gone.
func (s *AnswerStream) Close() error {
	return s.body.Close()
}

// frameSource adapts NDJSON frames to the event source the answer filter
// pulls from. Frames that do not look like chat events are skipped.
type frameSource struct {
	reader *ndjson.Reader
}

func (f *frameSource) Next() (*coze.ChatEvent, error) {
	for {
		raw, err := f.reader.Next()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			// An abruptly closed stream is a terminal end-of-sequence, not
			// an error; the turn is simply over, partial or not.
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		var ev coze.ChatEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}
		if ev.Event == "" {
			continue
		}
		return &ev, nil
	}
}
