// Package ndjson implements newline-delimited JSON framing: the relay writes
// one JSON value per '\n'-terminated line, and clients decode frames
// incrementally regardless of how the transport chunks the bytes.
package ndjson

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Writer encodes values as NDJSON frames on an underlying io.Writer.
// Each frame is written and flushed eagerly so a streaming consumer sees
// events as they are produced, not when a buffer fills.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer emitting frames on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write marshals v and emits it as a single '\n'-terminated frame. A write
// error means the sink is gone (e.g. the client hung up on the pipe); the
// producer should stop pulling its source.
func (w *Writer) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	b = append(b, '\n')
	if _, err := w.w.Write(b); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	if f, ok := w.w.(http.Flusher); ok {
		f.Flush()
	}

	return nil
}
