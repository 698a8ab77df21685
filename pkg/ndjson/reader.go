package ndjson

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
)

// Reader decodes NDJSON frames from an io.Reader. Decoding is independent of
// how the transport splits the byte stream: a frame only surfaces once its
// terminating newline arrives, except for a final unterminated frame at EOF,
// which is decoded once.
//
// Lines that are empty or whitespace-only yield nothing. Lines that do not
// decode as JSON are dropped silently; one bad frame never kills the stream.
type Reader struct {
	br   *bufio.Reader
	done bool
}

// NewReader returns a Reader decoding frames from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// Next returns the next decoded frame. It returns io.EOF once the source is
// exhausted; any other error is a transport read error.
func (r *Reader) Next() (json.RawMessage, error) {
	if r.done {
		return nil, io.EOF
	}

	for {
		line, err := r.br.ReadBytes('\n')

		if err != nil && err != io.EOF {
			return nil, err
		}

		if err == io.EOF {
			r.done = true
			// The final frame may lack its terminating newline. Give the
			// remainder one decode attempt before reporting exhaustion.
			if frame := decodeLine(line); frame != nil {
				return frame, nil
			}
			return nil, io.EOF
		}

		if frame := decodeLine(line); frame != nil {
			return frame, nil
		}
	}
}

// decodeLine trims and validates a single line, returning nil for blank or
// undecodable input.
func decodeLine(line []byte) json.RawMessage {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}

	if !json.Valid(line) {
		return nil
	}

	frame := make(json.RawMessage, len(line))
	copy(frame, line)
	return frame
}
