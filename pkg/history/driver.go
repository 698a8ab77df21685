package history

import (
	"context"
	"time"
)

// Driver is the interface history store backends implement.
type Driver interface {
	// Insert stores a new question asked at the given time and returns the
	// stored record.
	Insert(ctx context.Context, question string, at time.Time) (*Record, error)

	// UpdateLatestAnswer sets the answer on the most recent record matching
	// the question. It returns false when no record matches.
	UpdateLatestAnswer(ctx context.Context, question, answer string) (bool, error)

	// List returns records passing the filter, newest first.
	List(ctx context.Context, filter TimeFilter) ([]Record, error)

	// Close releases backend resources.
	Close() error
}
