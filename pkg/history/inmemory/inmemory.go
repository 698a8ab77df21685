// Package inmemory provides a non-persistent history driver for tests and
// ephemeral deployments.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bytewidget/cozerelay/pkg/history"
)

// Driver implements history.Driver with an in-memory slice.
type Driver struct {
	mu      sync.RWMutex
	records []history.Record
}

// NewDriver creates an empty in-memory history store.
func NewDriver() *Driver {
	return &Driver{}
}

// Insert appends a new record.
func (d *Driver) Insert(_ context.Context, question string, at time.Time) (*history.Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec := history.Record{
		ID:       uuid.NewString(),
		Question: question,
		Time:     at,
	}
	d.records = append(d.records, rec)

	return &rec, nil
}

// UpdateLatestAnswer sets the answer on the newest record matching question.
func (d *Driver) UpdateLatestAnswer(_ context.Context, question, answer string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	latest := -1
	for i, rec := range d.records {
		if rec.Question != question {
			continue
		}
		if latest == -1 || d.records[i].Time.After(d.records[latest].Time) {
			latest = i
		}
	}

	if latest == -1 {
		return false, nil
	}

	a := answer
	d.records[latest].Answer = &a
	return true, nil
}

// List returns matching records newest first.
func (d *Driver) List(_ context.Context, filter history.TimeFilter) ([]history.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	cutoff, bounded := filter.Cutoff(time.Now())

	out := make([]history.Record, 0, len(d.records))
	for _, rec := range d.records {
		if bounded && rec.Time.Before(cutoff) {
			continue
		}
		out = append(out, rec)
	}

	// Newest first, stable for equal timestamps.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.After(out[j].Time)
	})

	return out, nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}
