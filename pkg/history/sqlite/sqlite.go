// Package sqlite provides a SQLite-backed history driver. This is the
// default store for single-node deployments: one file, no server.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // register the sqlite3 driver

	"github.com/bytewidget/cozerelay/pkg/history"
)

const schema = `
CREATE TABLE IF NOT EXISTS history_records (
	id         TEXT PRIMARY KEY,
	question   TEXT NOT NULL,
	answer     TEXT,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_created_at ON history_records (created_at);
CREATE INDEX IF NOT EXISTS idx_history_question ON history_records (question);
`

// Driver implements history.Driver backed by a SQLite database file.
type Driver struct {
	db *sql.DB
}

// NewDriver opens (creating if needed) the database at path and ensures the
// schema exists.
func NewDriver(ctx context.Context, path string) (*Driver, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{db: db}, nil
}

// Insert stores a new question row.
func (d *Driver) Insert(ctx context.Context, question string, at time.Time) (*history.Record, error) {
	rec := &history.Record{
		ID:       uuid.NewString(),
		Question: question,
		Time:     at.UTC(),
	}

	_, err := d.db.ExecContext(ctx,
		`INSERT INTO history_records (id, question, created_at) VALUES (?, ?, ?)`,
		rec.ID, rec.Question, rec.Time,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert record: %w", err)
	}

	return rec, nil
}

// UpdateLatestAnswer sets the answer on the newest row matching question.
func (d *Driver) UpdateLatestAnswer(ctx context.Context, question, answer string) (bool, error) {
	res, err := d.db.ExecContext(ctx,
		`UPDATE history_records SET answer = ?
		 WHERE id = (
			SELECT id FROM history_records
			WHERE question = ?
			ORDER BY created_at DESC
			LIMIT 1
		 )`,
		answer, question,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return n > 0, nil
}

// List returns matching rows newest first.
func (d *Driver) List(ctx context.Context, filter history.TimeFilter) ([]history.Record, error) {
	query := `SELECT id, question, answer, created_at FROM history_records`
	args := []any{}

	if cutoff, bounded := filter.Cutoff(time.Now()); bounded {
		query += ` WHERE created_at >= ?`
		args = append(args, cutoff.UTC())
	}
	query += ` ORDER BY created_at DESC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var out []history.Record
	for rows.Next() {
		var rec history.Record
		if err := rows.Scan(&rec.ID, &rec.Question, &rec.Answer, &rec.Time); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	return out, nil
}

// Close closes the underlying database handle.
func (d *Driver) Close() error {
	return d.db.Close()
}
