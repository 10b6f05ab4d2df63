// internal/journal/postgres.go
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const schema = `
	CREATE TABLE IF NOT EXISTS catalog_events (
		seq BIGSERIAL PRIMARY KEY,
		id UUID NOT NULL,
		version INT NOT NULL UNIQUE,
		event_type TEXT NOT NULL,
		item_id BIGINT NOT NULL,
		event_data JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// PostgresJournal stores events in a single catalog_events table.
type PostgresJournal struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewPostgresJournal(db *sql.DB) *PostgresJournal {
	return &PostgresJournal{
		db:     db,
		tracer: otel.Tracer("libracat/journal"),
	}
}

// Migrate creates the events table if it does not exist.
func (j *PostgresJournal) Migrate(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create catalog_events: %w", err)
	}
	return nil
}

// Append atomically appends events with optimistic concurrency control.
func (j *PostgresJournal) Append(ctx context.Context, expectedVersion int, events ...Event) error {
	ctx, span := j.tracer.Start(ctx, "journal.append",
		trace.WithAttributes(
			attribute.Int("expected.version", expectedVersion),
			attribute.Int("event.count", len(events)),
		),
	)
	defer span.End()

	if expectedVersion < 0 {
		return ErrInvalidVersion
	}

	tx, err := j.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var currentVersion int
	err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM catalog_events`).Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("query current version: %w", err)
	}

	if currentVersion != expectedVersion {
		span.SetAttributes(
			attribute.Int("actual.version", currentVersion),
			attribute.Bool("conflict.detected", true),
		)
		return ErrConcurrencyConflict
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO catalog_events (id, version, event_type, item_id, event_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, event := range events {
		version := expectedVersion + i + 1
		id := event.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		data := []byte(event.Data)
		if len(data) == 0 {
			data = []byte("{}")
		}

		var seq int64
		err = stmt.QueryRowContext(ctx, id, version, event.Type, event.ItemID, data, time.Now().UTC()).Scan(&seq)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return ErrConcurrencyConflict
			}
			return fmt.Errorf("insert event %d: %w", i, err)
		}

		span.AddEvent("event.appended", trace.WithAttributes(
			attribute.Int64("event.seq", seq),
			attribute.Int("event.version", version),
			attribute.String("event.type", event.Type),
		))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Stream provides a cursor-based read of the journal.
func (j *PostgresJournal) Stream(ctx context.Context, afterSeq int64, limit int) ([]Event, error) {
	ctx, span := j.tracer.Start(ctx, "journal.stream",
		trace.WithAttributes(
			attribute.Int64("after.seq", afterSeq),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	if limit <= 0 {
		limit = 100
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, id, version, event_type, item_id, event_data, created_at
		FROM catalog_events
		WHERE seq > $1
		ORDER BY seq ASC
		LIMIT $2
	`, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("query event stream: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var data []byte
		if err := rows.Scan(&event.Seq, &event.ID, &event.Version, &event.Type, &event.ItemID, &data, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.Data = data
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	span.SetAttributes(attribute.Int("events.streamed", len(events)))
	return events, nil
}

func (j *PostgresJournal) Version(ctx context.Context) (int, error) {
	ctx, span := j.tracer.Start(ctx, "journal.version")
	defer span.End()

	var version int
	err := j.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM catalog_events`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("query version: %w", err)
	}
	return version, nil
}
