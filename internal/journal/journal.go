// internal/journal/journal.go
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrInvalidVersion      = errors.New("invalid version number")
)

// Event is one journaled catalog mutation.
type Event struct {
	Seq       int64           `json:"seq" db:"seq"`
	ID        uuid.UUID       `json:"id" db:"id"`
	Version   int             `json:"version" db:"version"`
	Type      string          `json:"type" db:"event_type"`
	ItemID    int64           `json:"item_id" db:"item_id"`
	Data      json.RawMessage `json:"data" db:"event_data"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Journal is an append-only log with optimistic concurrency on the
// catalog version.
type Journal interface {
	// Append stores events as versions expectedVersion+1, +2, ...
	// It fails with ErrConcurrencyConflict when the journal is not at
	// expectedVersion.
	Append(ctx context.Context, expectedVersion int, events ...Event) error
	// Stream returns up to limit events with Seq greater than afterSeq.
	Stream(ctx context.Context, afterSeq int64, limit int) ([]Event, error)
	// Version returns the highest version appended so far, or 0.
	Version(ctx context.Context) (int, error)
}

// MemoryJournal keeps events in process memory.
type MemoryJournal struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (j *MemoryJournal) Append(ctx context.Context, expectedVersion int, events ...Event) error {
	if expectedVersion < 0 {
		return ErrInvalidVersion
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.currentVersion() != expectedVersion {
		return ErrConcurrencyConflict
	}

	now := time.Now().UTC()
	for i, event := range events {
		if event.ID == uuid.Nil {
			event.ID = uuid.New()
		}
		event.Version = expectedVersion + i + 1
		event.Seq = int64(len(j.events) + 1)
		event.CreatedAt = now
		j.events = append(j.events, event)
	}
	return nil
}

func (j *MemoryJournal) Stream(ctx context.Context, afterSeq int64, limit int) ([]Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []Event
	for _, event := range j.events {
		if event.Seq <= afterSeq {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, event)
	}
	return out, nil
}

func (j *MemoryJournal) Version(ctx context.Context) (int, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.currentVersion(), nil
}

func (j *MemoryJournal) currentVersion() int {
	if len(j.events) == 0 {
		return 0
	}
	return j.events[len(j.events)-1].Version
}
