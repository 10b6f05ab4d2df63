package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(itemID int64) Event {
	data, _ := json.Marshal(map[string]int64{"id": itemID})
	return Event{Type: "ItemAdded", ItemID: itemID, Data: data}
}

func TestMemoryJournalAppendAssignsVersions(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal()

	require.NoError(t, j.Append(ctx, 0, testEvent(1), testEvent(2)))
	require.NoError(t, j.Append(ctx, 2, testEvent(3)))

	v, err := j.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	events, err := j.Stream(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.Seq)
		assert.Equal(t, i+1, e.Version)
		assert.NotEqual(t, uuid.Nil, e.ID)
		assert.False(t, e.CreatedAt.IsZero())
	}
}

func TestMemoryJournalRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal()
	require.NoError(t, j.Append(ctx, 0, testEvent(1)))

	err := j.Append(ctx, 0, testEvent(2))
	assert.ErrorIs(t, err, ErrConcurrencyConflict)

	err = j.Append(ctx, -1, testEvent(2))
	assert.ErrorIs(t, err, ErrInvalidVersion)

	v, _ := j.Version(ctx)
	assert.Equal(t, 1, v)
}

func TestMemoryJournalStreamCursor(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal()
	for i := 0; i < 5; i++ {
		require.NoError(t, j.Append(ctx, i, testEvent(int64(i+1))))
	}

	page, err := j.Stream(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(3), page[0].Seq)
	assert.Equal(t, int64(4), page[1].Seq)

	rest, err := j.Stream(ctx, 4, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, int64(5), rest[0].ItemID)
}

// setupTestDB connects to PostgreSQL for the journal tests and skips
// when no server is reachable.
func setupTestDB(t testing.TB) *sql.DB {
	t.Helper()

	getenv := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getenv("PGHOST", "localhost"), getenv("PGPORT", "5432"), getenv("PGUSER", "user"),
		getenv("PGPASSWORD", "password"), getenv("PGDATABASE", "testdb"))

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("failed to open database connection: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping postgres journal tests: could not connect to postgres: %v", err)
	}

	j := NewPostgresJournal(db)
	require.NoError(t, j.Migrate(context.Background()))
	_, err = db.Exec(`TRUNCATE TABLE catalog_events RESTART IDENTITY`)
	require.NoError(t, err)
	return db
}

func TestPostgresJournalAppendAndStream(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	j := NewPostgresJournal(db)

	require.NoError(t, j.Append(ctx, 0, testEvent(1), testEvent(2)))
	assert.ErrorIs(t, j.Append(ctx, 1, testEvent(3)), ErrConcurrencyConflict)

	v, err := j.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	events, err := j.Stream(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ItemAdded", events[0].Type)
	assert.JSONEq(t, `{"id":1}`, string(events[0].Data))
}

func BenchmarkMemoryJournalAppend(b *testing.B) {
	ctx := context.Background()
	j := NewMemoryJournal()
	e := testEvent(1)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := j.Append(ctx, i, e); err != nil {
			b.Fatalf("Append failed: %v", err)
		}
	}
}
