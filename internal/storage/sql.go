// internal/storage/sql.go
package storage

import (
	"context"
	"fmt"
	"libracat/internal/catalog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"
)

const itemsSchema = `
	CREATE TABLE IF NOT EXISTS catalog_items (
		seq INTEGER NOT NULL PRIMARY KEY,
		id BIGINT NOT NULL,
		kind INTEGER NOT NULL,
		title TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		page_count INTEGER NOT NULL DEFAULT 0,
		pub_year INTEGER NOT NULL DEFAULT 0,
		type_tag INTEGER NOT NULL DEFAULT 0,
		popularity INTEGER NOT NULL DEFAULT 0
	)
`

type itemRow struct {
	Seq        int    `db:"seq"`
	ID         int64  `db:"id"`
	Kind       int    `db:"kind"`
	Title      string `db:"title"`
	Author     string `db:"author"`
	PageCount  int    `db:"page_count"`
	Year       int    `db:"pub_year"`
	TypeTag    int    `db:"type_tag"`
	Popularity int    `db:"popularity"`
}

// SQLStore keeps the catalog in a catalog_items table, ordered by seq.
// Calls go through a circuit breaker so a dead database fails fast.
type SQLStore struct {
	db      *sqlx.DB
	breaker *gobreaker.CircuitBreaker
	tracer  trace.Tracer
}

// OpenSQLStore connects with driver ("postgres" or "sqlite") and creates
// the table if needed.
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s backend: dsn is required", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// One writer at a time; avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
	}

	s := NewSQLStore(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{
		db: db,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "catalog-" + db.DriverName(),
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		tracer: otel.Tracer("libracat/storage"),
	}
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, itemsSchema); err != nil {
		return fmt.Errorf("create catalog_items: %w", err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context) ([]catalog.Item, error) {
	ctx, span := s.tracer.Start(ctx, "storage.sql.load",
		trace.WithAttributes(attribute.String("db.driver", s.db.DriverName())))
	defer span.End()

	res, err := s.breaker.Execute(func() (interface{}, error) {
		var rows []itemRow
		err := s.db.SelectContext(ctx, &rows, `
			SELECT seq, id, kind, title, author, page_count, pub_year, type_tag, popularity
			FROM catalog_items
			ORDER BY seq ASC
		`)
		return rows, err
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load catalog from %s: %w", s.db.DriverName(), err)
	}

	rows := res.([]itemRow)
	items := make([]catalog.Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, catalog.Item{
			ID:         r.ID,
			Kind:       catalog.Kind(r.Kind),
			Title:      r.Title,
			Author:     r.Author,
			PageCount:  r.PageCount,
			Year:       r.Year,
			Type:       r.TypeTag,
			Popularity: r.Popularity,
		})
	}
	span.SetAttributes(attribute.Int("items.loaded", len(items)))
	return items, nil
}

// Save rewrites the table in one transaction.
func (s *SQLStore) Save(ctx context.Context, items []catalog.Item) error {
	ctx, span := s.tracer.Start(ctx, "storage.sql.save",
		trace.WithAttributes(
			attribute.String("db.driver", s.db.DriverName()),
			attribute.Int("items.count", len(items)),
		))
	defer span.End()

	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.rewrite(ctx, items)
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("save catalog to %s: %w", s.db.DriverName(), err)
	}
	return nil
}

func (s *SQLStore) rewrite(ctx context.Context, items []catalog.Item) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_items`); err != nil {
		return fmt.Errorf("clear catalog_items: %w", err)
	}

	insert := tx.Rebind(`
		INSERT INTO catalog_items (seq, id, kind, title, author, page_count, pub_year, type_tag, popularity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	for i, it := range items {
		_, err := tx.ExecContext(ctx, insert,
			i, it.ID, int(it.Kind), it.Title, it.Author, it.PageCount, it.Year, it.Type, it.Popularity)
		if err != nil {
			return fmt.Errorf("insert item %d: %w", it.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
