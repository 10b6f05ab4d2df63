// internal/catalog/implementation.go
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"libracat/internal/ids"
	"libracat/internal/journal"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Library is the in-memory catalog. Items keep insertion order and every
// lookup is a linear scan; title lookups return the first exact match.
type Library struct {
	mu      sync.RWMutex
	items   []Item
	views   map[string]int
	version int

	ids     *ids.Generator
	store   Store
	journal journal.Journal
	logger  *zap.Logger
	tracer  trace.Tracer

	mutations metric.Int64Counter
	viewCount metric.Int64Counter
}

var _ Service = (*Library)(nil)

// Option configures a Library.
type Option func(*Library)

// WithJournal records every successful mutation in j.
func WithJournal(j journal.Journal) Option {
	return func(l *Library) { l.journal = j }
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Library) { l.logger = logger }
}

// NewLibrary creates an empty library backed by store. Call Load to read
// the persisted catalog.
func NewLibrary(store Store, opts ...Option) *Library {
	l := &Library{
		views:  make(map[string]int),
		ids:    ids.NewGenerator(),
		store:  store,
		logger: zap.NewNop(),
		tracer: otel.Tracer("libracat/catalog"),
	}
	for _, opt := range opts {
		opt(l)
	}

	meter := otel.Meter("libracat/catalog")
	var err error
	if l.mutations, err = meter.Int64Counter("catalog.mutations",
		metric.WithDescription("Successful catalog mutations by operation")); err != nil {
		l.logger.Warn("create mutation counter", zap.Error(err))
	}
	if l.viewCount, err = meter.Int64Counter("catalog.book.views",
		metric.WithDescription("Book view actions")); err != nil {
		l.logger.Warn("create view counter", zap.Error(err))
	}
	return l
}

// Load replaces the in-memory catalog with the store's contents. When the
// store fails part way, the records read before the failure are kept and
// the error is returned so the caller can report it.
func (l *Library) Load(ctx context.Context) error {
	ctx, span := l.tracer.Start(ctx, "catalog.load")
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := l.store.Load(ctx)
	l.replace(items)
	if l.journal != nil {
		v, jerr := l.journal.Version(ctx)
		if jerr != nil {
			l.logger.Warn("read journal version", zap.Error(jerr))
		} else {
			l.version = v
		}
	}
	span.SetAttributes(attribute.Int("items.loaded", len(items)))

	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	return nil
}

// Reload re-reads the store after an external change. Unlike Load it
// keeps the current catalog if the store cannot be read cleanly. The
// read happens under the write lock so no mutation lands in between. View
// counts survive: stores that cannot hold popularity get it carried over
// by id, and the title map is left as it is.
func (l *Library) Reload(ctx context.Context) error {
	ctx, span := l.tracer.Start(ctx, "catalog.reload")
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := l.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("reload catalog: %w", err)
	}

	prev := make(map[int64]int, len(l.items))
	for _, it := range l.items {
		prev[it.ID] = it.Popularity
	}
	next := cloneItems(items)
	for i := range next {
		l.ids.Observe(next[i].ID)
		if next[i].IsBook() && next[i].Popularity == 0 {
			next[i].Popularity = prev[next[i].ID]
		}
	}
	l.items = next
	span.SetAttributes(attribute.Int("items.loaded", len(next)))
	return nil
}

// Version returns the number of mutations applied, continuing from the
// journal's version when one is configured.
func (l *Library) Version() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

// replace installs items and rebuilds the title-keyed view counts from
// the per-book popularity counters. Callers hold the write lock.
func (l *Library) replace(items []Item) {
	l.items = cloneItems(items)
	l.views = make(map[string]int)
	for _, it := range l.items {
		l.ids.Observe(it.ID)
		if it.IsBook() && it.Popularity > 0 {
			l.views[it.Title] += it.Popularity
		}
	}
}

// AddItem appends a plain item.
func (l *Library) AddItem(ctx context.Context, title string, typeTag int) (*Item, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	item := Item{
		Kind:  KindItem,
		Title: title,
		Type:  typeTag,
	}
	return l.add(ctx, item)
}

// AddBook appends a book. Title and author are the only required fields;
// numeric fields are stored as given.
func (l *Library) AddBook(ctx context.Context, in BookInput) (*Item, error) {
	title := strings.TrimSpace(in.Title)
	author := strings.TrimSpace(in.Author)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if author == "" {
		return nil, ErrAuthorRequired
	}

	item := Item{
		Kind:      KindBook,
		Title:     title,
		Type:      in.Type,
		Author:    author,
		PageCount: in.PageCount,
		Year:      in.Year,
	}
	return l.add(ctx, item)
}

func (l *Library) add(ctx context.Context, item Item) (*Item, error) {
	ctx, span := l.tracer.Start(ctx, "catalog.add",
		trace.WithAttributes(attribute.String("item.kind", item.Kind.String())))
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	item.ID = l.ids.Next()
	next := append(cloneItems(l.items), item)

	event := newEvent(EventItemAdded, item.ID, ItemAddedEvent{
		ID:     item.ID,
		Kind:   item.Kind,
		Title:  item.Title,
		Author: item.Author,
	})
	if err := l.commit(ctx, "add item", next, nil, event); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int64("item.id", item.ID))
	return &item, nil
}

// GetItem retrieves an item by id.
func (l *Library) GetItem(ctx context.Context, id int64) (*Item, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i := l.indexOfID(id)
	if i < 0 {
		return nil, fmt.Errorf("item with ID %d: %w", id, ErrItemNotFound)
	}
	item := l.items[i]
	return &item, nil
}

// FindByTitle returns the first item whose title equals title exactly.
func (l *Library) FindByTitle(ctx context.Context, title string) (*Item, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, it := range l.items {
		if it.Title == title {
			item := it
			return &item, nil
		}
	}
	return nil, fmt.Errorf("item titled %q: %w", title, ErrItemNotFound)
}

// FindBook is FindByTitle restricted to books.
func (l *Library) FindBook(ctx context.Context, title string) (*Item, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, it := range l.items {
		if it.IsBook() && it.Title == title {
			item := it
			return &item, nil
		}
	}
	return nil, fmt.Errorf("book titled %q: %w", title, ErrItemNotFound)
}

// ListItems returns copies of all items in insertion order.
func (l *Library) ListItems(ctx context.Context) ([]*Item, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*Item, len(l.items))
	for i := range l.items {
		item := l.items[i]
		out[i] = &item
	}
	return out, nil
}

// EditBook overwrites the title, author, page count and year of a book.
func (l *Library) EditBook(ctx context.Context, id int64, edit BookEdit) (*Item, error) {
	ctx, span := l.tracer.Start(ctx, "catalog.edit_book",
		trace.WithAttributes(attribute.Int64("item.id", id)))
	defer span.End()

	title := strings.TrimSpace(edit.Title)
	author := strings.TrimSpace(edit.Author)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if author == "" {
		return nil, ErrAuthorRequired
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOfID(id)
	if i < 0 {
		return nil, fmt.Errorf("item with ID %d: %w", id, ErrItemNotFound)
	}
	if !l.items[i].IsBook() {
		return nil, fmt.Errorf("item with ID %d: %w", id, ErrNotABook)
	}

	next := cloneItems(l.items)
	oldTitle := next[i].Title
	next[i].Title = title
	next[i].Author = author
	next[i].PageCount = edit.PageCount
	next[i].Year = edit.Year

	event := newEvent(EventBookEdited, id, BookEditedEvent{
		ID:       id,
		OldTitle: oldTitle,
		NewTitle: title,
		Author:   author,
	})
	if err := l.commit(ctx, "edit book", next, nil, event); err != nil {
		return nil, err
	}

	item := next[i]
	return &item, nil
}

// DeleteByTitle removes the first item whose title equals title and
// returns it. Later items with the same title stay in the catalog.
func (l *Library) DeleteByTitle(ctx context.Context, title string) (*Item, error) {
	ctx, span := l.tracer.Start(ctx, "catalog.delete_by_title")
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	i := -1
	for j, it := range l.items {
		if it.Title == title {
			i = j
			break
		}
	}
	if i < 0 {
		return nil, fmt.Errorf("item titled %q: %w", title, ErrItemNotFound)
	}

	removed := l.items[i]
	next := make([]Item, 0, len(l.items)-1)
	next = append(next, l.items[:i]...)
	next = append(next, l.items[i+1:]...)

	event := newEvent(EventItemDeleted, removed.ID, ItemDeletedEvent{
		ID:    removed.ID,
		Title: removed.Title,
	})
	if err := l.commit(ctx, "delete item", next, nil, event); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int64("item.id", removed.ID))
	return &removed, nil
}

// ViewBook counts one view of a book, both on the book itself and in the
// title-keyed popularity map.
func (l *Library) ViewBook(ctx context.Context, id int64) (*Item, error) {
	ctx, span := l.tracer.Start(ctx, "catalog.view_book",
		trace.WithAttributes(attribute.Int64("item.id", id)))
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOfID(id)
	if i < 0 {
		return nil, fmt.Errorf("item with ID %d: %w", id, ErrItemNotFound)
	}
	if !l.items[i].IsBook() {
		return nil, fmt.Errorf("item with ID %d: %w", id, ErrNotABook)
	}

	next := cloneItems(l.items)
	next[i].Popularity++
	views := make(map[string]int, len(l.views)+1)
	for k, v := range l.views {
		views[k] = v
	}
	views[next[i].Title]++

	event := newEvent(EventBookViewed, id, BookViewedEvent{
		ID:         id,
		Title:      next[i].Title,
		Popularity: next[i].Popularity,
		TitleViews: views[next[i].Title],
	})
	if err := l.commit(ctx, "view book", next, views, event); err != nil {
		return nil, err
	}
	if l.viewCount != nil {
		l.viewCount.Add(ctx, 1)
	}

	item := next[i]
	return &item, nil
}

// Popularity returns the title-keyed view counts, most viewed first.
// Titles stay in the map after their books are deleted or renamed.
func (l *Library) Popularity(ctx context.Context) ([]PopularityEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := make([]PopularityEntry, 0, len(l.views))
	for title, views := range l.views {
		entries = append(entries, PopularityEntry{Title: title, Views: views})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Views != entries[j].Views {
			return entries[i].Views > entries[j].Views
		}
		return entries[i].Title < entries[j].Title
	})
	return entries, nil
}

// commit persists next and only then makes it the live catalog, so a
// failed save leaves memory untouched. Callers hold the write lock.
func (l *Library) commit(ctx context.Context, op string, next []Item, views map[string]int, event journal.Event) error {
	if err := l.store.Save(ctx, next); err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
		return fmt.Errorf("%s: save catalog: %w", op, err)
	}

	l.items = next
	if views != nil {
		l.views = views
	}
	l.version++
	if l.mutations != nil {
		l.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", event.Type)))
	}
	l.record(ctx, event)
	return nil
}

// record appends the event to the journal. A stale journal version is
// resynchronised once; journal failures never undo the mutation.
func (l *Library) record(ctx context.Context, event journal.Event) {
	if l.journal == nil {
		return
	}

	err := l.journal.Append(ctx, l.version-1, event)
	if errors.Is(err, journal.ErrConcurrencyConflict) {
		v, verr := l.journal.Version(ctx)
		if verr != nil {
			l.logger.Warn("journal version resync failed", zap.Error(verr))
			return
		}
		l.logger.Info("journal version moved, resyncing",
			zap.Int("catalog_version", l.version-1), zap.Int("journal_version", v))
		l.version = v + 1
		err = l.journal.Append(ctx, v, event)
	}
	if err != nil {
		l.logger.Warn("journal append failed",
			zap.String("event", event.Type), zap.Int64("item_id", event.ItemID), zap.Error(err))
	}
}

func (l *Library) indexOfID(id int64) int {
	for i, it := range l.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func newEvent(eventType string, itemID int64, payload interface{}) journal.Event {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	return journal.Event{
		Type:   eventType,
		ItemID: itemID,
		Data:   data,
	}
}

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
