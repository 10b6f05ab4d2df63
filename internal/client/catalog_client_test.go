package client

import (
	"context"
	"libracat/internal/auth"
	"libracat/internal/catalog"
	"libracat/internal/journal"
	"libracat/internal/server"
	"libracat/internal/storage"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRemote(t *testing.T, store catalog.Store, cfg server.Config, opts ...Option) *CatalogClient {
	t.Helper()
	j := journal.NewMemoryJournal()
	lib := catalog.NewLibrary(store, catalog.WithJournal(j))
	require.NoError(t, lib.Load(context.Background()))

	s, err := server.New(cfg, catalog.NewHandler(lib, j, nil), nil)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return NewCatalogClient(srv.URL+"/", opts...)
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newRemote(t, storage.NewMemoryStore(), server.Config{})

	book, err := c.AddBook(ctx, catalog.BookInput{Title: "Dune", Author: "Frank Herbert", PageCount: 412, Year: 1965, Type: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), book.ID)
	assert.True(t, book.IsBook())

	item, err := c.AddItem(ctx, "Globe", 3)
	require.NoError(t, err)
	assert.Equal(t, catalog.KindItem, item.Kind)

	got, err := c.GetItem(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book, got)

	found, err := c.FindByTitle(ctx, "Globe")
	require.NoError(t, err)
	assert.Equal(t, item.ID, found.ID)

	_, err = c.FindBook(ctx, "Globe")
	assert.ErrorIs(t, err, catalog.ErrItemNotFound)

	edited, err := c.EditBook(ctx, book.ID, catalog.BookEdit{Title: "Dune", Author: "F. Herbert", PageCount: 400, Year: 1965})
	require.NoError(t, err)
	assert.Equal(t, "F. Herbert", edited.Author)

	viewed, err := c.ViewBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, viewed.Popularity)

	entries, err := c.Popularity(ctx)
	require.NoError(t, err)
	assert.Equal(t, []catalog.PopularityEntry{{Title: "Dune", Views: 1}}, entries)

	removed, err := c.DeleteByTitle(ctx, "Globe")
	require.NoError(t, err)
	assert.Equal(t, item.ID, removed.ID)

	items, err := c.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, book.ID, items[0].ID)

	events, err := c.Events(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestClientMapsErrors(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "items.txt")
	c := newRemote(t, storage.NewFileStore(path), server.Config{})

	_, err := c.GetItem(ctx, 99)
	assert.ErrorIs(t, err, catalog.ErrItemNotFound)

	_, err = c.AddItem(ctx, " ", 0)
	assert.ErrorIs(t, err, catalog.ErrTitleRequired)

	_, err = c.AddBook(ctx, catalog.BookInput{Title: "x"})
	assert.ErrorIs(t, err, catalog.ErrAuthorRequired)

	item, err := c.AddItem(ctx, "Globe", 0)
	require.NoError(t, err)
	_, err = c.ViewBook(ctx, item.ID)
	assert.ErrorIs(t, err, catalog.ErrNotABook)

	_, err = c.AddItem(ctx, "Comma, Separated", 0)
	assert.ErrorIs(t, err, catalog.ErrUnencodable)

	_, err = c.DeleteByTitle(ctx, "Nope")
	assert.ErrorIs(t, err, catalog.ErrItemNotFound)
}

func TestClientSendsToken(t *testing.T) {
	ctx := context.Background()
	hash, err := auth.HashToken("tok")
	require.NoError(t, err)

	anon := newRemote(t, storage.NewMemoryStore(), server.Config{AdminTokenHash: hash})
	_, err = anon.AddItem(ctx, "Globe", 0)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = anon.ListItems(ctx)
	assert.NoError(t, err)

	admin := newRemote(t, storage.NewMemoryStore(), server.Config{AdminTokenHash: hash}, WithToken("tok"))
	_, err = admin.AddItem(ctx, "Globe", 0)
	assert.NoError(t, err)
}

func TestClientUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "teapot", http.StatusTeapot)
	}))
	defer srv.Close()

	c := NewCatalogClient(srv.URL, WithHTTPClient(srv.Client()))
	_, err := c.ListItems(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "418")
	assert.Contains(t, err.Error(), "teapot")
}
