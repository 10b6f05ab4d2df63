package main

import (
	"bytes"
	"context"
	"libracat/internal/catalog"
	"libracat/internal/journal"
	"libracat/internal/server"
	"libracat/internal/storage"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// workspace writes a config pointing at a catalog file in a temp dir.
func workspace(t *testing.T) (configPath, catalogPath string) {
	t.Helper()
	dir := t.TempDir()
	catalogPath = filepath.Join(dir, "items.txt")
	configPath = filepath.Join(dir, "libracat.yaml")
	cfg := "storage:\n  backend: file\n  path: " + catalogPath + "\nlogging:\n  level: error\n"
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o644))
	return configPath, catalogPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLocalCommandsPersistToFile(t *testing.T) {
	cfg, path := workspace(t)

	out, err := execute(t, "--config", cfg, "add", "book", "--title", "Kindred", "--author", "Octavia Butler", "--pages", "264", "--year", "1979")
	require.NoError(t, err)
	assert.Contains(t, out, "added book 1")

	out, err = execute(t, "--config", cfg, "add", "item", "Globe", "--type", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "added item 2")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1, Kindred, Octavia Butler, 264, 1979, 0\n2, Globe, 3\n", string(raw))

	out, err = execute(t, "--config", cfg, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Kindred")
	assert.Contains(t, out, "Globe")

	out, err = execute(t, "--config", cfg, "edit", "1", "--year", "1980")
	require.NoError(t, err)
	assert.Contains(t, out, "1980")

	raw, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "1, Kindred, Octavia Butler, 264, 1980, 0\n")

	out, err = execute(t, "--config", cfg, "delete", "Globe")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted 2")

	out, err = execute(t, "--config", cfg, "add", "item", "Atlas")
	require.NoError(t, err)
	assert.Contains(t, out, "added item 2", "ids continue from the highest id on file")
}

func TestEphemeralLeavesFileAlone(t *testing.T) {
	cfg, path := workspace(t)

	out, err := execute(t, "--config", cfg, "--ephemeral", "add", "item", "Globe")
	require.NoError(t, err)
	assert.Contains(t, out, "added item 1")

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLocalEventsExplainsMemoryJournal(t *testing.T) {
	cfg, _ := workspace(t)

	_, err := execute(t, "--config", cfg, "add", "item", "Globe")
	require.NoError(t, err)

	out, err := execute(t, "--config", cfg, "events")
	require.NoError(t, err)
	assert.Contains(t, out, "no local journal history")
	assert.Contains(t, out, "--server")
}

func TestFindAndErrors(t *testing.T) {
	cfg, _ := workspace(t)

	_, err := execute(t, "--config", cfg, "add", "item", "Globe")
	require.NoError(t, err)

	out, err := execute(t, "--config", cfg, "find", "Globe")
	require.NoError(t, err)
	assert.Contains(t, out, "Globe")

	_, err = execute(t, "--config", cfg, "find", "--book", "Globe")
	assert.ErrorIs(t, err, catalog.ErrItemNotFound)

	_, err = execute(t, "--config", cfg, "edit", "1", "--title", "x")
	assert.ErrorIs(t, err, catalog.ErrNotABook)

	_, err = execute(t, "--config", cfg, "view", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "whole number")

	_, err = execute(t, "--config", cfg, "add", "item", "Comma, Title")
	assert.ErrorIs(t, err, catalog.ErrUnencodable)

	_, err = execute(t, "--config", cfg, "add", "book", "--title", "No Author")
	assert.Error(t, err, "author flag is required")
}

func TestViewAndChartLocal(t *testing.T) {
	cfg, _ := workspace(t)

	_, err := execute(t, "--config", cfg, "add", "book", "--title", "Dune", "--author", "Frank Herbert")
	require.NoError(t, err)

	out, err := execute(t, "--config", cfg, "view", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Dune: 1 views")

	// The flat file does not keep view counts between runs.
	out, err = execute(t, "--config", cfg, "chart")
	require.NoError(t, err)
	assert.Contains(t, out, "no books viewed yet")
}

func TestRemoteMode(t *testing.T) {
	j := journal.NewMemoryJournal()
	lib := catalog.NewLibrary(storage.NewMemoryStore(), catalog.WithJournal(j))
	require.NoError(t, lib.Load(context.Background()))
	s, err := server.New(server.Config{}, catalog.NewHandler(lib, j, zap.NewNop()), nil)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	cfg, path := workspace(t)

	_, err = execute(t, "--config", cfg, "--server", srv.URL, "add", "book", "--title", "Dune", "--author", "Frank Herbert")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = execute(t, "--config", cfg, "--server", srv.URL, "view", "1")
		require.NoError(t, err)
	}

	out, err := execute(t, "--config", cfg, "--server", srv.URL, "chart", "--width", "6")
	require.NoError(t, err)
	assert.Contains(t, out, "Dune")
	assert.Equal(t, 6, strings.Count(out, "█"))

	out, err = execute(t, "--config", cfg, "--server", srv.URL, "events", "--after", "1")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, catalog.EventBookViewed))

	out, err = execute(t, "--config", cfg, "--server", srv.URL, "list", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"popularity": 3`)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "remote mode never touches the local file")
}

func TestHashToken(t *testing.T) {
	cfg, _ := workspace(t)

	out, err := execute(t, "--config", cfg, "hash-token", "s3cret")
	require.NoError(t, err)
	assert.Contains(t, out, ":")

	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetIn(strings.NewReader("from-stdin\n"))
	cmd.SetArgs([]string{"--config", cfg, "hash-token"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), ":")

	_, err = execute(t, "--config", cfg, "hash-token", "")
	assert.Error(t, err)
}

func TestServeRejectsServerFlag(t *testing.T) {
	cfg, _ := workspace(t)
	_, err := execute(t, "--config", cfg, "--server", "http://example.invalid", "serve")
	assert.Error(t, err)
}

func TestReloadIfChanged(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "items.txt")
	fs := storage.NewFileStore(path)
	lib := catalog.NewLibrary(fs)
	require.NoError(t, lib.Load(ctx))

	book, err := lib.AddBook(ctx, catalog.BookInput{Title: "Dune", Author: "Frank Herbert"})
	require.NoError(t, err)
	_, err = lib.ViewBook(ctx, book.ID)
	require.NoError(t, err)

	// Our own save is not a change.
	reloadIfChanged(ctx, fs, lib, zap.NewNop())
	items, err := lib.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, os.WriteFile(path, []byte("1, Dune, Frank Herbert, 0, 0, 0\n7, Globe, 0\n"), 0o644))
	reloadIfChanged(ctx, fs, lib, zap.NewNop())

	items, err = lib.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].Popularity, "views survive a reload")

	added, err := lib.AddItem(ctx, "Atlas", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(8), added.ID)

	// A broken file keeps the current catalog.
	require.NoError(t, os.WriteFile(path, []byte("garbage\n"), 0o644))
	reloadIfChanged(ctx, fs, lib, zap.NewNop())
	items, err = lib.ListItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}
