// cmd/libracat/session.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"libracat/internal/catalog"
	"libracat/internal/client"
	"libracat/internal/config"
	"libracat/internal/journal"
	"libracat/internal/storage"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// session is an open catalog, local or remote.
type session struct {
	svc     catalog.Service
	library *catalog.Library
	backend storage.Backend
	journal journal.Journal
	remote  *client.CatalogClient
	closers []func() error
}

func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Events reads the journal, from the server when remote.
func (s *session) Events(ctx context.Context, after int64, limit int) ([]journal.Event, error) {
	if s.remote != nil {
		return s.remote.Events(ctx, after, limit)
	}
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.Stream(ctx, after, limit)
}

func openSession(ctx context.Context, opts *options) (*session, error) {
	if opts.serverURL != "" {
		c := client.NewCatalogClient(opts.serverURL, client.WithToken(opts.token))
		opts.logger.Debug("using remote catalog", zap.String("server", opts.serverURL))
		return &session{svc: c, remote: c}, nil
	}
	return openLocal(ctx, opts.cfg, opts.logger)
}

// openLocal opens the configured store and journal and loads the catalog.
// A store that fails part way keeps the records read so far; the failure
// is logged and the session stays usable.
func openLocal(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*session, error) {
	s := &session{}

	backend, err := storage.Open(ctx, storage.Config{
		Backend: cfg.Storage.Backend,
		Path:    cfg.Storage.Path,
		DSN:     cfg.Storage.DSN,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	s.backend = backend
	s.closers = append(s.closers, backend.Close)

	j, closeJournal, err := openJournal(ctx, cfg.Journal)
	if err != nil {
		s.Close()
		return nil, err
	}
	if closeJournal != nil {
		s.closers = append(s.closers, closeJournal)
	}
	s.journal = j

	libOpts := []catalog.Option{catalog.WithLogger(logger)}
	if j != nil {
		libOpts = append(libOpts, catalog.WithJournal(j))
	}
	s.library = catalog.NewLibrary(backend, libOpts...)
	s.svc = s.library

	if err := s.library.Load(ctx); err != nil {
		logger.Warn("catalog loaded with errors; keeping the records read before the failure",
			zap.String("backend", cfg.Storage.Backend),
			zap.Error(err))
	}
	return s, nil
}

func openJournal(ctx context.Context, cfg config.JournalConfig) (journal.Journal, func() error, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil, nil
	case "memory":
		return journal.NewMemoryJournal(), nil, nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open journal database: %w", err)
		}
		pj := journal.NewPostgresJournal(db)
		if err := pj.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return pj, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown journal backend %q", cfg.Backend)
	}
}
