// cmd/libracat/cmd_serve.go
package main

import (
	"context"
	"fmt"
	"libracat/internal/catalog"
	"libracat/internal/server"
	"libracat/internal/storage"
	"libracat/internal/telemetry"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog over HTTP",
		Long: `Serves the local catalog over a JSON HTTP API until interrupted.

With storage.watch enabled and the file backend, edits made to the
catalog file by other programs are picked up automatically.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.serverURL != "" {
				return fmt.Errorf("serve always uses the local store; drop --server")
			}
			if addr != "" {
				opts.cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func runServe(ctx context.Context, opts *options) error {
	cfg, logger := opts.cfg, opts.logger

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("flush traces", zap.Error(err))
		}
	}()

	sess, err := openLocal(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	srv, err := server.New(server.Config{
		Addr:           cfg.Server.Addr,
		RateLimit:      cfg.Server.RateLimit,
		Burst:          cfg.Server.Burst,
		AdminTokenHash: cfg.Server.AdminTokenHash,
	}, catalog.NewHandler(sess.library, sess.journal, logger), logger)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx)
	})

	if fs, ok := sess.backend.(*storage.FileStore); ok && cfg.Storage.Watch {
		w := storage.NewWatcher(fs.Path(), cfg.WatchDebounce(), logger, func() {
			reloadIfChanged(ctx, fs, sess.library, logger)
		})
		g.Go(func() error {
			return w.Run(ctx)
		})
	} else if cfg.Storage.Watch {
		logger.Warn("storage.watch only applies to the file backend", zap.String("backend", cfg.Storage.Backend))
	}

	return g.Wait()
}

// reloadIfChanged reloads the catalog unless the change was our own save.
func reloadIfChanged(ctx context.Context, fs *storage.FileStore, lib *catalog.Library, logger *zap.Logger) {
	modified, err := fs.Modified()
	if err != nil {
		logger.Warn("check catalog file", zap.Error(err))
		return
	}
	if !modified {
		return
	}
	if err := lib.Reload(ctx); err != nil {
		logger.Warn("catalog file changed but could not be reloaded; keeping current catalog", zap.Error(err))
		return
	}
	logger.Info("catalog reloaded from file", zap.String("path", fs.Path()))
}
