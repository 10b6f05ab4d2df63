// internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"libracat/internal/auth"
	"libracat/internal/catalog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 10 * time.Second

type Config struct {
	Addr string
	// RateLimit is requests per second across all clients; 0 disables it.
	RateLimit float64
	Burst     int
	// AdminTokenHash, when set, guards mutating routes with a bearer token.
	AdminTokenHash string
}

type Server struct {
	cfg     Config
	router  chi.Router
	logger  *zap.Logger
	httpSrv *http.Server
}

// New builds the router for h. Requests pass through request id, real
// ip, logging, panic recovery and the rate limiter in that order.
func New(cfg Config, h *catalog.Handler, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var verifier *auth.Verifier
	if cfg.AdminTokenHash != "" {
		v, err := auth.NewVerifier(cfg.AdminTokenHash)
		if err != nil {
			return nil, fmt.Errorf("admin token hash: %w", err)
		}
		verifier = v
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		r.Use(rateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	r.Group(h.ReadRoutes)
	r.Group(func(r chi.Router) {
		if verifier != nil {
			r.Use(requireToken(verifier))
		}
		h.WriteRoutes(r)
	})

	return &Server{
		cfg:    cfg,
		router: r,
		logger: logger,
	}, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe listens on the configured address and serves until ctx
// is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpSrv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("catalog API listening", zap.String("addr", ln.Addr().String()))
		errCh <- s.httpSrv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down catalog API")
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
