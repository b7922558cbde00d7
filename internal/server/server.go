// Package server wires the endpoints and middleware into an HTTP server
// with graceful shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bashirn3/cursor-azure-claude/internal/config"
	"github.com/bashirn3/cursor-azure-claude/internal/handlers"
	"github.com/bashirn3/cursor-azure-claude/internal/middleware"
	"github.com/bashirn3/cursor-azure-claude/internal/providers"
)

// shutdownTimeout bounds how long in-flight requests may run after a
// termination signal. Long-lived streams are cut at this point.
const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg    config.Config
	srv    *http.Server
	logger *slog.Logger
}

// New builds the server with all routes and middleware attached.
func New(cfg config.Config, version string, logger *slog.Logger) *Server {
	registry := providers.NewRegistry(providers.UUIDGenerator{})

	proxy := handlers.NewProxyHandler(cfg, registry, logger)
	messages := handlers.NewMessagesHandler(cfg, logger)
	health := handlers.NewHealthHandler(cfg)
	info := handlers.NewInfoHandler(cfg, version)

	mux := http.NewServeMux()
	mux.Handle("/chat/completions", proxy)
	mux.Handle("/v1/chat/completions", proxy)
	mux.Handle("/v1/messages", messages)
	mux.Handle("/health", health)
	mux.Handle("/", info)

	handler := middleware.Chain(mux,
		middleware.Logging(logger),
		middleware.CORS(),
		middleware.Auth(cfg),
	)

	return &Server{
		cfg:    cfg,
		logger: logger,
		srv: &http.Server{
			Addr:    cfg.Addr(),
			Handler: handler,
			// No WriteTimeout: streaming responses outlive any fixed bound.
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start serves until a termination signal arrives, then drains in-flight
// requests.
func (s *Server) Start() error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.logger.Info("server listening", "addr", s.cfg.Addr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		s.logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.srv.Shutdown(ctx)
}
