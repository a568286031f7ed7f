// Package http serves the runtime's admin API with gin: health probes,
// application enablement, context probes and realm reports.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/managed-concurrency/internal/platform/config"
)

// Server owns the admin listener. Start binds synchronously so a port of 0
// resolves before Start returns.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	config     *config.ServerConfig
	logger     *slog.Logger

	mu       sync.Mutex
	listener net.Listener
}

// New builds a server around a fresh gin engine that caps request bodies at
// cfg.MaxRequestSize.
func New(cfg *config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(maxBodySize(cfg.MaxRequestSize))

	return &Server{
		engine: engine,
		httpServer: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler:           engine,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
		config: cfg,
		logger: logger.With(slog.String("component", "admin-server")),
	}
}

// Engine returns the gin engine for route registration.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Config returns the server configuration.
func (s *Server) Config() *config.ServerConfig {
	return s.config
}

// Start binds the listener and serves in the background. The channel yields
// a bind or serve error, if any, and is closed once serving stops.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		errCh <- fmt.Errorf("admin server listen: %w", err)
		close(errCh)

		return errCh
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("admin server listening",
		slog.String("addr", ln.Addr().String()),
		slog.Duration("read_timeout", s.config.ReadTimeout),
		slog.Duration("write_timeout", s.config.WriteTimeout),
	)

	go func() {
		defer close(errCh)

		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("admin server: %w", err)
		}
	}()

	return errCh
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.InfoContext(ctx, "admin server draining")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("admin server shutdown: %w", err)
	}

	s.logger.InfoContext(ctx, "admin server stopped")

	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}

	return s.httpServer.Addr
}

func maxBodySize(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
