package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// Server wraps an [http.Server] with context-driven graceful shutdown.
type Server struct {
	srv    *http.Server
	grace  time.Duration
	logger *slog.Logger
	onStop []func(ctx context.Context) error
	cert   certPair

	mu   sync.Mutex
	addr net.Addr
}

// New creates a Server for handler. Only request headers are bounded by
// default; see [WithReadTimeout] and [WithWriteTimeout].
func New(handler http.Handler, opts ...Option) *Server {
	o := defaults()
	for _, opt := range opts {
		opt(&o)
	}

	return &Server{
		srv: &http.Server{
			Addr:              o.host,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       o.timeouts.read,
			WriteTimeout:      o.timeouts.write,
			IdleTimeout:       o.timeouts.idle,
		},
		grace:  o.grace,
		logger: o.logger,
		onStop: o.onStop,
		cert:   o.cert,
	}
}

// Run listens on the configured host and serves until ctx is done, then
// shuts down gracefully within the shutdown timeout. It returns nil on
// clean shutdown or an error if the server fails to start or shut down.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	serverErrs := make(chan error, 1)
	go func() {
		s.logger.Info("server started", "addr", ln.Addr().String(), "tls", s.cert.enabled())

		if s.cert.enabled() {
			serverErrs <- s.srv.ServeTLS(ln, s.cert.certFile, s.cert.keyFile)
		} else {
			serverErrs <- s.srv.Serve(ln)
		}
	}()

	select {
	case err := <-serverErrs:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		return nil

	case <-ctx.Done():
		s.logger.Info("shutdown requested", "cause", context.Cause(ctx))

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.grace)
		defer cancel()

		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}

		s.logger.Info("shutdown complete")

		return nil
	}
}

// Addr reports the address the server is listening on, or nil before Run
// has bound it. With a host of ":0" this carries the chosen port.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addr
}

// Shutdown gracefully shuts down the server. It first runs any registered
// shutdown functions in order, then drains in-flight requests. Callers
// should set a deadline on ctx to bound how long shutdown may take.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, fn := range s.onStop {
		if err := fn(ctx); err != nil {
			s.logger.Error("shutdown func", "error", err)
		}
	}

	if err := s.srv.Shutdown(ctx); err != nil {
		s.srv.Close()
		return fmt.Errorf("server didn't stop gracefully: %w", err)
	}

	return nil
}
