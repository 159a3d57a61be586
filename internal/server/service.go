package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/GoliathLabs/applica/internal/logging"
)

const defaultShutdownTimeout = 10 * time.Second

// HTTPService runs an HTTP server as a supervised service. Cancelling the
// context passed to Serve shuts the server down gracefully.
type HTTPService struct {
	server          *http.Server
	shutdownTimeout time.Duration
	listener        net.Listener
}

// NewHTTPService wraps handler with h2c and binds it to addr.
func NewHTTPService(addr string, handler http.Handler) *HTTPService {
	return &HTTPService{
		server: &http.Server{
			Addr:              addr,
			Handler:           h2c.NewHandler(handler, &http2.Server{}),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		shutdownTimeout: defaultShutdownTimeout,
	}
}

// WithListener serves on l instead of listening on the configured address.
func (s *HTTPService) WithListener(l net.Listener) *HTTPService {
	s.listener = l
	return s
}

// Serve blocks until the server fails or ctx is cancelled.
func (s *HTTPService) Serve(ctx context.Context) error {
	log := logging.FromContext(ctx).WithField(logging.FieldComponent, "http")

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", s.server.Addr).Info("starting HTTP server")
		if s.listener != nil {
			errCh <- s.server.Serve(s.listener)
			return
		}
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()

		log.Info("shutting down HTTP server")
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			_ = s.server.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		log.Info("HTTP server stopped")
		return ctx.Err()
	}
}

func (s *HTTPService) String() string {
	return "http-server"
}
