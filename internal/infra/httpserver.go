package infra

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HTTPServer runs the API until its context ends, then drains in-flight
// requests for at most the configured grace period.
type HTTPServer struct {
	server   *http.Server
	grace    time.Duration
	draining chan struct{}
}

func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	s := &HTTPServer{
		server: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           handler,
			ReadTimeout:       cfg.HTTPReadTimeout,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      cfg.HTTPWriteTimeout,
			IdleTimeout:       cfg.HTTPIdleTimeout,
		},
		grace:    cfg.ShutdownGrace,
		draining: make(chan struct{}),
	}
	// Long-lived streams watch Draining and end themselves; Shutdown would
	// otherwise wait the whole grace period for them.
	s.server.RegisterOnShutdown(func() { close(s.draining) })
	return s
}

// Draining is closed once shutdown starts.
func (s *HTTPServer) Draining() <-chan struct{} {
	return s.draining
}

func (s *HTTPServer) Addr() string {
	return s.server.Addr
}

// Run serves until ctx is cancelled or the listener fails.
func (s *HTTPServer) Run(ctx context.Context, logger zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", s.server.Addr).Msg("API listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	grace := s.grace
	if grace <= 0 {
		grace = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	logger.Info().Dur("grace", grace).Msg("draining connections")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
