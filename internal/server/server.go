package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync"

	"github.com/infodancer/mailstackd/internal/config"
	"github.com/infodancer/mailstackd/internal/logging"
)

// Server coordinates the listener set for one protocol engine (IMAP or
// SMTP). mailstackd runs two Servers, one per protocol, sharing the same
// TLS configuration and connection limiter, the way the teacher's
// server.Server coordinates one process's listeners.
type Server struct {
	protocol       string
	configured     []config.ListenerConfig
	tlsConfig      *tls.Config
	logger         *slog.Logger
	limiter        *ConnectionLimiter
	handler        ConnectionHandler

	running []*Listener
	mu      sync.Mutex
}

// Config holds the settings needed to create a new Server.
type Config struct {
	Protocol       string
	Listeners      []config.ListenerConfig
	TLSConfig      *tls.Config
	Logger         *slog.Logger
	MaxConnections int
	Handler        ConnectionHandler
}

// New creates a new Server with the given configuration.
func New(sc Config) (*Server, error) {
	if sc.Handler == nil {
		return nil, fmt.Errorf("server: %s: a connection handler is required", sc.Protocol)
	}

	logger := sc.Logger
	if logger == nil {
		logger = logging.NewLogger("info")
	}

	max := sc.MaxConnections
	if max <= 0 {
		max = 500
	}

	return &Server{
		protocol:   sc.Protocol,
		configured: sc.Listeners,
		tlsConfig:  sc.TLSConfig,
		logger:     logger,
		limiter:    NewConnectionLimiter(max),
		handler:    sc.Handler,
	}, nil
}

// Run starts all configured listeners and blocks until the context is
// canceled. All listeners run in their own goroutines.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	for _, lc := range s.configured {
		if lc.Mode == config.ModeTLS && s.tlsConfig == nil {
			s.mu.Unlock()
			return fmt.Errorf("listener %s: TLS required but not configured", lc.Address)
		}

		listener := NewListener(ListenerConfig{
			Address:   lc.Address,
			Mode:      lc.Mode,
			TLSConfig: s.tlsConfig,
			Logger:    s.logger,
			Handler:   s.handler,
			Limiter:   s.limiter,
		})
		s.running = append(s.running, listener)
	}
	s.mu.Unlock()

	s.logger.Info("starting server",
		slog.String("protocol", s.protocol),
		slog.Int("listener_count", len(s.running)),
	)

	var wg sync.WaitGroup
	errChan := make(chan error, len(s.running))

	for _, l := range s.running {
		wg.Add(1)
		go func(listener *Listener) {
			defer wg.Done()
			if err := listener.Start(ctx); err != nil && err != context.Canceled {
				errChan <- fmt.Errorf("listener %s: %w", listener.Address(), err)
			}
		}(l)
	}

	<-ctx.Done()
	s.logger.Info("server shutting down", slog.String("protocol", s.protocol))

	wg.Wait()
	close(errChan)

	var firstErr error
	for err := range errChan {
		if firstErr == nil {
			firstErr = err
		}
		s.logger.Error("listener error", slog.String("error", err.Error()))
	}

	s.logger.Info("server stopped", slog.String("protocol", s.protocol))

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// Shutdown stops accepting new connections on all listeners.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.running {
		_ = l.Close()
	}
}

// Logger returns the server's logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// TLSConfig returns the server's TLS configuration, if any.
func (s *Server) TLSConfig() *tls.Config {
	return s.tlsConfig
}
