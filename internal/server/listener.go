package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"

	"github.com/infodancer/mailstackd/internal/config"
)

// ConnectionHandler processes one accepted connection. Implementations run
// in their own goroutine and must return once the connection is done;
// Listener does not enforce a deadline on the handler itself.
type ConnectionHandler func(ctx context.Context, conn *Connection)

// ListenerConfig configures a single listening socket.
type ListenerConfig struct {
	Address   string
	Mode      config.ListenerMode
	TLSConfig *tls.Config
	Logger    *slog.Logger
	Handler   ConnectionHandler
	Limiter   *ConnectionLimiter
}

// Listener accepts connections on one address and dispatches each to a
// Handler goroutine, the way the teacher's pop3.Listener fans POP3/POP3S
// sockets out to per-connection handler goroutines.
type Listener struct {
	cfg ListenerConfig
	ln  net.Listener
}

// NewListener constructs a Listener; it does not bind a socket until Start runs.
func NewListener(cfg ListenerConfig) *Listener {
	return &Listener{cfg: cfg}
}

// Address returns the configured listen address.
func (l *Listener) Address() string {
	return l.cfg.Address
}

// Start binds the listening socket and accepts connections until ctx is
// canceled or Close is called. Each accepted connection is handed to a new
// goroutine running the configured Handler.
func (l *Listener) Start(ctx context.Context) error {
	var ln net.Listener
	var err error

	if l.cfg.Mode == config.ModeTLS {
		if l.cfg.TLSConfig == nil {
			return errors.New("server: TLS listener requires a TLS configuration")
		}
		ln, err = tls.Listen("tcp", l.cfg.Address, l.cfg.TLSConfig)
	} else {
		ln, err = net.Listen("tcp", l.cfg.Address)
	}
	if err != nil {
		return err
	}
	l.ln = ln

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	logger := l.cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return err
			}
		}

		if l.cfg.Limiter != nil && !l.cfg.Limiter.TryAcquire() {
			logger.Warn("connection refused: at capacity", slog.String("remote", conn.RemoteAddr().String()))
			_ = conn.Close()
			continue
		}

		go func(raw net.Conn) {
			if l.cfg.Limiter != nil {
				defer l.cfg.Limiter.Release()
			}
			defer func() {
				if r := recover(); r != nil {
					logger.Error("connection handler panic", slog.Any("panic", r))
				}
			}()

			c := NewConnection(raw, l.cfg.Mode == config.ModeTLS, logger)
			defer c.Close()
			l.cfg.Handler(ctx, c)
		}(conn)
	}
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	if l.ln == nil {
		return nil
	}
	return l.ln.Close()
}
