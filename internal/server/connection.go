package server

import (
	"crypto/tls"
	"log/slog"
	"net"
	"sync"
)

// Connection wraps an accepted net.Conn with the bookkeeping the protocol
// engines need: whether TLS is active, and an in-place upgrade path for
// STARTTLS/STLS. Unlike the line-buffering connection the POP3 engine used,
// mailstackd's protocol engines build their own internal/codec.Codec
// directly over Conn() so the reader/writer goroutine split (spec section
// 4.5) owns framing; Connection itself only owns the raw stream and the
// TLS state transition.
type Connection struct {
	mu     sync.Mutex
	conn   net.Conn
	tls    bool
	logger *slog.Logger
}

// NewConnection wraps conn. isTLS should be true for listeners in implicit
// TLS mode (IMAPS/SMTPS), false for plaintext listeners that may later
// upgrade via UpgradeToTLS.
func NewConnection(conn net.Conn, isTLS bool, logger *slog.Logger) *Connection {
	return &Connection{conn: conn, tls: isTLS, logger: logger}
}

// Conn returns the current underlying net.Conn. Callers must re-fetch it
// after UpgradeToTLS, since the returned value changes.
func (c *Connection) Conn() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// IsTLS reports whether the connection is currently running over TLS.
func (c *Connection) IsTLS() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tls
}

// UpgradeToTLS performs the server-side TLS handshake over the existing
// stream and swaps Conn() to the resulting *tls.Conn. It is the caller's
// responsibility to have drained any codec buffers and to reconstruct its
// codec.Codec from the new Conn() afterward — reusing old buffered bytes
// across the boundary would leak plaintext data into to the encrypted
// session.
func (c *Connection) UpgradeToTLS(cfg *tls.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tls {
		return ErrAlreadyTLS
	}

	tlsConn := tls.Server(c.conn, cfg)
	if err := tlsConn.Handshake(); err != nil {
		return err
	}
	c.conn = tlsConn
	c.tls = true
	return nil
}

// RemoteAddr returns the peer address of the underlying connection.
func (c *Connection) RemoteAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// Logger returns the logger associated with this connection.
func (c *Connection) Logger() *slog.Logger {
	return c.logger
}

// Close closes the underlying connection.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}
