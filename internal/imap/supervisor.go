package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/infodancer/mailstackd/internal/codec"
	"github.com/infodancer/mailstackd/internal/server"
)

// notAuthenticatedTimeout and authenticatedTimeout are the idle deadlines
// the supervisor enforces while the client is silent between commands (spec
// section 5). idleRefresh is how often an in-progress IDLE sends a
// keepalive so the client's own timer never fires first.
const (
	notAuthenticatedTimeout = 5 * time.Minute
	authenticatedTimeout    = 30 * time.Minute
	idleRefresh             = 29 * time.Minute
)

// Handler builds a server.ConnectionHandler running the IMAP protocol
// engine. Each connection gets two tasks (spec section 5): this goroutine is
// the reader task, decoding lines and dispatching them; a second goroutine
// is the writer task, the sole consumer of the outbound queue it owns. The
// reader never touches the codec's write half directly, so an unsolicited
// IDLE or file-watcher push can never interleave with a command reply.
func Handler(hostname string, deps *Deps) server.ConnectionHandler {
	return func(ctx context.Context, conn *server.Connection) {
		serveConnection(ctx, conn, hostname, deps)
	}
}

func serveConnection(ctx context.Context, conn *server.Connection, hostname string, deps *Deps) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Collector != nil {
		deps.Collector.ConnectionOpened("imap")
		defer deps.Collector.ConnectionClosed("imap")
	}

	sess := NewSession(hostname, conn.IsTLS(), deps.TLSConfig)
	c := codec.New(conn.Conn())
	out := codec.NewOutbound(c)
	// A plain "defer out.Stop()" would bind to today's out, not whatever
	// STARTTLS later rebuilds it to; the closure reads the variable at
	// return time instead.
	defer func() { out.Stop() }()

	greeting := fmt.Sprintf("* OK [CAPABILITY %s] %s IMAP4rev2 ready", joinFlags(Capabilities(sess.IsSecure())), hostname)
	out.Enqueue([]string{greeting})

	for {
		if sess.State() == Logout || out.Failed() {
			return
		}
		if err := conn.Conn().SetReadDeadline(time.Now().Add(idleTimeout(sess))); err != nil {
			return
		}

		line, err := c.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("imap: read error", "error", err, "remote", conn.RemoteAddr())
			}
			return
		}
		if line == "" {
			continue
		}

		if sess.SASLServer() != nil {
			resp := ContinueAuthentication(sess, deps, line)
			if !handleResponse(out, resp) {
				return
			}
			continue
		}

		cmdLine, err := ParseLine(line)
		if err != nil {
			out.Enqueue([]string{"* BAD " + err.Error()})
			continue
		}

		if cmdLine.Literal != nil {
			if !cmdLine.Literal.NonSync {
				out.Enqueue([]string{"+ Ready for literal data"})
			}
			data, err := c.ReadFull(cmdLine.Literal.Octets)
			if err != nil {
				return
			}
			cmdLine.AppendLiteral(string(data))

			rest, err := c.ReadLine()
			if err != nil {
				return
			}
			if rest != "" {
				extra, _, tokErr := tokenize(rest)
				if tokErr == nil {
					cmdLine.Args = append(cmdLine.Args, extra...)
				}
			}
		}

		resp := Dispatch(ctx, sess, deps, cmdLine)

		if resp.Idle {
			if !handleResponse(out, resp) {
				return
			}
			idleCtx, cancel := context.WithCancel(ctx)
			sess.SetIdleCancel(cancel)
			idleResp, err := RunIdle(idleCtx, sess, deps, c, out, cmdLine.Tag, idleRefresh)
			sess.SetIdleCancel(nil)
			cancel()
			if err != nil {
				return
			}
			if !handleResponse(out, idleResp) {
				return
			}
			continue
		}

		if !handleResponse(out, resp) {
			return
		}

		if resp.StartTLS {
			// The plaintext "OK Begin TLS negotiation" line must reach the
			// wire before the handshake begins, and no new codec may be
			// built while the old writer task is still draining, so the
			// writer is stopped and replaced rather than reused (spec
			// section 4.5).
			out.Stop()
			if err := upgradeToTLS(conn, sess, deps.TLSConfig); err != nil {
				logger.Warn("imap: TLS upgrade failed", "error", err, "remote", conn.RemoteAddr())
				return
			}
			c = codec.New(conn.Conn())
			out = codec.NewOutbound(c)
			if deps.Collector != nil {
				deps.Collector.TLSConnectionEstablished("imap")
			}
		}
	}
}

// idleTimeout picks the deadline appropriate to the session's current
// state (spec section 5).
func idleTimeout(sess *Session) time.Duration {
	if sess.State() == NotAuthenticated || sess.State() == Authenticating {
		return notAuthenticatedTimeout
	}
	return authenticatedTimeout
}

// handleResponse enqueues resp onto the writer task and reports whether the
// reader should continue (false once the link has failed or resp signals
// BYE).
func handleResponse(out *codec.Outbound, resp Response) bool {
	if resp.Continuation {
		out.Enqueue([]string{"+ " + resp.Challenge})
		return !out.Failed()
	}

	lines := make([]string, 0, len(resp.Untagged)+1)
	lines = append(lines, resp.Untagged...)
	tagLine := resp.Tag + " " + resp.Status
	if resp.Text != "" {
		tagLine += " " + resp.Text
	}
	lines = append(lines, tagLine)
	out.Enqueue(lines)

	return !out.Failed() && !resp.Bye
}

func upgradeToTLS(conn *server.Connection, sess *Session, cfg *tls.Config) error {
	if err := conn.UpgradeToTLS(cfg); err != nil {
		return err
	}
	sess.SetSecure(true)
	return nil
}
