package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/infodancer/mailstackd/internal/codec"
	"github.com/infodancer/mailstackd/internal/mailstore"
	"github.com/infodancer/mailstackd/internal/server"
)

// notAuthenticatedTimeout and authenticatedTimeout are the idle deadlines
// the supervisor enforces while the client is silent between commands
// (spec section 5): SMTP has no equivalent of IMAP IDLE, so there is no
// refresh interval to thread through.
const (
	notAuthenticatedTimeout = 5 * time.Minute
	authenticatedTimeout    = 30 * time.Minute
)

// Handler builds a server.ConnectionHandler running the SMTP protocol
// engine, the SMTP-side twin of internal/imap.Handler. As there, this
// goroutine is the reader task; a second goroutine is the writer task, the
// sole consumer of the outbound queue, so the reader never touches the
// codec's write half directly (spec section 4.5).
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
		deps.Collector.ConnectionOpened("smtp")
		defer deps.Collector.ConnectionClosed("smtp")
	}

	sess := NewSession(hostname, conn.IsTLS(), deps.TLSConfig, conn.RemoteAddr())
	c := codec.New(conn.Conn())
	out := codec.NewOutbound(c)
	// A plain "defer out.Stop()" would bind to today's out, not whatever
	// STARTTLS later rebuilds it to; the closure reads the variable at
	// return time instead.
	defer func() { out.Stop() }()

	enqueueResult(out, Result{Code: 220, Lines: []string{hostname + " ESMTP mailstackd ready"}})
	if out.Failed() {
		return
	}

	for {
		if sess.State() == Quit || out.Failed() {
			return
		}
		if err := conn.Conn().SetReadDeadline(time.Now().Add(idleTimeout(sess))); err != nil {
			return
		}

		line, err := c.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("smtp: read error", "error", err, "remote", conn.RemoteAddr())
			}
			return
		}
		if line == "" {
			continue
		}

		if sess.State() == InData {
			if !handleDataLine(ctx, out, sess, deps, line) {
				return
			}
			continue
		}

		if sess.SASLServer() != nil {
			result := ContinueAuthentication(sess, deps, line)
			if !writeOK(out, result) {
				return
			}
			continue
		}

		cmd, matches, ok := Match(line)
		if !ok {
			enqueueResult(out, Result{Code: 500, Lines: []string{"5.5.2 Syntax error, command unrecognized"}})
			if out.Failed() {
				return
			}
			continue
		}

		result, err := cmd.Execute(ctx, sess, deps, matches)
		if err != nil {
			logger.Error("smtp: command failed", "verb", cmd.Name(), "error", err)
			enqueueResult(out, Result{Code: 451, Lines: []string{"4.3.0 internal error"}})
			if out.Failed() {
				return
			}
			continue
		}
		if deps.Collector != nil {
			deps.Collector.CommandProcessed("smtp", cmd.Name())
		}

		if !writeOK(out, result) {
			return
		}

		if result.StartTLS {
			// The plaintext "220 Ready to start TLS" reply must drain before the
			// handshake begins, so the writer task is stopped and replaced
			// rather than reused once TLS is up (spec section 4.5).
			out.Stop()
			if err := upgradeToTLS(conn, sess, deps.TLSConfig); err != nil {
				logger.Warn("smtp: TLS upgrade failed", "error", err, "remote", conn.RemoteAddr())
				return
			}
			c = codec.New(conn.Conn())
			out = codec.NewOutbound(c)
			if deps.Collector != nil {
				deps.Collector.TLSConnectionEstablished("smtp")
			}
		}
	}
}

func idleTimeout(sess *Session) time.Duration {
	if sess.State() == NotAuthenticated || sess.State() == Authenticating {
		return notAuthenticatedTimeout
	}
	return authenticatedTimeout
}

// enqueueResult hands r's rendered lines to the writer task.
func enqueueResult(out *codec.Outbound, r Result) {
	rendered := strings.TrimSuffix(r.String(), "\r\n")
	if rendered == "" {
		return
	}
	out.Enqueue(strings.Split(rendered, "\r\n"))
}

// writeOK enqueues result and reports whether the connection should
// continue.
func writeOK(out *codec.Outbound, result Result) bool {
	enqueueResult(out, result)
	return !out.Failed() && !result.Quit
}

func upgradeToTLS(conn *server.Connection, sess *Session, cfg *tls.Config) error {
	if err := conn.UpgradeToTLS(cfg); err != nil {
		return err
	}
	sess.SetSecure(true)
	return nil
}

// handleDataLine appends one raw line to the in-progress message body,
// reversing dot-stuffing (spec section 4.3), and delivers the message once
// the terminating "." line arrives. It reports whether the connection
// should continue.
func handleDataLine(ctx context.Context, out *codec.Outbound, sess *Session, deps *Deps, line string) bool {
	buf := sess.dataBuffer()
	if line == "." {
		buf.WriteString("\r\n")
		body := buf.String()
		sess.clearDataBuffer()
		sess.SetState(Authenticated)

		if err := deliver(ctx, sess, deps, body); err != nil {
			if deps.Logger != nil {
				deps.Logger.Error("smtp: delivery failed", "error", err)
			}
			sess.ResetEnvelope()
			return writeOK(out, Result{Code: 451, Lines: []string{"4.3.0 could not deliver message"}})
		}
		if deps.Collector != nil {
			deps.Collector.MessageStored("smtp", sess.Username(), int64(len(body)))
		}
		sess.ResetEnvelope()
		return writeOK(out, Result{Code: 250, Lines: []string{"2.0.0 ok"}})
	}

	maxSize := deps.MaxMessageSize
	if maxSize <= 0 {
		maxSize = 64 << 20
	}

	unstuffed := line
	if strings.HasPrefix(line, "..") {
		unstuffed = line[1:]
	}
	if buf.Len() > 0 {
		buf.WriteString("\r\n")
	}
	buf.WriteString(unstuffed)
	if int64(buf.Len()) > maxSize {
		sess.clearDataBuffer()
		sess.SetState(Authenticated)
		sess.ResetEnvelope()
		return writeOK(out, Result{Code: 552, Lines: []string{"5.3.4 message too large"}})
	}
	return true
}

// deliver appends the completed message body to every recipient's INBOX,
// the local-delivery interpretation of the mail store's append contract
// (spec section 6.6); this submission service has no outbound relay.
func deliver(ctx context.Context, sess *Session, deps *Deps, body string) error {
	env := sess.Envelope()
	if env.From == "" || len(env.To) == 0 {
		return fmt.Errorf("smtp: incomplete envelope")
	}
	for _, rcpt := range env.To {
		mailbox := strings.ToLower(rcpt)
		if _, err := deps.Mail.Append(ctx, mailbox, mailstore.Inbox, nil, bytes.NewReader([]byte(body))); err != nil {
			return fmt.Errorf("smtp: deliver to %s: %w", mailbox, err)
		}
	}
	return nil
}
