package smtp_test

import (
	"bufio"
	"context"
	"encoding/base64"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/infodancer/auth"
	"github.com/infodancer/mailstackd/internal/mailstore"
	"github.com/infodancer/mailstackd/internal/metrics"
	"github.com/infodancer/mailstackd/internal/server"
	"github.com/infodancer/mailstackd/internal/smtp"
	"github.com/infodancer/mailstackd/internal/userstore"
)

// pipeAgent is a minimal userstore.AuthenticationAgent fixture for the
// supervisor's full command flow, the SMTP-side twin of internal/pop3's
// net.Pipe-driven singleconn_test.go.
type pipeAgent struct {
	username, password, mailbox string
}

func (a *pipeAgent) Authenticate(_ context.Context, username, password string) (*auth.AuthSession, error) {
	if username != a.username || password != a.password {
		return nil, errAuthFixture
	}
	return &auth.AuthSession{User: &auth.User{Username: username, Mailbox: a.mailbox}}, nil
}
func (a *pipeAgent) Close() error { return nil }

var errAuthFixture = errFixture("invalid credentials")

type errFixture string

func (e errFixture) Error() string { return string(e) }

// smtpPipe is a thin SMTP client stub driving the server over net.Pipe.
type smtpPipe struct {
	conn net.Conn
	r    *bufio.Reader
}

func (c *smtpPipe) readLine() string {
	line, _ := c.r.ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}

func (c *smtpPipe) send(line string) {
	_, _ = c.conn.Write([]byte(line + "\r\n"))
}

func newSMTPDeps(t *testing.T) *smtp.Deps {
	t.Helper()
	mail, err := mailstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("mailstore.Open: %v", err)
	}
	t.Cleanup(func() { _ = mail.Close() })

	users := userstore.New(&pipeAgent{username: "alice", password: "hunter2", mailbox: "alice@example.com"})

	return &smtp.Deps{
		Hostname:  "mail.example.com",
		Mail:      mail,
		Users:     users,
		Collector: &metrics.NoopCollector{},
	}
}

func runSMTPServer(deps *smtp.Deps) (*smtpPipe, func()) {
	serverConn, clientConn := net.Pipe()
	handler := smtp.Handler("mail.example.com", deps)
	conn := server.NewConnection(serverConn, false, nil)

	done := make(chan struct{})
	go func() {
		handler(context.Background(), conn)
		close(done)
	}()

	pipe := &smtpPipe{conn: clientConn, r: bufio.NewReader(clientConn)}
	cleanup := func() {
		_ = clientConn.Close()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
	}
	return pipe, cleanup
}

func TestSupervisorFullDeliveryRoundTrip(t *testing.T) {
	deps := newSMTPDeps(t)
	c, cleanup := runSMTPServer(deps)
	defer cleanup()

	greeting := c.readLine()
	if !strings.HasPrefix(greeting, "220") {
		t.Fatalf("expected 220 greeting, got: %q", greeting)
	}

	c.send("EHLO client.example.com")
	for {
		line := c.readLine()
		if !strings.HasPrefix(line, "250-") {
			if !strings.HasPrefix(line, "250 ") {
				t.Fatalf("unexpected EHLO reply line: %q", line)
			}
			break
		}
	}

	c.send("AUTH PLAIN " + base64.StdEncoding.EncodeToString([]byte("\x00alice\x00hunter2")))
	if resp := c.readLine(); !strings.HasPrefix(resp, "235") {
		t.Fatalf("expected 235 after AUTH PLAIN, got: %q", resp)
	}

	c.send("MAIL FROM:<alice@example.com>")
	if resp := c.readLine(); !strings.HasPrefix(resp, "250") {
		t.Fatalf("expected 250 after MAIL FROM, got: %q", resp)
	}

	c.send("RCPT TO:<bob@example.com>")
	if resp := c.readLine(); !strings.HasPrefix(resp, "250") {
		t.Fatalf("expected 250 after RCPT TO, got: %q", resp)
	}

	c.send("DATA")
	if resp := c.readLine(); !strings.HasPrefix(resp, "354") {
		t.Fatalf("expected 354 after DATA, got: %q", resp)
	}

	c.send("Subject: hello")
	c.send("")
	c.send("Hello, Bob!")
	c.send(".")
	if resp := c.readLine(); !strings.HasPrefix(resp, "250") {
		t.Fatalf("expected 250 after the terminating dot, got: %q", resp)
	}

	msgs, err := deps.Mail.List(context.Background(), "bob@example.com", mailstore.Inbox)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("bob@example.com INBOX has %d messages, want 1", len(msgs))
	}

	c.send("QUIT")
	if resp := c.readLine(); !strings.HasPrefix(resp, "221") {
		t.Fatalf("expected 221 after QUIT, got: %q", resp)
	}
}

func TestSupervisorRejectsCommandsBeforeAuth(t *testing.T) {
	deps := newSMTPDeps(t)
	c, cleanup := runSMTPServer(deps)
	defer cleanup()

	c.readLine() // greeting

	c.send("MAIL FROM:<alice@example.com>")
	resp := c.readLine()
	if !strings.HasPrefix(resp, "503") {
		t.Fatalf("expected 503 for MAIL FROM before AUTH, got: %q", resp)
	}

	c.send("QUIT")
	c.readLine()
}

func TestSupervisorDotStuffingIsReversed(t *testing.T) {
	deps := newSMTPDeps(t)
	c, cleanup := runSMTPServer(deps)
	defer cleanup()

	c.readLine() // greeting
	c.send("EHLO client.example.com")
	for {
		if line := c.readLine(); strings.HasPrefix(line, "250 ") {
			break
		}
	}
	c.send("AUTH PLAIN " + base64.StdEncoding.EncodeToString([]byte("\x00alice\x00hunter2")))
	c.readLine()

	c.send("MAIL FROM:<alice@example.com>")
	c.readLine()
	c.send("RCPT TO:<bob@example.com>")
	c.readLine()
	c.send("DATA")
	c.readLine()

	c.send("..leading dot line")
	c.send(".")
	c.readLine()

	msgs, err := deps.Mail.List(context.Background(), "bob@example.com", mailstore.Inbox)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("INBOX has %d messages, want 1", len(msgs))
	}
	rc, err := deps.Mail.Retrieve(context.Background(), "bob@example.com", mailstore.Inbox, msgs[0].UID)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	body := string(raw)
	if !strings.Contains(body, ".leading dot line") || strings.Contains(body, "..leading dot line") {
		t.Errorf("stored body = %q, want dot-stuffing reversed to a single leading dot", body)
	}
}
