package imap

import (
	"context"
	"crypto/tls"
	"log/slog"
	"strings"

	"github.com/infodancer/mailstackd/internal/mailstore"
	"github.com/infodancer/mailstackd/internal/metrics"
	"github.com/infodancer/mailstackd/internal/userstore"
)

// Deps bundles the external collaborators every command handler may need,
// grounded on the set of arguments the teacher's pop3.Handler/RegisterAuthCommands
// close over (auth provider, message store, TLS config, metrics collector).
type Deps struct {
	Hostname  string
	Mail      *mailstore.Store
	Users     *userstore.Store
	Watcher   *mailstore.Watcher
	TLSConfig *tls.Config
	Collector metrics.Collector
	Logger    *slog.Logger
}

// Command represents one IMAP verb implementation.
type Command interface {
	// Name returns the verb this command handles (e.g. "SELECT").
	Name() string

	// Execute runs the command and returns the response to send. tag is
	// the client-supplied command tag; args are already tokenized.
	Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error)
}

// Response is one IMAP reply: zero or more untagged lines followed by
// exactly one tagged completion line, or a SASL/literal continuation.
type Response struct {
	Tag    string
	Status string // "OK", "NO", or "BAD"
	Text   string

	Untagged []string // complete lines, each already starting with "* "

	Continuation bool // "+ <Challenge>" instead of a tagged line
	Challenge    string

	Bye bool // connection should close once this response is flushed

	StartTLS bool // connection supervisor should upgrade to TLS once this response is flushed

	Idle bool // connection supervisor should enter the IDLE loop once this continuation is flushed
}

// String renders the response as wire bytes.
func (r Response) String() string {
	var sb strings.Builder

	if r.Continuation {
		sb.WriteString("+ ")
		sb.WriteString(r.Challenge)
		sb.WriteString("\r\n")
		return sb.String()
	}

	for _, line := range r.Untagged {
		sb.WriteString(line)
		sb.WriteString("\r\n")
	}

	sb.WriteString(r.Tag)
	sb.WriteString(" ")
	sb.WriteString(r.Status)
	if r.Text != "" {
		sb.WriteString(" ")
		sb.WriteString(r.Text)
	}
	sb.WriteString("\r\n")
	return sb.String()
}

// Untagged formats one untagged response line ("* " + body).
func Untagged(body string) string {
	return "* " + body
}

var commandRegistry = make(map[string]Command)

// RegisterCommand registers cmd under its own name, upper-cased.
func RegisterCommand(cmd Command) {
	commandRegistry[strings.ToUpper(cmd.Name())] = cmd
}

// GetCommand looks up a registered command by verb.
func GetCommand(verb string) (Command, bool) {
	cmd, ok := commandRegistry[strings.ToUpper(verb)]
	return cmd, ok
}
