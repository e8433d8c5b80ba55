package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/infodancer/mailstackd/internal/mailstore"
	"github.com/infodancer/mailstackd/internal/metrics"
	"github.com/infodancer/mailstackd/internal/userstore"
)

// Deps bundles the external collaborators every command handler may need,
// the SMTP-side twin of internal/imap.Deps.
type Deps struct {
	Hostname       string
	Mail           *mailstore.Store
	Users          *userstore.Store
	TLSConfig      *tls.Config
	Collector      metrics.Collector
	Logger         *slog.Logger
	MaxMessageSize int64
}

// Result is one SMTP reply: a three-digit code plus one or more response
// lines, rendered as a multi-line reply ("250-..." / "250 ...") when more
// than one line is present.
type Result struct {
	Code  int
	Lines []string

	StartTLS bool // connection supervisor should upgrade to TLS once this reply is flushed
	Quit     bool // connection should close once this reply is flushed
}

// String renders the reply as wire bytes, using the multi-line continuation
// form ("250-" for all but the last line) per RFC 5321.
func (r Result) String() string {
	if len(r.Lines) == 0 {
		return fmt.Sprintf("%d \r\n", r.Code)
	}
	out := ""
	for i, line := range r.Lines {
		sep := "-"
		if i == len(r.Lines)-1 {
			sep = " "
		}
		out += fmt.Sprintf("%d%s%s\r\n", r.Code, sep, line)
	}
	return out
}

// Command represents one SMTP verb implementation, matched by regexp
// rather than a tokenized verb+args split, grounded on the sibling
// infodancer-smtpd package's SMTPCommand contract.
type Command interface {
	// Name identifies the command for metrics and registry lookup.
	Name() string

	// Pattern returns the compiled regexp matched against the raw decoded
	// line. matches[0] is the full line; matches[1:] are capture groups.
	Pattern() *regexp.Regexp

	// Execute processes the command.
	Execute(ctx context.Context, sess *Session, deps *Deps, matches []string) (Result, error)
}

var commandRegistry []Command

// RegisterCommand appends cmd to the registry. Match tries every pattern in
// registration order and returns the first hit; the patterns are anchored
// at the verb and do not overlap, so registration order does not change
// which command a line matches.
func RegisterCommand(cmd Command) {
	commandRegistry = append(commandRegistry, cmd)
}

// Match finds the command whose pattern matches line and returns it with
// the captured groups.
func Match(line string) (Command, []string, bool) {
	for _, cmd := range commandRegistry {
		if matches := cmd.Pattern().FindStringSubmatch(line); matches != nil {
			return cmd, matches, true
		}
	}
	return nil, nil, false
}
