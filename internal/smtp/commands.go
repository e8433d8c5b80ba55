package smtp

import (
	"context"
	"regexp"
	"strconv"
)

func sizeLine(max int64) string {
	return "SIZE " + strconv.FormatInt(max, 10)
}

func init() {
	RegisterCommand(&ehloCommand{})
	RegisterCommand(&heloCommand{})
	RegisterCommand(&mailCommand{})
	RegisterCommand(&rcptCommand{})
	RegisterCommand(&dataCommand{})
	RegisterCommand(&rsetCommand{})
	RegisterCommand(&noopCommand{})
	RegisterCommand(&quitCommand{})
}

var (
	ehloPattern = regexp.MustCompile(`(?i)^EHLO\s+(\S+)\s*$`)
	heloPattern = regexp.MustCompile(`(?i)^HELO\s+(\S+)\s*$`)
	mailPattern = regexp.MustCompile(`(?i)^MAIL\s+FROM:\s*<([^>]*)>.*$`)
	rcptPattern = regexp.MustCompile(`(?i)^RCPT\s+TO:\s*<([^>]*)>.*$`)
	dataPattern = regexp.MustCompile(`(?i)^DATA\s*$`)
	rsetPattern = regexp.MustCompile(`(?i)^RSET\s*$`)
	noopPattern = regexp.MustCompile(`(?i)^NOOP(?:\s.*)?$`)
	quitPattern = regexp.MustCompile(`(?i)^QUIT\s*$`)
)

// capabilityLines builds the EHLO multi-line reply body (spec section 6.4):
// hostname greeting, SIZE, 8BITMIME, STARTTLS (plaintext only), and AUTH,
// which is listed whether or not TLS is active.
func capabilityLines(hostname, domain, clientIP string, sess *Session, deps *Deps) []string {
	lines := []string{hostname + " Hello " + domain + " [" + clientIP + "]"}
	if deps.MaxMessageSize > 0 {
		lines = append(lines, sizeLine(deps.MaxMessageSize))
	}
	lines = append(lines, "8BITMIME")
	if deps.TLSConfig != nil && !sess.IsSecure() {
		lines = append(lines, "STARTTLS")
	}
	lines = append(lines, "AUTH LOGIN PLAIN")
	return lines
}

type ehloCommand struct{}

func (ehloCommand) Name() string              { return "EHLO" }
func (ehloCommand) Pattern() *regexp.Regexp   { return ehloPattern }
func (ehloCommand) Execute(ctx context.Context, sess *Session, deps *Deps, matches []string) (Result, error) {
	domain := matches[1]
	sess.SetHeloDomain(domain)
	return Result{Code: 250, Lines: capabilityLines(deps.Hostname, domain, sess.ClientIP(), sess, deps)}, nil
}

type heloCommand struct{}

func (heloCommand) Name() string            { return "HELO" }
func (heloCommand) Pattern() *regexp.Regexp { return heloPattern }
func (heloCommand) Execute(ctx context.Context, sess *Session, deps *Deps, matches []string) (Result, error) {
	domain := matches[1]
	sess.SetHeloDomain(domain)
	return Result{Code: 250, Lines: []string{deps.Hostname + " Hello " + domain}}, nil
}

type mailCommand struct{}

func (mailCommand) Name() string            { return "MAIL" }
func (mailCommand) Pattern() *regexp.Regexp { return mailPattern }
func (mailCommand) Execute(ctx context.Context, sess *Session, deps *Deps, matches []string) (Result, error) {
	if sess.State() != Authenticated {
		return Result{Code: 503, Lines: []string{"Bad sequence of commands"}}, nil
	}
	sess.SetEnvelopeFrom(matches[1])
	return Result{Code: 250, Lines: []string{"2.1.0 ok"}}, nil
}

type rcptCommand struct{}

func (rcptCommand) Name() string            { return "RCPT" }
func (rcptCommand) Pattern() *regexp.Regexp { return rcptPattern }
func (rcptCommand) Execute(ctx context.Context, sess *Session, deps *Deps, matches []string) (Result, error) {
	if sess.State() != InMail {
		return Result{Code: 503, Lines: []string{"Bad sequence of commands"}}, nil
	}
	const maxRecipients = 100
	if len(sess.Envelope().To) >= maxRecipients {
		return Result{Code: 452, Lines: []string{"Too many recipients"}}, nil
	}
	sess.AddRecipient(matches[1])
	return Result{Code: 250, Lines: []string{"2.1.5 ok"}}, nil
}

// dataCommand only transitions state and prompts for the message body; the
// connection supervisor reads and dot-unstuffs the body itself (spec
// section 4.3), since that is a multi-line exchange a single regexp-matched
// Execute call cannot drive.
type dataCommand struct{}

func (dataCommand) Name() string            { return "DATA" }
func (dataCommand) Pattern() *regexp.Regexp { return dataPattern }
func (dataCommand) Execute(ctx context.Context, sess *Session, deps *Deps, matches []string) (Result, error) {
	if sess.State() != InMail || len(sess.Envelope().To) == 0 {
		return Result{Code: 503, Lines: []string{"Bad sequence of commands"}}, nil
	}
	sess.SetState(InData)
	return Result{Code: 354, Lines: []string{"Start mail input; end with <CRLF>.<CRLF>"}}, nil
}

type rsetCommand struct{}

func (rsetCommand) Name() string            { return "RSET" }
func (rsetCommand) Pattern() *regexp.Regexp { return rsetPattern }
func (rsetCommand) Execute(ctx context.Context, sess *Session, deps *Deps, matches []string) (Result, error) {
	sess.ResetEnvelope()
	return Result{Code: 250, Lines: []string{"2.0.0 ok"}}, nil
}

type noopCommand struct{}

func (noopCommand) Name() string            { return "NOOP" }
func (noopCommand) Pattern() *regexp.Regexp { return noopPattern }
func (noopCommand) Execute(ctx context.Context, sess *Session, deps *Deps, matches []string) (Result, error) {
	return Result{Code: 250, Lines: []string{"2.0.0 ok"}}, nil
}

type quitCommand struct{}

func (quitCommand) Name() string            { return "QUIT" }
func (quitCommand) Pattern() *regexp.Regexp { return quitPattern }
func (quitCommand) Execute(ctx context.Context, sess *Session, deps *Deps, matches []string) (Result, error) {
	sess.SetState(Quit)
	return Result{Code: 221, Lines: []string{deps.Hostname + " closing connection"}, Quit: true}, nil
}
