package smtp

import (
	"context"
	"regexp"
)

func init() { RegisterCommand(&startTLSCommand{}) }

var starttlsPattern = regexp.MustCompile(`(?i)^STARTTLS\s*$`)

// startTLSCommand implements STARTTLS. The actual handshake happens in the
// connection supervisor once this reply has been flushed (Result.StartTLS),
// mirroring internal/imap/starttls.go.
type startTLSCommand struct{}

func (startTLSCommand) Name() string            { return "STARTTLS" }
func (startTLSCommand) Pattern() *regexp.Regexp { return starttlsPattern }

func (startTLSCommand) Execute(ctx context.Context, sess *Session, deps *Deps, matches []string) (Result, error) {
	if sess.IsSecure() {
		return Result{Code: 503, Lines: []string{"already secure"}}, nil
	}
	if deps.TLSConfig == nil {
		return Result{Code: 454, Lines: []string{"TLS not available"}}, nil
	}
	return Result{Code: 220, Lines: []string{"Ready to start TLS"}, StartTLS: true}, nil
}
