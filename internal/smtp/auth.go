package smtp

import (
	"context"
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/emersion/go-sasl"
)

func init() { RegisterCommand(&authCommand{}) }

var authPattern = regexp.MustCompile(`(?i)^AUTH\s+(\S+)(?:\s+(\S+))?\s*$`)

// authCommand implements AUTH LOGIN/PLAIN (spec section 6.4). Continuation
// lines of an in-progress exchange are routed back through
// ContinueAuthentication by the connection supervisor, not through Match,
// since they carry no "AUTH" keyword of their own.
type authCommand struct{}

func (authCommand) Name() string            { return "AUTH" }
func (authCommand) Pattern() *regexp.Regexp { return authPattern }

func (authCommand) Execute(ctx context.Context, sess *Session, deps *Deps, matches []string) (Result, error) {
	if sess.State() != NotAuthenticated && sess.State() != Authenticated {
		return Result{Code: 503, Lines: []string{"Bad sequence of commands"}}, nil
	}
	mechanism := strings.ToUpper(matches[1])

	server, ok := newSASLServer(ctx, sess, deps, mechanism)
	if !ok {
		return Result{Code: 504, Lines: []string{"Unrecognized authentication type"}}, nil
	}
	sess.SetSASL(mechanism, server)

	var initial []byte
	if matches[2] != "" {
		decoded, err := base64.StdEncoding.DecodeString(matches[2])
		if err != nil {
			sess.ClearSASL()
			return Result{Code: 501, Lines: []string{"5.5.2 invalid base64 initial response"}}, nil
		}
		initial = decoded
	}

	return stepSASL(sess, deps, initial), nil
}

func newSASLServer(ctx context.Context, sess *Session, deps *Deps, mechanism string) (sasl.Server, bool) {
	switch mechanism {
	case sasl.Plain:
		return sasl.NewPlainServer(func(identity, username, password string) error {
			return verifyAndCommit(ctx, sess, deps, username, password)
		}), true
	case sasl.Login:
		return sasl.NewLoginServer(func(username, password string) error {
			return verifyAndCommit(ctx, sess, deps, username, password)
		}), true
	default:
		return nil, false
	}
}

func verifyAndCommit(ctx context.Context, sess *Session, deps *Deps, username, password string) error {
	ok, mailbox, err := deps.Users.Verify(ctx, username, password)
	if err != nil || !ok {
		return ErrAuthFailed
	}
	sess.SetAuthenticated(username, mailboxFor(username, mailbox))
	return nil
}

// stepSASL drives the SASL exchange one round. response is the client's
// decoded input (nil to prime the exchange).
func stepSASL(sess *Session, deps *Deps, response []byte) Result {
	server := sess.SASLServer()

	challenge, done, err := server.Next(response)
	if err != nil {
		sess.ClearSASL()
		fatal := sess.RecordAuthFailure()
		if deps.Collector != nil {
			deps.Collector.AuthAttempt("smtp", "", false)
		}
		resp := Result{Code: 535, Lines: []string{"5.7.8 authentication failed"}}
		if fatal {
			resp.Quit = true
		}
		return resp
	}

	if done {
		sess.ClearSASL()
		sess.ResetAuthFailures()
		if deps.Collector != nil {
			deps.Collector.AuthAttempt("smtp", "", true)
		}
		return Result{Code: 235, Lines: []string{"2.7.0 ok"}}
	}

	return Result{Code: 334, Lines: []string{base64.StdEncoding.EncodeToString(challenge)}}
}

// ContinueAuthentication feeds one client line of an in-progress SASL
// exchange back into the pending server. A bare "*" aborts the exchange
// per RFC 4954.
func ContinueAuthentication(sess *Session, deps *Deps, line string) Result {
	if line == "*" {
		sess.ClearSASL()
		return Result{Code: 501, Lines: []string{"5.0.0 authentication aborted"}}
	}

	decoded, err := base64.StdEncoding.DecodeString(line)
	if err != nil {
		sess.ClearSASL()
		return Result{Code: 501, Lines: []string{"5.5.2 invalid base64 continuation"}}
	}

	return stepSASL(sess, deps, decoded)
}
