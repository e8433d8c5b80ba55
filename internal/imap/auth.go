package imap

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/emersion/go-sasl"
)

func init() {
	RegisterCommand(&authenticateCommand{})
	RegisterCommand(&loginCommand{})
}

// mailboxFor derives a session's mailstore key from the authenticated
// username, matching userstore.Store.Verify's returned mailbox when one is
// available and falling back to the raw username otherwise.
func mailboxFor(username, mailbox string) string {
	if mailbox != "" {
		return mailbox
	}
	return username
}

// authenticateCommand implements AUTHENTICATE (spec section 4.3/4.4). The
// actual SASL exchange's continuation lines are routed back through
// ContinueAuthentication by the connection supervisor, not through the
// normal dispatcher, since they carry no tag or verb of their own.
type authenticateCommand struct{}

func (authenticateCommand) Name() string { return "AUTHENTICATE" }

func (authenticateCommand) Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error) {
	if len(args) < 1 {
		return Response{Tag: tag, Status: "BAD", Text: "AUTHENTICATE requires a mechanism"}, nil
	}
	mechanism := strings.ToUpper(args[0])

	server, ok := newSASLServer(ctx, sess, deps, mechanism)
	if !ok {
		return Response{Tag: tag, Status: "NO", Text: "unsupported mechanism"}, nil
	}
	sess.SetSASL(mechanism, tag, server)

	var initial []byte
	if len(args) > 1 {
		if args[1] == "=" {
			initial = []byte{}
		} else {
			decoded, err := base64.StdEncoding.DecodeString(args[1])
			if err != nil {
				sess.ClearSASL()
				return Response{Tag: tag, Status: "BAD", Text: "invalid base64 initial response"}, nil
			}
			initial = decoded
		}
	}

	return stepSASL(sess, deps, initial), nil
}

// newSASLServer builds the go-sasl server for mechanism, closing over the
// verify call that commits a successful authentication to sess.
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
// decoded input (nil to prime the exchange, e.g. AUTHENTICATE with no
// initial response).
func stepSASL(sess *Session, deps *Deps, response []byte) Response {
	server := sess.SASLServer()
	tag := sess.SASLTag()

	challenge, done, err := server.Next(response)
	if err != nil {
		sess.ClearSASL()
		fatal := sess.RecordAuthFailure()
		if deps.Collector != nil {
			deps.Collector.AuthAttempt("imap", "", false)
		}
		resp := Response{Tag: tag, Status: "NO", Text: "[AUTHENTICATIONFAILED] authentication failed"}
		if fatal {
			resp.Bye = true
		}
		return resp
	}

	if done {
		sess.ClearSASL()
		sess.ResetAuthFailures()
		if deps.Collector != nil {
			deps.Collector.AuthAttempt("imap", "", true)
		}
		return Response{Tag: tag, Status: "OK", Text: "AUTHENTICATE completed"}
	}

	return Response{Continuation: true, Challenge: base64.StdEncoding.EncodeToString(challenge)}
}

// ContinueAuthentication feeds one client line of an in-progress SASL
// exchange back into the pending server. A bare "*" aborts the exchange
// per RFC 9051.
func ContinueAuthentication(sess *Session, deps *Deps, line string) Response {
	tag := sess.SASLTag()
	if line == "*" {
		sess.ClearSASL()
		return Response{Tag: tag, Status: "BAD", Text: "AUTHENTICATE aborted"}
	}

	decoded, err := base64.StdEncoding.DecodeString(line)
	if err != nil {
		sess.ClearSASL()
		return Response{Tag: tag, Status: "BAD", Text: "invalid base64 continuation"}
	}

	return stepSASL(sess, deps, decoded)
}

// loginCommand implements the plaintext LOGIN command.
type loginCommand struct{}

func (loginCommand) Name() string { return "LOGIN" }

func (loginCommand) Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error) {
	if len(args) != 2 {
		return Response{Tag: tag, Status: "BAD", Text: "LOGIN requires a username and password"}, nil
	}
	username, password := args[0], args[1]

	ok, mailbox, err := deps.Users.Verify(ctx, username, password)
	if err != nil || !ok {
		fatal := sess.RecordAuthFailure()
		if deps.Collector != nil {
			deps.Collector.AuthAttempt("imap", "", false)
		}
		resp := Response{Tag: tag, Status: "NO", Text: "[AUTHENTICATIONFAILED] LOGIN failed"}
		if fatal {
			resp.Bye = true
		}
		return resp, nil
	}

	sess.SetAuthenticated(username, mailboxFor(username, mailbox))
	sess.ResetAuthFailures()
	if deps.Collector != nil {
		deps.Collector.AuthAttempt("imap", "", true)
	}
	return Response{Tag: tag, Status: "OK", Text: "LOGIN completed"}, nil
}
