package imap

import (
	"context"
	"strings"
)

func init() { RegisterCommand(&uidCommand{}) }

// uidCommand implements the UID wrapper (RFC 9051 section 6.4.8), which
// re-dispatches FETCH, STORE, COPY, MOVE, and SEARCH to their UID-addressed
// forms. The dispatcher's state-gating matrix admits UID only in the
// Selected state, and the wrapped command checks the Selected state again.
type uidCommand struct{}

func (uidCommand) Name() string { return "UID" }

func (uidCommand) Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error) {
	if len(args) == 0 {
		return Response{Tag: tag, Status: "BAD", Text: "UID requires a subcommand"}, nil
	}

	sub := strings.ToUpper(args[0])
	rest := args[1:]

	switch sub {
	case "FETCH":
		return fetchCommand{byUID: true}.Execute(ctx, sess, deps, tag, rest)
	case "STORE":
		return storeCommand{byUID: true}.Execute(ctx, sess, deps, tag, rest)
	case "COPY":
		return copyCommand{byUID: true}.Execute(ctx, sess, deps, tag, rest)
	case "MOVE":
		return copyCommand{byUID: true, move: true}.Execute(ctx, sess, deps, tag, rest)
	case "SEARCH":
		return searchCommand{byUID: true}.Execute(ctx, sess, deps, tag, rest)
	default:
		return Response{Tag: tag, Status: "BAD", Text: "UID " + sub + " unknown"}, nil
	}
}
