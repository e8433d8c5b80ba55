package imap

import (
	"context"
	"fmt"
)

// alwaysPermitted verbs are accepted in every state, including Logout
// (spec section 4.4).
var alwaysPermitted = map[string]bool{
	"CAPABILITY": true,
	"NOOP":       true,
	"LOGOUT":     true,
}

// authenticatedVerbs are permitted once the session has logged in, and
// remain permitted in Selected (a selected mailbox is a superset of the
// Authenticated state).
var authenticatedVerbs = map[string]bool{
	"SELECT":      true,
	"EXAMINE":     true,
	"CREATE":      true,
	"DELETE":      true,
	"RENAME":      true,
	"SUBSCRIBE":   true,
	"UNSUBSCRIBE": true,
	"LIST":        true,
	"LSUB":        true,
	"STATUS":      true,
	"APPEND":      true,
	"ENABLE":      true,
	"IDLE":        true,
}

// selectedVerbs are permitted only once a mailbox is selected, in addition
// to every authenticatedVerbs entry.
var selectedVerbs = map[string]bool{
	"CHECK":    true,
	"CLOSE":    true,
	"EXPUNGE":  true,
	"SEARCH":   true,
	"FETCH":    true,
	"STORE":    true,
	"COPY":     true,
	"MOVE":     true,
	"UID":      true,
	"UNSELECT": true,
}

// notAuthenticatedVerbs are permitted only before login.
var notAuthenticatedVerbs = map[string]bool{
	"STARTTLS":     true,
	"AUTHENTICATE": true,
	"LOGIN":        true,
	"ENABLE":       true,
}

// permitted reports whether verb may run while the session is in state.
func permitted(state State, verb string) bool {
	if alwaysPermitted[verb] {
		return true
	}
	switch state {
	case NotAuthenticated:
		return notAuthenticatedVerbs[verb]
	case Authenticated:
		return authenticatedVerbs[verb]
	case Selected:
		return authenticatedVerbs[verb] || selectedVerbs[verb]
	case Logout:
		return false
	default:
		return false
	}
}

// Dispatch routes one fully-parsed command line to its handler, enforcing
// the state-gating matrix (spec section 4.4) ahead of the handler's own
// defensive state check.
func Dispatch(ctx context.Context, sess *Session, deps *Deps, line *CommandLine) Response {
	cmd, ok := GetCommand(line.Verb)
	if !ok {
		return Response{Tag: line.Tag, Status: "BAD", Text: fmt.Sprintf("%s unknown command", line.Verb)}
	}

	state := sess.State()
	if !permitted(state, line.Verb) {
		return Response{
			Tag:    line.Tag,
			Status: "BAD",
			Text:   fmt.Sprintf("%s not permitted in state %s", line.Verb, state),
		}
	}

	resp, err := cmd.Execute(ctx, sess, deps, line.Tag, line.Args)
	if err != nil {
		if deps.Logger != nil {
			deps.Logger.Error("imap: command failed", "verb", line.Verb, "tag", line.Tag, "error", err)
		}
		return Response{Tag: line.Tag, Status: "NO", Text: "server error"}
	}
	if deps.Collector != nil {
		deps.Collector.CommandProcessed("imap", line.Verb)
	}
	return resp
}
