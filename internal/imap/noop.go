package imap

import "context"

func init() {
	RegisterCommand(&noopCommand{})
	RegisterCommand(&checkCommand{})
}

// noopCommand implements NOOP. It replies OK and does nothing else: neither
// this handler nor the supervisor attaches untagged mailbox updates to the
// reply. Its effect is to keep an idle connection alive.
type noopCommand struct{}

func (noopCommand) Name() string { return "NOOP" }

func (noopCommand) Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error) {
	return Response{Tag: tag, Status: "OK", Text: "NOOP completed"}, nil
}

// checkCommand implements CHECK, a Selected-only checkpoint hint. Unlike
// pop3's checkpointing, there is no in-memory batch to flush here since
// every mailstore write is already committed at the filesystem level.
type checkCommand struct{}

func (checkCommand) Name() string { return "CHECK" }

func (checkCommand) Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error) {
	if sess.State() != Selected {
		return Response{Tag: tag, Status: "BAD", Text: "CHECK requires a selected mailbox"}, nil
	}
	return Response{Tag: tag, Status: "OK", Text: "CHECK completed"}, nil
}
