package imap

import (
	"context"
	"fmt"
	"strings"
)

func init() {
	RegisterCommand(&copyCommand{})
	RegisterCommand(&copyCommand{move: true})
}

type copyCommand struct {
	byUID bool
	move  bool
}

func (c copyCommand) Name() string {
	if c.move {
		return "MOVE"
	}
	return "COPY"
}

func (c copyCommand) Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error) {
	if sess.State() != Selected {
		return Response{Tag: tag, Status: "BAD", Text: c.Name() + " requires a selected mailbox"}, nil
	}
	if len(args) != 2 {
		return Response{Tag: tag, Status: "BAD", Text: c.Name() + " requires a sequence set and a target mailbox"}, nil
	}

	user, folder := sess.Mailbox(), sess.SelectedFolder()
	dest := args[1]
	if _, _, err := deps.Mail.Stat(ctx, user, dest); err != nil {
		return Response{Tag: tag, Status: "NO", Text: "[TRYCREATE] " + c.Name() + " failure: no such mailbox"}, nil
	}

	targets := selectMessages(sess.Messages(), args[0], c.byUID)
	for _, m := range targets {
		body, err := readMessage(ctx, deps, user, folder, m.Key)
		if err != nil {
			return Response{}, err
		}
		if _, err := deps.Mail.Append(ctx, user, dest, toMaildirFlags(m.Flags), strings.NewReader(body)); err != nil {
			return Response{}, fmt.Errorf("imap: %s: %w", c.Name(), err)
		}
		if c.move {
			if err := deps.Mail.SetFlags(user, folder, m.Key, toMaildirFlags(append(m.Flags, "\\Deleted"))); err != nil {
				return Response{}, fmt.Errorf("imap: %s: %w", c.Name(), err)
			}
		}
	}

	var untagged []string
	if c.move {
		expunged, err := expungeKeys(ctx, sess, deps)
		if err != nil {
			return Response{}, err
		}
		untagged = expunged
	}

	return Response{Tag: tag, Status: "OK", Text: c.Name() + " completed", Untagged: untagged}, nil
}
