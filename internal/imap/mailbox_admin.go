package imap

import (
	"context"
	"errors"

	"github.com/infodancer/mailstackd/internal/mailstore"
)

func init() {
	RegisterCommand(&createCommand{})
	RegisterCommand(&deleteCommand{})
	RegisterCommand(&renameCommand{})
	RegisterCommand(&subscribeCommand{subscribe: true})
	RegisterCommand(&subscribeCommand{subscribe: false})
}

type createCommand struct{}

func (createCommand) Name() string { return "CREATE" }

func (createCommand) Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error) {
	if len(args) != 1 {
		return Response{Tag: tag, Status: "BAD", Text: "CREATE requires a mailbox name"}, nil
	}
	user, folder := sess.Mailbox(), args[0]

	if err := deps.Mail.CreateFolder(user, folder); err != nil {
		if errors.Is(err, mailstore.ErrFolderExists) {
			return Response{Tag: tag, Status: "NO", Text: "CREATE failure: mailbox already exists"}, nil
		}
		return Response{}, err
	}
	return Response{Tag: tag, Status: "OK", Text: "CREATE completed"}, nil
}

type deleteCommand struct{}

func (deleteCommand) Name() string { return "DELETE" }

func (deleteCommand) Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error) {
	if len(args) != 1 {
		return Response{Tag: tag, Status: "BAD", Text: "DELETE requires a mailbox name"}, nil
	}
	user, folder := sess.Mailbox(), args[0]

	if err := deps.Mail.DeleteFolder(user, folder); err != nil {
		switch {
		case errors.Is(err, mailstore.ErrCannotDeleteInbox):
			return Response{Tag: tag, Status: "NO", Text: "DELETE failure: cannot delete INBOX"}, nil
		case errors.Is(err, mailstore.ErrInferiorHierarchy):
			return Response{Tag: tag, Status: "NO", Text: "DELETE failure: folder has inferior hierarchical names"}, nil
		default:
			return Response{Tag: tag, Status: "NO", Text: "DELETE failure: no such mailbox"}, nil
		}
	}
	return Response{Tag: tag, Status: "OK", Text: "DELETE completed"}, nil
}

type renameCommand struct{}

func (renameCommand) Name() string { return "RENAME" }

func (renameCommand) Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error) {
	if len(args) != 2 {
		return Response{Tag: tag, Status: "BAD", Text: "RENAME requires a source and target mailbox name"}, nil
	}
	user, src, dst := sess.Mailbox(), args[0], args[1]

	if err := deps.Mail.RenameFolder(user, src, dst); err != nil {
		return Response{Tag: tag, Status: "NO", Text: "RENAME failure"}, nil
	}
	return Response{Tag: tag, Status: "OK", Text: "RENAME completed"}, nil
}

type subscribeCommand struct {
	subscribe bool
}

func (c subscribeCommand) Name() string {
	if c.subscribe {
		return "SUBSCRIBE"
	}
	return "UNSUBSCRIBE"
}

func (c subscribeCommand) Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error) {
	if len(args) != 1 {
		return Response{Tag: tag, Status: "BAD", Text: c.Name() + " requires a mailbox name"}, nil
	}
	user, folder := sess.Mailbox(), args[0]

	var err error
	if c.subscribe {
		err = deps.Mail.Subscribe(user, folder)
	} else {
		err = deps.Mail.Unsubscribe(user, folder)
	}
	if err != nil {
		return Response{}, err
	}
	return Response{Tag: tag, Status: "OK", Text: c.Name() + " completed"}, nil
}
