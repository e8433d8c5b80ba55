package imap

import (
	"context"
	"fmt"
	"sort"

	"github.com/infodancer/mailstackd/internal/mailstore"
)

func init() {
	RegisterCommand(&selectCommand{access: ReadWrite})
	RegisterCommand(&selectCommand{access: ReadOnly, examine: true})
	RegisterCommand(&unselectCommand{})
}

// loadMailbox lists folder's messages, assigns each a stable UID and
// sequence number, and returns the snapshot plus the untagged lines a
// SELECT/EXAMINE response reports (spec section 4.4).
func loadMailbox(ctx context.Context, deps *Deps, user, folder string) ([]MessageView, []string, error) {
	infos, err := deps.Mail.List(ctx, user, folder)
	if err != nil {
		return nil, nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].UID < infos[j].UID })

	views := make([]MessageView, 0, len(infos))
	firstUnseen := 0
	for i, info := range infos {
		uid, err := deps.Mail.AssignUID(user, folder, info.UID)
		if err != nil {
			return nil, nil, err
		}
		flags, err := deps.Mail.Flags(user, folder, info.UID)
		if err != nil {
			return nil, nil, err
		}
		names := toIMAPFlags(flags)
		if firstUnseen == 0 && !hasIMAPFlag(names, "\\Seen") {
			firstUnseen = i + 1
		}
		views = append(views, MessageView{
			Seq:   uint32(i + 1),
			UID:   uid,
			Key:   info.UID,
			Flags: names,
			Size:  info.Size,
		})
	}

	uidValidity, err := deps.Mail.UIDValidity(user, folder)
	if err != nil {
		return nil, nil, err
	}
	uidNext, err := deps.Mail.UIDNext(user, folder)
	if err != nil {
		return nil, nil, err
	}
	recent, err := deps.Mail.RecentCount(ctx, user, folder)
	if err != nil {
		return nil, nil, err
	}

	untagged := []string{
		Untagged(fmt.Sprintf("%d EXISTS", len(views))),
		Untagged(fmt.Sprintf("%d RECENT", recent)),
		Untagged(fmt.Sprintf("FLAGS (%s)", joinFlags(PermanentFlags))),
		Untagged(fmt.Sprintf("OK [PERMANENTFLAGS (%s)] Limited", joinFlags(PermanentFlags))),
		Untagged(fmt.Sprintf("OK [UIDVALIDITY %d] UIDs valid", uidValidity)),
		Untagged(fmt.Sprintf("OK [UIDNEXT %d] Predicted next UID", uidNext)),
	}
	if firstUnseen > 0 {
		untagged = append(untagged, Untagged(fmt.Sprintf("OK [UNSEEN %d] first unseen", firstUnseen)))
	}

	return views, untagged, nil
}

func joinFlags(flags []string) string {
	out := ""
	for i, f := range flags {
		if i > 0 {
			out += " "
		}
		out += f
	}
	return out
}

type selectCommand struct {
	access  Access
	examine bool
}

func (c selectCommand) Name() string {
	if c.examine {
		return "EXAMINE"
	}
	return "SELECT"
}

func (c selectCommand) Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error) {
	if len(args) != 1 {
		return Response{Tag: tag, Status: "BAD", Text: c.Name() + " requires a mailbox name"}, nil
	}
	folder := args[0]
	user := sess.Mailbox()

	if _, _, err := deps.Mail.Stat(ctx, user, folder); err != nil {
		return Response{Tag: tag, Status: "NO", Text: c.Name() + " failure: no such mailbox"}, nil
	}

	views, untagged, err := loadMailbox(ctx, deps, user, folder)
	if err != nil {
		return Response{}, fmt.Errorf("imap: %s %s: %w", c.Name(), folder, err)
	}

	uidValidity, _ := deps.Mail.UIDValidity(user, folder)
	uidNext, _ := deps.Mail.UIDNext(user, folder)
	sess.SetSelected(folder, c.access, views, uidValidity, uidNext)

	return Response{
		Tag:      tag,
		Status:   "OK",
		Text:     fmt.Sprintf("[%s] %s completed", c.access, c.Name()),
		Untagged: untagged,
	}, nil
}

type unselectCommand struct{}

func (unselectCommand) Name() string { return "UNSELECT" }

func (unselectCommand) Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error) {
	if sess.State() != Selected {
		return Response{Tag: tag, Status: "BAD", Text: "UNSELECT requires a selected mailbox"}, nil
	}
	sess.Unselect()
	return Response{Tag: tag, Status: "OK", Text: "UNSELECT completed"}, nil
}
