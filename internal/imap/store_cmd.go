package imap

import (
	"context"
	"fmt"
	"strings"
)

func init() { RegisterCommand(&storeCommand{}) }

type storeCommand struct{ byUID bool }

func (c storeCommand) Name() string { return "STORE" }

func (c storeCommand) Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error) {
	if sess.State() != Selected {
		return Response{Tag: tag, Status: "BAD", Text: "STORE requires a selected mailbox"}, nil
	}
	if sess.Access() == ReadOnly {
		return Response{Tag: tag, Status: "NO", Text: "in read-only mode"}, nil
	}
	if len(args) < 3 {
		return Response{Tag: tag, Status: "BAD", Text: "STORE requires a sequence set, an action, and flags"}, nil
	}

	action := strings.ToUpper(args[1])
	silent := strings.HasSuffix(action, ".SILENT")
	action = strings.TrimSuffix(action, ".SILENT")
	newFlags := collectItems(args[2:])

	user, folder := sess.Mailbox(), sess.SelectedFolder()
	messages := sess.Messages()
	targets := selectMessages(messages, args[0], c.byUID)

	var untagged []string
	for _, m := range targets {
		var final []string
		switch action {
		case "FLAGS":
			final = newFlags
		case "+FLAGS":
			final = unionFlags(m.Flags, newFlags)
		case "-FLAGS":
			final = subtractFlags(m.Flags, newFlags)
		default:
			return Response{Tag: tag, Status: "BAD", Text: "STORE action must be FLAGS, +FLAGS, or -FLAGS"}, nil
		}

		if err := deps.Mail.SetFlags(user, folder, m.Key, toMaildirFlags(final)); err != nil {
			return Response{}, fmt.Errorf("imap: store: %w", err)
		}
		updateSessionFlags(sess, m.Key, final)

		if !silent {
			fields := fmt.Sprintf("FLAGS (%s)", strings.Join(final, " "))
			if c.byUID {
				fields = fmt.Sprintf("UID %d %s", m.UID, fields)
			}
			untagged = append(untagged, Untagged(fmt.Sprintf("%d FETCH (%s)", m.Seq, fields)))
		}
	}

	return Response{Tag: tag, Status: "OK", Text: "STORE completed", Untagged: untagged}, nil
}

func unionFlags(current, add []string) []string {
	set := make(map[string]bool)
	for _, f := range current {
		set[strings.ToUpper(f)] = true
	}
	for _, f := range add {
		set[strings.ToUpper(f)] = true
	}
	var out []string
	for _, name := range PermanentFlags {
		if set[strings.ToUpper(name)] {
			out = append(out, name)
		}
	}
	return out
}

func subtractFlags(current, remove []string) []string {
	drop := make(map[string]bool)
	for _, f := range remove {
		drop[strings.ToUpper(f)] = true
	}
	var out []string
	for _, f := range current {
		if !drop[strings.ToUpper(f)] {
			out = append(out, f)
		}
	}
	return out
}

// updateSessionFlags writes back the new flag set for key into the
// session's in-memory message snapshot, keeping FETCH/STORE responses in
// later commands consistent without a full SELECT reload.
func updateSessionFlags(sess *Session, key string, flags []string) {
	messages := sess.Messages()
	for i := range messages {
		if messages[i].Key == key {
			messages[i].Flags = flags
		}
	}
	sess.SetMessages(messages)
}
