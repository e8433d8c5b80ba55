package imap

import (
	"context"
	"fmt"
	"io"
	"strings"
)

func init() { RegisterCommand(&fetchCommand{}) }

// collectItems reconstructs a FETCH/STORE data-item list. The tokenizer
// splits on plain spaces with no awareness of IMAP's parenthesised groups,
// so "(FLAGS UID)" arrives as two tokens ("(FLAGS" "UID)"); this collapses
// them back into a flat item list, or passes a single bare item through
// unchanged.
func collectItems(args []string) []string {
	if len(args) == 0 {
		return nil
	}
	if strings.HasPrefix(args[0], "(") {
		joined := strings.TrimSuffix(strings.TrimPrefix(strings.Join(args, " "), "("), ")")
		return strings.Fields(joined)
	}
	return args
}

type fetchCommand struct{ byUID bool }

func (c fetchCommand) Name() string { return "FETCH" }

func (c fetchCommand) Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error) {
	if sess.State() != Selected {
		return Response{Tag: tag, Status: "BAD", Text: "FETCH requires a selected mailbox"}, nil
	}
	if len(args) < 2 {
		return Response{Tag: tag, Status: "BAD", Text: "FETCH requires a sequence set and data items"}, nil
	}

	messages := sess.Messages()
	targets := selectMessages(messages, args[0], c.byUID)
	items := collectItems(args[1:])

	var untagged []string
	for _, m := range targets {
		line, err := renderFetch(ctx, sess, deps, m, items, c.byUID)
		if err != nil {
			return Response{}, err
		}
		untagged = append(untagged, Untagged(line))
	}

	return Response{Tag: tag, Status: "OK", Text: "FETCH completed", Untagged: untagged}, nil
}

// selectMessages resolves a sequence-set (or, if byUID, a UID-set) against
// the session's current message snapshot.
func selectMessages(messages []MessageView, spec string, byUID bool) []MessageView {
	if len(messages) == 0 {
		return nil
	}
	if byUID {
		maxUID := messages[len(messages)-1].UID
		wanted, err := parseSeqSet(spec, maxUID)
		if err != nil {
			return nil
		}
		set := make(map[uint32]bool, len(wanted))
		for _, u := range wanted {
			set[u] = true
		}
		var out []MessageView
		for _, m := range messages {
			if set[m.UID] {
				out = append(out, m)
			}
		}
		return out
	}

	wanted, err := parseSeqSet(spec, uint32(len(messages)))
	if err != nil {
		return nil
	}
	set := make(map[uint32]bool, len(wanted))
	for _, s := range wanted {
		set[s] = true
	}
	var out []MessageView
	for _, m := range messages {
		if set[m.Seq] {
			out = append(out, m)
		}
	}
	return out
}

func renderFetch(ctx context.Context, sess *Session, deps *Deps, m MessageView, items []string, byUID bool) (string, error) {
	user, folder := sess.Mailbox(), sess.SelectedFolder()

	var parts []string
	includesUID := byUID
	for _, raw := range items {
		item := strings.ToUpper(raw)
		switch {
		case item == "FLAGS":
			parts = append(parts, fmt.Sprintf("FLAGS (%s)", strings.Join(m.Flags, " ")))
		case item == "UID":
			includesUID = true
		case item == "RFC822.SIZE":
			parts = append(parts, fmt.Sprintf("RFC822.SIZE %d", m.Size))
		case item == "INTERNALDATE":
			parts = append(parts, `INTERNALDATE "01-Jan-1970 00:00:00 +0000"`)
		case strings.HasPrefix(item, "BODY") || strings.HasPrefix(item, "RFC822"):
			peek := strings.Contains(item, "PEEK")
			body, err := readMessage(ctx, deps, user, folder, m.Key)
			if err != nil {
				return "", err
			}
			if !peek && !hasIMAPFlag(m.Flags, "\\Seen") {
				if err := markSeen(deps, user, folder, m.Key, m.Flags); err != nil {
					return "", err
				}
				m.Flags = append(append([]string{}, m.Flags...), "\\Seen")
				updateSessionFlags(sess, m.Key, m.Flags)
			}
			label := "BODY[]"
			if strings.HasPrefix(item, "RFC822") {
				label = "RFC822"
			}
			parts = append(parts, fmt.Sprintf("%s {%d}\r\n%s", label, len(body), body))
		}
	}
	if includesUID {
		parts = append([]string{fmt.Sprintf("UID %d", m.UID)}, parts...)
	}

	return fmt.Sprintf("%d FETCH (%s)", m.Seq, strings.Join(parts, " ")), nil
}

func readMessage(ctx context.Context, deps *Deps, user, folder, key string) (string, error) {
	rc, err := deps.Mail.Retrieve(ctx, user, folder, key)
	if err != nil {
		return "", fmt.Errorf("imap: fetch: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("imap: fetch: read: %w", err)
	}
	return string(data), nil
}

func markSeen(deps *Deps, user, folder, key string, current []string) error {
	flags := toMaildirFlags(append(append([]string{}, current...), "\\Seen"))
	return deps.Mail.SetFlags(user, folder, key, flags)
}
