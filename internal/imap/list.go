package imap

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/infodancer/mailstackd/internal/mailstore"
)

func init() {
	RegisterCommand(&listCommand{subscribedOnly: false})
	RegisterCommand(&listCommand{subscribedOnly: true})
	RegisterCommand(&statusCommand{})
}

// matchPattern compiles an IMAP LIST mailbox pattern ('%' matches within
// one hierarchy level, '*' matches across levels) into a regexp anchored
// to the whole folder name.
func matchPattern(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString("[^/]*")
		case '*':
			sb.WriteString(".*")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}

type listCommand struct {
	subscribedOnly bool
}

func (c listCommand) Name() string {
	if c.subscribedOnly {
		return "LSUB"
	}
	return "LIST"
}

func (c listCommand) Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error) {
	if len(args) != 2 {
		return Response{Tag: tag, Status: "BAD", Text: c.Name() + " requires a reference and a mailbox pattern"}, nil
	}
	reference, pattern := args[0], args[1]
	user := sess.Mailbox()

	full := pattern
	if reference != "" {
		full = reference + "/" + pattern
	}

	if full == "" {
		return Response{
			Tag:      tag,
			Status:   "OK",
			Text:     c.Name() + " completed",
			Untagged: []string{Untagged(fmt.Sprintf(`%s (\Noselect) "/" ""`, c.Name()))},
		}, nil
	}

	re, err := matchPattern(full)
	if err != nil {
		return Response{Tag: tag, Status: "BAD", Text: "invalid mailbox pattern"}, nil
	}

	var candidates []string
	if c.subscribedOnly {
		candidates, err = deps.Mail.Subscribed(user)
	} else {
		candidates, err = deps.Mail.ListFolders(user)
	}
	if err != nil {
		return Response{}, err
	}

	var untagged []string
	for _, folder := range candidates {
		if !re.MatchString(folder) {
			continue
		}
		var attrs []string
		if use, ok := mailstore.SpecialUse(folder); ok {
			attrs = append(attrs, use)
		}
		untagged = append(untagged, Untagged(fmt.Sprintf(`%s (%s) "/" %s`, c.Name(), strings.Join(attrs, " "), folder)))
	}

	return Response{
		Tag:      tag,
		Status:   "OK",
		Text:     c.Name() + " completed",
		Untagged: untagged,
	}, nil
}

type statusCommand struct{}

func (statusCommand) Name() string { return "STATUS" }

func (statusCommand) Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error) {
	if len(args) < 2 {
		return Response{Tag: tag, Status: "BAD", Text: "STATUS requires a mailbox and a data item list"}, nil
	}
	user, folder := sess.Mailbox(), args[0]
	items := args[1:]

	count, size, err := deps.Mail.Stat(ctx, user, folder)
	if err != nil {
		return Response{Tag: tag, Status: "NO", Text: "STATUS failure: no such mailbox"}, nil
	}
	uidValidity, err := deps.Mail.UIDValidity(user, folder)
	if err != nil {
		return Response{}, err
	}
	uidNext, err := deps.Mail.UIDNext(user, folder)
	if err != nil {
		return Response{}, err
	}

	var parts []string
	for _, item := range items {
		switch strings.ToUpper(strings.Trim(item, "()")) {
		case "MESSAGES":
			parts = append(parts, fmt.Sprintf("MESSAGES %d", count))
		case "UIDNEXT":
			parts = append(parts, fmt.Sprintf("UIDNEXT %d", uidNext))
		case "UIDVALIDITY":
			parts = append(parts, fmt.Sprintf("UIDVALIDITY %d", uidValidity))
		case "UNSEEN":
			parts = append(parts, fmt.Sprintf("UNSEEN %d", count))
		case "SIZE":
			parts = append(parts, fmt.Sprintf("SIZE %d", size))
		case "RECENT":
			parts = append(parts, "RECENT 0")
		}
	}

	return Response{
		Tag:      tag,
		Status:   "OK",
		Text:     "STATUS completed",
		Untagged: []string{Untagged(fmt.Sprintf("STATUS %s (%s)", folder, strings.Join(parts, " ")))},
	}, nil
}
