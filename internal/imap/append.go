package imap

import (
	"context"
	"fmt"
	"strings"
)

func init() { RegisterCommand(&appendCommand{}) }

// appendCommand implements APPEND (spec section 4.4). The parser hands the
// literal message body through as the command line's final argument; any
// arguments between the mailbox name and the body are an optional
// parenthesised flag list followed by an optional internal date. The flag
// list is recognised only when it comes first; the internal date is not
// used.
type appendCommand struct{}

func (appendCommand) Name() string { return "APPEND" }

func (appendCommand) Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error) {
	if len(args) < 2 {
		return Response{Tag: tag, Status: "BAD", Text: "APPEND requires a mailbox and a message literal"}, nil
	}
	mailbox := args[0]
	body := args[len(args)-1]
	middle := args[1 : len(args)-1]

	var flags []string
	if len(middle) > 0 && strings.HasPrefix(middle[0], "(") {
		var group []string
		i := 0
		for i < len(middle) {
			group = append(group, middle[i])
			closed := strings.HasSuffix(middle[i], ")")
			i++
			if closed {
				break
			}
		}
		joined := strings.TrimSuffix(strings.TrimPrefix(strings.Join(group, " "), "("), ")")
		if joined != "" {
			flags = strings.Fields(joined)
		}
	}

	user := sess.Mailbox()
	if _, _, err := deps.Mail.Stat(ctx, user, mailbox); err != nil {
		return Response{Tag: tag, Status: "NO", Text: "[TRYCREATE] APPEND failure: no such mailbox"}, nil
	}

	uid, err := deps.Mail.Append(ctx, user, mailbox, toMaildirFlags(flags), strings.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("imap: append: %w", err)
	}
	if deps.Collector != nil {
		deps.Collector.MessageStored("imap", user, int64(len(body)))
	}

	uidValidity, err := deps.Mail.UIDValidity(user, mailbox)
	if err != nil {
		return Response{}, err
	}

	return Response{
		Tag:    tag,
		Status: "OK",
		Text:   fmt.Sprintf("[APPENDUID %d %d] APPEND completed", uidValidity, uid),
	}, nil
}
