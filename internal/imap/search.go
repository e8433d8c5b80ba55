package imap

import (
	"context"
	"strconv"
	"strings"
)

func init() { RegisterCommand(&searchCommand{}) }

type searchCommand struct{ byUID bool }

func (searchCommand) Name() string { return "SEARCH" }

func (c searchCommand) Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error) {
	if sess.State() != Selected {
		return Response{Tag: tag, Status: "BAD", Text: "SEARCH requires a selected mailbox"}, nil
	}
	if len(args) == 0 {
		return Response{Tag: tag, Status: "BAD", Text: "SEARCH requires search criteria"}, nil
	}

	messages := sess.Messages()
	var matches []string
	for _, m := range messages {
		if matchCriteria(m, args) {
			if c.byUID {
				matches = append(matches, strconv.FormatUint(uint64(m.UID), 10))
			} else {
				matches = append(matches, strconv.FormatUint(uint64(m.Seq), 10))
			}
		}
	}

	return Response{
		Tag:      tag,
		Status:   "OK",
		Text:     "SEARCH completed",
		Untagged: []string{Untagged("SEARCH " + strings.Join(matches, " "))},
	}, nil
}

// matchCriteria evaluates a SEARCH key list against one message. Every key
// must match (implicit AND); unsupported keys are treated as always-true
// rather than rejecting the command, matching how real servers degrade
// gracefully on clients probing for extensions they don't need.
func matchCriteria(m MessageView, keys []string) bool {
	i := 0
	for i < len(keys) {
		key := strings.ToUpper(keys[i])
		switch key {
		case "ALL":
		case "SEEN":
			if !hasIMAPFlag(m.Flags, "\\Seen") {
				return false
			}
		case "UNSEEN":
			if hasIMAPFlag(m.Flags, "\\Seen") {
				return false
			}
		case "FLAGGED":
			if !hasIMAPFlag(m.Flags, "\\Flagged") {
				return false
			}
		case "UNFLAGGED":
			if hasIMAPFlag(m.Flags, "\\Flagged") {
				return false
			}
		case "DELETED":
			if !hasIMAPFlag(m.Flags, "\\Deleted") {
				return false
			}
		case "UNDELETED":
			if hasIMAPFlag(m.Flags, "\\Deleted") {
				return false
			}
		case "ANSWERED":
			if !hasIMAPFlag(m.Flags, "\\Answered") {
				return false
			}
		case "LARGER":
			i++
			if i >= len(keys) {
				return false
			}
			n, err := strconv.ParseInt(keys[i], 10, 64)
			if err != nil || m.Size <= n {
				return false
			}
		case "SMALLER":
			i++
			if i >= len(keys) {
				return false
			}
			n, err := strconv.ParseInt(keys[i], 10, 64)
			if err != nil || m.Size >= n {
				return false
			}
		case "UID":
			i++
			if i >= len(keys) {
				return false
			}
			wanted, err := parseSeqSet(keys[i], m.UID)
			if err != nil {
				return false
			}
			found := false
			for _, w := range wanted {
				if w == m.UID {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		i++
	}
	return true
}
