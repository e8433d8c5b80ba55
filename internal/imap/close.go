package imap

import (
	"context"
	"fmt"
	"sort"
)

func init() {
	RegisterCommand(&closeCommand{})
	RegisterCommand(&expungeCommand{})
}

// expungeKeys permanently removes every \Deleted message in the session's
// selected mailbox, returning the untagged "* n EXPUNGE" lines in
// descending sequence order (so that a client processing them in order
// never needs to account for a prior removal shifting numbers, per RFC
// 9051). The surviving messages, renumbered from 1, replace the session's
// message snapshot.
func expungeKeys(ctx context.Context, sess *Session, deps *Deps) ([]string, error) {
	user, folder := sess.Mailbox(), sess.SelectedFolder()

	removed, err := deps.Mail.ExpungeDeleted(ctx, user, folder)
	if err != nil {
		return nil, err
	}
	removedKeys := make(map[string]bool, len(removed))
	for _, k := range removed {
		removedKeys[k] = true
	}
	if len(removed) == 0 {
		return nil, nil
	}

	before := sess.Messages()
	var removedSeqs []uint32
	var survivors []MessageView
	for _, m := range before {
		if removedKeys[m.Key] {
			removedSeqs = append(removedSeqs, m.Seq)
			continue
		}
		survivors = append(survivors, m)
	}
	for i := range survivors {
		survivors[i].Seq = uint32(i + 1)
	}
	sess.SetMessages(survivors)

	sort.Sort(sort.Reverse(uint32Slice(removedSeqs)))
	untagged := make([]string, 0, len(removedSeqs))
	for _, seq := range removedSeqs {
		untagged = append(untagged, Untagged(fmt.Sprintf("%d EXPUNGE", seq)))
	}
	return untagged, nil
}

type uint32Slice []uint32

func (s uint32Slice) Len() int           { return len(s) }
func (s uint32Slice) Less(i, j int) bool { return s[i] < s[j] }
func (s uint32Slice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

type closeCommand struct{}

func (closeCommand) Name() string { return "CLOSE" }

func (closeCommand) Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error) {
	if sess.Access() == ReadOnly {
		return Response{Tag: tag, Status: "NO", Text: "in read-only mode"}, nil
	}
	if _, err := expungeKeys(ctx, sess, deps); err != nil {
		return Response{}, err
	}
	sess.Unselect()
	return Response{Tag: tag, Status: "OK", Text: "CLOSE completed"}, nil
}

type expungeCommand struct{}

func (expungeCommand) Name() string { return "EXPUNGE" }

func (expungeCommand) Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error) {
	if sess.Access() == ReadOnly {
		return Response{Tag: tag, Status: "NO", Text: "in read-only mode"}, nil
	}
	untagged, err := expungeKeys(ctx, sess, deps)
	if err != nil {
		return Response{}, err
	}
	return Response{Tag: tag, Status: "OK", Text: "EXPUNGE completed", Untagged: untagged}, nil
}
