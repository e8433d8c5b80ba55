package imap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/infodancer/mailstackd/internal/codec"
	"github.com/infodancer/mailstackd/internal/mailstore"
)

func init() { RegisterCommand(&idleCommand{}) }

// idleCommand only produces the initial continuation; the actual wait loop
// runs in RunIdle, which the connection supervisor invokes once it sees
// Response.Idle so it can interleave reads for the client's "DONE" line
// with unsolicited mailbox-change notifications, neither of which a plain
// Command.Execute call can do on its own.
type idleCommand struct{}

func (idleCommand) Name() string { return "IDLE" }

func (idleCommand) Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error) {
	if sess.State() != Selected && sess.State() != Authenticated {
		return Response{Tag: tag, Status: "BAD", Text: "IDLE requires authentication"}, nil
	}
	return Response{Tag: tag, Continuation: true, Challenge: "idling", Idle: true}, nil
}

// RunIdle blocks until the client sends a line on c ("DONE" ends the IDLE,
// anything else is answered BAD), the read fails, or ctx is canceled.
// Mailbox-change events for the session's selected folder are reported
// while it waits and do not end the IDLE. Unsolicited
// EXISTS/EXPUNGE/FETCH lines and the periodic keepalive are enqueued onto
// out, the same writer task the reader uses for command replies, rather
// than written to c directly: the file-watcher fan-out is one more producer
// on the per-connection outbound queue, never a second writer of the codec
// (spec sections 4.5 and 9). Every refresh interval it enqueues
// "* OK Still here" so the client's own inactivity timer never fires first
// (spec section 5). It returns the tagged completion response for the
// caller to enqueue; it does not enqueue the tagged line itself. The reader
// goroutine it starts for the client's "DONE" line outlives a canceled ctx
// until that read actually returns, so callers must not start a second
// RunIdle on the same codec concurrently.
func RunIdle(ctx context.Context, sess *Session, deps *Deps, c *codec.Codec, out *codec.Outbound, tag string, refresh time.Duration) (Response, error) {
	user, folder := sess.Mailbox(), sess.SelectedFolder()

	var events <-chan mailstore.Event
	var cancel func()
	if deps.Watcher != nil && user != "" {
		events, cancel = deps.Watcher.Subscribe(user, folder)
		defer cancel()
	}

	lines := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		line, err := c.ReadLine()
		if err != nil {
			errs <- err
			return
		}
		lines <- line
	}()

	timer := time.NewTimer(refresh)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case err := <-errs:
			return Response{}, err
		case line := <-lines:
			if !strings.EqualFold(strings.TrimSpace(line), "DONE") {
				return Response{Tag: tag, Status: "BAD", Text: "expected DONE"}, nil
			}
			return Response{Tag: tag, Status: "OK", Text: "IDLE terminated"}, nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			reportIdleEvent(ctx, sess, deps, out, ev)
			if out.Failed() {
				return Response{}, fmt.Errorf("imap: idle: outbound write failed")
			}
		case <-timer.C:
			out.Enqueue([]string{"* OK Still here"})
			if out.Failed() {
				return Response{}, fmt.Errorf("imap: idle: outbound write failed")
			}
			timer.Reset(refresh)
		}
	}
}

// reportIdleEvent refreshes the session's message snapshot against the
// folder and enqueues the untagged lines a client expects for the change:
// EXISTS/RECENT after the count grows, EXPUNGE (by descending sequence
// number) after it shrinks, and FETCH for flag-only changes.
func reportIdleEvent(ctx context.Context, sess *Session, deps *Deps, out *codec.Outbound, ev mailstore.Event) {
	if ev.Folder != sess.SelectedFolder() {
		return
	}

	before := sess.Messages()
	messages, _, err := loadMailbox(ctx, deps, sess.Mailbox(), sess.SelectedFolder())
	if err != nil {
		return
	}
	sess.SetMessages(messages)

	var lines []string
	switch ev.Kind {
	case mailstore.EventCreated:
		lines = append(lines, Untagged(fmt.Sprintf("%d EXISTS", len(messages))))
		if recent, err := deps.Mail.RecentCount(ctx, sess.Mailbox(), sess.SelectedFolder()); err == nil {
			lines = append(lines, Untagged(fmt.Sprintf("%d RECENT", recent)))
		}
	case mailstore.EventRemoved:
		remaining := make(map[string]bool)
		for _, m := range messages {
			remaining[m.Key] = true
		}
		for i := len(before) - 1; i >= 0; i-- {
			if !remaining[before[i].Key] {
				lines = append(lines, Untagged(fmt.Sprintf("%d EXPUNGE", before[i].Seq)))
			}
		}
	case mailstore.EventModified:
		for _, m := range messages {
			lines = append(lines, Untagged(fmt.Sprintf("%d FETCH (FLAGS (%s))", m.Seq, strings.Join(m.Flags, " "))))
		}
	}
	out.Enqueue(lines)
}
