package mailstore

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// EventKind describes what happened to a message file.
type EventKind int

const (
	invalidEventKind EventKind = iota - 1
	EventCreated
	EventRemoved
	EventModified
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventRemoved:
		return "removed"
	case EventModified:
		return "modified"
	default:
		return "unknown"
	}
}

// Event reports a filesystem change to one user's folder, the signal IMAP
// IDLE fans out as unsolicited EXISTS/EXPUNGE/FETCH responses.
type Event struct {
	User   string
	Folder string
	Kind   EventKind
}

// Watcher watches a maildir tree for new, removed, and modified messages,
// the direct equivalent of the original source's "notify" crate watcher
// over the maildir root.
type Watcher struct {
	basePath string
	fsw      *fsnotify.Watcher
	logger   *slog.Logger

	mu          sync.Mutex
	subscribers map[int]*subscription
	nextID      int
}

type subscription struct {
	user, folder string
	ch           chan Event
}

// NewWatcher starts watching basePath and every directory beneath it that
// already exists.
func NewWatcher(basePath string, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := &Watcher{
		basePath:    basePath,
		fsw:         fsw,
		logger:      logger,
		subscribers: make(map[int]*subscription),
	}
	w.addTree(basePath)
	return w, nil
}

// addTree registers a watch on root and every subdirectory beneath it.
// fsnotify has no recursive mode, so new folders picked up later are added
// as their creation events arrive (see handle).
func (w *Watcher) addTree(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				w.logger.Warn("mailstore: watch failed", slog.String("path", path), slog.Any("error", err))
			}
		}
		return nil
	})
}

// Run processes filesystem events until ctx is canceled, fanning each one
// out to matching subscribers. It blocks; call it from its own goroutine.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("mailstore: watcher error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.addTree(ev.Name)
			return
		}
	}

	user, folder, kind := w.classify(ev)
	if kind == invalidEventKind {
		return
	}

	event := Event{User: user, Folder: folder, Kind: kind}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, sub := range w.subscribers {
		if sub.user != user {
			continue
		}
		if sub.folder != "" && sub.folder != folder {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			w.logger.Warn("mailstore: dropped watcher event, subscriber not draining",
				slog.String("user", user), slog.String("folder", folder))
		}
	}
}

// classify maps a raw fsnotify event under basePath/<user>/[.folder/]{cur,new,tmp}/<key>
// to the user, folder, and kind it represents. tmp/ activity is delivery
// staging, not yet visible to any client, so it is ignored.
func (w *Watcher) classify(ev fsnotify.Event) (user, folder string, kind EventKind) {
	rel, err := filepath.Rel(w.basePath, ev.Name)
	if err != nil {
		return "", "", invalidEventKind
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return "", "", invalidEventKind
	}

	user = parts[0]
	rest := parts[1:]

	var box string
	if rest[0] == "cur" || rest[0] == "new" || rest[0] == "tmp" {
		box, folder = rest[0], Inbox
	} else if strings.HasPrefix(rest[0], ".") && len(rest) >= 2 {
		box, folder = rest[1], DecodeFolder(rest[0])
	} else {
		return "", "", invalidEventKind
	}
	if box == "tmp" {
		return "", "", invalidEventKind
	}

	return user, folder, kindFor(ev.Op)
}

func kindFor(op fsnotify.Op) EventKind {
	switch {
	case op&fsnotify.Create != 0:
		return EventCreated
	case op&fsnotify.Remove != 0 || op&fsnotify.Rename != 0:
		return EventRemoved
	case op&fsnotify.Write != 0 || op&fsnotify.Chmod != 0:
		return EventModified
	default:
		return invalidEventKind
	}
}

// Subscribe registers interest in changes to user's folder. An empty
// folder subscribes to every folder for that user. The returned channel is
// closed when cancel is called; callers must call cancel exactly once.
func (w *Watcher) Subscribe(user, folder string) (<-chan Event, func()) {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	ch := make(chan Event, 32)
	w.subscribers[id] = &subscription{user: user, folder: folder, ch: ch}
	w.mu.Unlock()

	cancel := func() {
		w.mu.Lock()
		if sub, ok := w.subscribers[id]; ok {
			delete(w.subscribers, id)
			close(sub.ch)
		}
		w.mu.Unlock()
	}
	return ch, cancel
}
