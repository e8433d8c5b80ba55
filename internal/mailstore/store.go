// Package mailstore is the mailbox storage layer shared by the IMAP and
// SMTP engines. It splits responsibility between two libraries that cover
// different halves of a maildir tree: github.com/infodancer/msgstore
// supplies per-folder message operations (list, retrieve, delete, expunge,
// stat) the way the POP3 engine already used it; github.com/emersion/go-maildir
// handles folder-hierarchy operations and message delivery that msgstore,
// built for a single flat mailbox, has no API for.
package mailstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	maildir "github.com/emersion/go-maildir"
	"github.com/infodancer/msgstore"
)

// Flag is a maildir message flag, re-exported so callers never need to
// import go-maildir directly.
type Flag = maildir.Flag

// IMAP's permanent flags, mapped to the maildir info-suffix letters.
const (
	FlagSeen     Flag = maildir.FlagSeen
	FlagAnswered Flag = maildir.FlagReplied
	FlagFlagged  Flag = maildir.FlagFlagged
	FlagDeleted  Flag = maildir.FlagTrashed
	FlagDraft    Flag = maildir.FlagDraft
)

// MessageInfo is re-exported from msgstore for callers that only need the
// flat List/Stat shape.
type MessageInfo = msgstore.MessageInfo

// Store is a per-installation handle onto every user's maildir tree rooted
// at basePath (one subdirectory per user, the way the teacher's
// config.Maildir already laid mailboxes out).
type Store struct {
	basePath string
	msgs     msgstore.MessageStore
	folders  msgstore.FolderStore

	mu            sync.Mutex
	ledgers       map[string]*uidLedger
	subscriptions map[string]*subscriptionSet
}

// Open opens the maildir-backed store rooted at basePath.
func Open(basePath string) (*Store, error) {
	raw, err := msgstore.Open(msgstore.StoreConfig{
		Type:     "maildir",
		BasePath: basePath,
	})
	if err != nil {
		return nil, fmt.Errorf("mailstore: open %s: %w", basePath, err)
	}

	s := &Store{
		basePath:      basePath,
		msgs:          raw,
		ledgers:       make(map[string]*uidLedger),
		subscriptions: make(map[string]*subscriptionSet),
	}
	if fs, ok := raw.(msgstore.FolderStore); ok {
		s.folders = fs
	}
	return s, nil
}

// Close releases the underlying msgstore backend, if it is closeable.
func (s *Store) Close() error {
	if c, ok := s.msgs.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Store) userPath(user string) string {
	return filepath.Join(s.basePath, user)
}

func (s *Store) folderPath(user, folder string) string {
	return filepath.Join(s.userPath(user), EncodeFolder(folder))
}

func (s *Store) dir(user, folder string) maildir.Dir {
	return maildir.Dir(s.folderPath(user, folder))
}

// --- message-level operations, delegated to msgstore.FolderStore ---

// List returns every message in the given user's folder.
func (s *Store) List(ctx context.Context, user, folder string) ([]MessageInfo, error) {
	if s.folders == nil {
		return nil, ErrFoldersUnsupported
	}
	return s.folders.ListInFolder(ctx, user, EncodeFolder(folder))
}

// Retrieve opens the message with the given msgstore UID for reading.
func (s *Store) Retrieve(ctx context.Context, user, folder, uid string) (io.ReadCloser, error) {
	if s.folders == nil {
		return nil, ErrFoldersUnsupported
	}
	return s.folders.RetrieveFromFolder(ctx, user, EncodeFolder(folder), uid)
}

// DeleteMessage marks the message with the given msgstore UID for removal.
func (s *Store) DeleteMessage(ctx context.Context, user, folder, uid string) error {
	if s.folders == nil {
		return ErrFoldersUnsupported
	}
	return s.folders.DeleteInFolder(ctx, user, EncodeFolder(folder), uid)
}

// Expunge applies pending deletions in the given folder via msgstore.
func (s *Store) Expunge(ctx context.Context, user, folder string) error {
	if s.folders == nil {
		return ErrFoldersUnsupported
	}
	return s.folders.ExpungeFolder(ctx, user, EncodeFolder(folder))
}

// Stat returns the message count and total size of the given folder. INBOX
// is provisioned lazily: a user with no delivered mail yet has no maildir
// tree on disk, but INBOX must still SELECT as an empty mailbox rather than
// fail with "no such mailbox".
func (s *Store) Stat(ctx context.Context, user, folder string) (count int, size int64, err error) {
	if s.folders == nil {
		return 0, 0, ErrFoldersUnsupported
	}
	if strings.EqualFold(folder, Inbox) {
		if err := s.ensureInbox(user); err != nil {
			return 0, 0, err
		}
	}
	return s.folders.StatFolder(ctx, user, EncodeFolder(folder))
}

// RecentCount returns the number of messages currently sitting in folder's
// new/ subdirectory: mail delivered since the last time any session looked
// at this mailbox, the maildir convention IMAP's RECENT response reports
// (spec section 4.4). msgstore's List/Stat flatten cur/ and new/ into one
// view with no way to tell them apart, so this goes directly against the
// folder's go-maildir path the same way ListFolders already walks the
// filesystem directly for folder-hierarchy operations.
func (s *Store) RecentCount(ctx context.Context, user, folder string) (int, error) {
	if strings.EqualFold(folder, Inbox) {
		if err := s.ensureInbox(user); err != nil {
			return 0, err
		}
	}
	entries, err := os.ReadDir(filepath.Join(s.folderPath(user, folder), "new"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("mailstore: recent count: %w", err)
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() {
			count++
		}
	}
	return count, nil
}

// ensureInbox creates the INBOX maildir tree for user if it does not exist
// yet, the way delivery would on first message.
func (s *Store) ensureInbox(user string) error {
	d := s.dir(user, Inbox)
	if _, err := os.Stat(string(d)); err == nil {
		return nil
	}
	if err := d.Init(); err != nil {
		return fmt.Errorf("mailstore: provision INBOX for %s: %w", user, err)
	}
	return nil
}

// --- folder-hierarchy operations, direct against go-maildir ---

// CreateFolder creates a new, empty folder for user.
func (s *Store) CreateFolder(user, folder string) error {
	if strings.EqualFold(folder, Inbox) {
		return ErrFolderExists
	}
	d := s.dir(user, folder)
	if _, err := os.Stat(string(d)); err == nil {
		return ErrFolderExists
	}
	if err := d.Init(); err != nil {
		return fmt.Errorf("mailstore: create folder %q: %w", folder, err)
	}
	if _, err := s.ledgerFor(user, folder); err != nil {
		return err
	}
	return nil
}

// DeleteFolder removes folder, refusing INBOX and any folder that still has
// inferior hierarchical names (RFC 9051 DELETE semantics; the original
// source's unconditional recursive remove skipped this check).
func (s *Store) DeleteFolder(user, folder string) error {
	if strings.EqualFold(folder, Inbox) {
		return ErrCannotDeleteInbox
	}

	children, err := s.ListFolders(user)
	if err != nil {
		return err
	}
	prefix := folder + "/"
	for _, f := range children {
		if f != folder && strings.HasPrefix(f, prefix) {
			return ErrInferiorHierarchy
		}
	}

	s.mu.Lock()
	delete(s.ledgers, s.folderPath(user, folder))
	s.mu.Unlock()

	if err := os.RemoveAll(s.folderPath(user, folder)); err != nil {
		return fmt.Errorf("mailstore: delete folder %q: %w", folder, err)
	}
	return nil
}

// RenameFolder renames src to dst. INBOX may not be renamed away from;
// RFC 9051 requires renaming INBOX to leave INBOX in place with a new,
// empty mailbox, which this implementation does not support.
func (s *Store) RenameFolder(user, src, dst string) error {
	if strings.EqualFold(src, Inbox) {
		return fmt.Errorf("mailstore: rename INBOX: %w", ErrFoldersUnsupported)
	}

	oldPath := s.folderPath(user, src)
	newPath := s.folderPath(user, dst)
	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("mailstore: rename folder %q to %q: %w", src, dst, err)
	}

	s.mu.Lock()
	if l, ok := s.ledgers[oldPath]; ok {
		delete(s.ledgers, oldPath)
		l.path = filepath.Join(newPath, ledgerFile)
		s.ledgers[newPath] = l
	}
	s.mu.Unlock()
	return nil
}

// ListFolders lists every folder for user, INBOX first, the rest sorted.
func (s *Store) ListFolders(user string) ([]string, error) {
	root := s.userPath(user)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{Inbox}, nil
		}
		return nil, fmt.Errorf("mailstore: list folders: %w", err)
	}

	folders := []string{Inbox}
	var rest []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if name == "cur" || name == "new" || name == "tmp" || !strings.HasPrefix(name, ".") {
			continue
		}
		rest = append(rest, DecodeFolder(name))
	}
	sort.Strings(rest)
	return append(folders, rest...), nil
}

// --- delivery and flags, direct against go-maildir ---

// Append delivers a new message into folder, returning the IMAP UID
// assigned to it.
func (s *Store) Append(ctx context.Context, user, folder string, flags []Flag, r io.Reader) (uid uint32, err error) {
	d := s.dir(user, folder)
	if err := d.Init(); err != nil {
		return 0, fmt.Errorf("mailstore: append: init %q: %w", folder, err)
	}

	delivery, err := d.NewDelivery()
	if err != nil {
		return 0, fmt.Errorf("mailstore: append: %w", err)
	}
	if _, err := io.Copy(delivery, r); err != nil {
		_ = delivery.Abort()
		return 0, fmt.Errorf("mailstore: append: write: %w", err)
	}
	if err := delivery.Close(); err != nil {
		return 0, fmt.Errorf("mailstore: append: commit: %w", err)
	}

	key := delivery.Key
	if len(flags) > 0 {
		if err := d.SetFlags(key, flags); err != nil {
			return 0, fmt.Errorf("mailstore: append: set flags: %w", err)
		}
	}

	ledger, err := s.ledgerFor(user, folder)
	if err != nil {
		return 0, err
	}
	return ledger.assignUID(key)
}

// SetFlags replaces the flags on the message identified by maildir key.
func (s *Store) SetFlags(user, folder, key string, flags []Flag) error {
	if err := s.dir(user, folder).SetFlags(key, flags); err != nil {
		return fmt.Errorf("mailstore: set flags: %w", err)
	}
	return nil
}

// Flags returns the flags currently set on the message identified by key.
func (s *Store) Flags(user, folder, key string) ([]Flag, error) {
	flags, err := s.dir(user, folder).Flags(key)
	if err != nil {
		return nil, fmt.Errorf("mailstore: flags: %w", err)
	}
	return flags, nil
}

// ExpungeDeleted permanently removes every message carrying the maildir T
// info-flag, which IMAP surfaces as \Deleted. This scans the per-message
// flag rather than any mailbox-level \Trash attribute; the original source
// conflated the two (close.rs checked whether the message sat in a
// \Trash-flagged special-use folder instead of checking \Deleted itself).
func (s *Store) ExpungeDeleted(ctx context.Context, user, folder string) ([]string, error) {
	d := s.dir(user, folder)
	keys, err := d.Keys()
	if err != nil {
		return nil, fmt.Errorf("mailstore: expunge: %w", err)
	}

	ledger, err := s.ledgerFor(user, folder)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, key := range keys {
		flags, err := d.Flags(key)
		if err != nil {
			continue
		}
		if !hasFlag(flags, FlagDeleted) {
			continue
		}
		if err := d.Remove(key); err != nil {
			return removed, fmt.Errorf("mailstore: expunge: remove %s: %w", key, err)
		}
		_ = ledger.forget(key)
		removed = append(removed, key)
	}
	return removed, nil
}

// UIDValidity returns the persisted UIDVALIDITY for the given folder.
func (s *Store) UIDValidity(user, folder string) (uint32, error) {
	ledger, err := s.ledgerFor(user, folder)
	if err != nil {
		return 0, err
	}
	return ledger.validity(), nil
}

// UIDNext returns the next UID that will be assigned in the given folder.
func (s *Store) UIDNext(user, folder string) (uint32, error) {
	ledger, err := s.ledgerFor(user, folder)
	if err != nil {
		return 0, err
	}
	return ledger.uidNext(), nil
}

// UIDForKey returns the UID already assigned to a maildir message key, if
// any. Message listings come back from msgstore keyed by its own UID
// string (the maildir filename key under the hood); IMAP needs the
// 32-bit UID from the ledger instead.
func (s *Store) UIDForKey(user, folder, key string) (uint32, bool, error) {
	ledger, err := s.ledgerFor(user, folder)
	if err != nil {
		return 0, false, err
	}
	uid, ok := ledger.lookupUID(key)
	return uid, ok, nil
}

// AssignUID returns the UID assigned to the maildir message key, allocating
// the next one from the folder's counter if key has not been seen before.
// SELECT calls this for every message in a freshly-listed mailbox so that
// messages delivered by another process (not through Append) still get a
// stable UID the first time this session observes them.
func (s *Store) AssignUID(user, folder, key string) (uint32, error) {
	ledger, err := s.ledgerFor(user, folder)
	if err != nil {
		return 0, err
	}
	return ledger.assignUID(key)
}

func (s *Store) ledgerFor(user, folder string) (*uidLedger, error) {
	path := s.folderPath(user, folder)

	s.mu.Lock()
	if l, ok := s.ledgers[path]; ok {
		s.mu.Unlock()
		return l, nil
	}
	s.mu.Unlock()

	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, fmt.Errorf("mailstore: create folder path %s: %w", path, err)
	}
	l, err := loadLedger(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if existing, ok := s.ledgers[path]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	s.ledgers[path] = l
	s.mu.Unlock()
	return l, nil
}

func hasFlag(flags []Flag, want Flag) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}
