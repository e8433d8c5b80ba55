package mailstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ledgerFile is the sidecar file name holding a folder's UID state. It
// lives beside cur/new/tmp inside the folder's maildir directory.
const ledgerFile = ".uidvalidity"

// uidLedger tracks the UIDVALIDITY and UIDNEXT counters for one folder, and
// the mapping from a maildir message key to the IMAP UID assigned to it.
// msgstore and go-maildir both identify messages by filename-derived key,
// not by a persistent integer, so mailstackd owns this mapping itself.
type uidLedger struct {
	mu   sync.Mutex
	path string

	Validity uint32            `json:"uid_validity"`
	Next     uint32            `json:"uid_next"`
	Keys     map[string]uint32 `json:"keys"`
}

func loadLedger(dir string) (*uidLedger, error) {
	path := filepath.Join(dir, ledgerFile)
	l := &uidLedger{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		l.Validity = uint32(time.Now().Unix())
		l.Next = 1
		l.Keys = make(map[string]uint32)
		if err := l.save(); err != nil {
			return nil, err
		}
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mailstore: read uid ledger: %w", err)
	}
	if err := json.Unmarshal(data, l); err != nil {
		return nil, fmt.Errorf("mailstore: decode uid ledger %s: %w", path, err)
	}
	if l.Keys == nil {
		l.Keys = make(map[string]uint32)
	}
	return l, nil
}

// save persists the ledger via write-then-rename so a crash mid-write never
// leaves a truncated ledger behind, matching the atomic-rename idiom
// maildir itself uses for message delivery.
func (l *uidLedger) save() error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return err
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("mailstore: write uid ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("mailstore: commit uid ledger: %w", err)
	}
	return nil
}

// assignUID returns the UID already assigned to key, allocating the next
// one from the counter if key is new.
func (l *uidLedger) assignUID(key string) (uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if uid, ok := l.Keys[key]; ok {
		return uid, nil
	}
	uid := l.Next
	l.Next++
	l.Keys[key] = uid
	if err := l.save(); err != nil {
		l.Next--
		delete(l.Keys, key)
		return 0, err
	}
	return uid, nil
}

// lookupUID returns the UID assigned to key, if any.
func (l *uidLedger) lookupUID(key string) (uint32, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	uid, ok := l.Keys[key]
	return uid, ok
}

// forget removes key from the ledger, e.g. after the message is expunged.
func (l *uidLedger) forget(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.Keys[key]; !ok {
		return nil
	}
	delete(l.Keys, key)
	return l.save()
}

func (l *uidLedger) validity() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Validity
}

func (l *uidLedger) uidNext() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Next
}
