package imap

import (
	"context"
	"testing"

	"github.com/infodancer/mailstackd/internal/mailstore"
)

func newMailboxDeps(t *testing.T) *Deps {
	t.Helper()
	mail, err := mailstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("mailstore.Open: %v", err)
	}
	t.Cleanup(func() { _ = mail.Close() })
	return &Deps{Mail: mail}
}

func authedSession(user string) *Session {
	sess := NewSession("mail.example.com", false, nil)
	sess.SetAuthenticated(user, user)
	return sess
}

func TestCreateThenListThenDeleteRoundTrip(t *testing.T) {
	deps := newMailboxDeps(t)
	sess := authedSession("alice@example.com")
	ctx := context.Background()

	resp, err := (createCommand{}).Execute(ctx, sess, deps, "a1", []string{"Work"})
	if err != nil {
		t.Fatalf("CREATE: %v", err)
	}
	if resp.Status != "OK" {
		t.Fatalf("CREATE status = %q, want OK", resp.Status)
	}

	folders, err := deps.Mail.ListFolders("alice@example.com")
	if err != nil {
		t.Fatalf("ListFolders: %v", err)
	}
	if !containsFolder(folders, "Work") {
		t.Fatalf("folders = %v, want Work listed after CREATE", folders)
	}

	resp, err = (deleteCommand{}).Execute(ctx, sess, deps, "a2", []string{"Work"})
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	if resp.Status != "OK" {
		t.Fatalf("DELETE status = %q, want OK", resp.Status)
	}

	folders, err = deps.Mail.ListFolders("alice@example.com")
	if err != nil {
		t.Fatalf("ListFolders: %v", err)
	}
	if containsFolder(folders, "Work") {
		t.Fatalf("folders = %v, want Work absent after DELETE", folders)
	}
}

func TestDeleteRefusesInbox(t *testing.T) {
	deps := newMailboxDeps(t)
	sess := authedSession("alice@example.com")

	resp, err := (deleteCommand{}).Execute(context.Background(), sess, deps, "a1", []string{"INBOX"})
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	if resp.Status != "NO" {
		t.Fatalf("DELETE INBOX status = %q, want NO", resp.Status)
	}
}

func TestCreateDuplicateFails(t *testing.T) {
	deps := newMailboxDeps(t)
	sess := authedSession("alice@example.com")
	ctx := context.Background()

	if _, err := (createCommand{}).Execute(ctx, sess, deps, "a1", []string{"Work"}); err != nil {
		t.Fatalf("first CREATE: %v", err)
	}
	resp, err := (createCommand{}).Execute(ctx, sess, deps, "a2", []string{"Work"})
	if err != nil {
		t.Fatalf("second CREATE: %v", err)
	}
	if resp.Status != "NO" {
		t.Fatalf("duplicate CREATE status = %q, want NO", resp.Status)
	}
}

func TestRenameMovesFolderContents(t *testing.T) {
	deps := newMailboxDeps(t)
	sess := authedSession("alice@example.com")
	ctx := context.Background()

	if _, err := (createCommand{}).Execute(ctx, sess, deps, "a1", []string{"Old"}); err != nil {
		t.Fatalf("CREATE: %v", err)
	}
	resp, err := (renameCommand{}).Execute(ctx, sess, deps, "a2", []string{"Old", "New"})
	if err != nil {
		t.Fatalf("RENAME: %v", err)
	}
	if resp.Status != "OK" {
		t.Fatalf("RENAME status = %q, want OK", resp.Status)
	}

	folders, err := deps.Mail.ListFolders("alice@example.com")
	if err != nil {
		t.Fatalf("ListFolders: %v", err)
	}
	if containsFolder(folders, "Old") || !containsFolder(folders, "New") {
		t.Fatalf("folders = %v, want Old absent and New present", folders)
	}
}

func TestCreateRequiresExactlyOneArgument(t *testing.T) {
	deps := newMailboxDeps(t)
	sess := authedSession("alice@example.com")

	resp, err := (createCommand{}).Execute(context.Background(), sess, deps, "a1", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.Status != "BAD" {
		t.Errorf("status = %q, want BAD", resp.Status)
	}
}

func containsFolder(folders []string, name string) bool {
	for _, f := range folders {
		if f == name {
			return true
		}
	}
	return false
}
