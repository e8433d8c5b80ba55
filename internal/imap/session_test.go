package imap

import "testing"

func TestNewSessionStartsNotAuthenticated(t *testing.T) {
	sess := NewSession("mail.example.com", false, nil)
	if sess.State() != NotAuthenticated {
		t.Errorf("State() = %v, want NotAuthenticated", sess.State())
	}
	if sess.Username() != "" {
		t.Errorf("Username() = %q, want empty before auth", sess.Username())
	}
}

func TestSetAuthenticatedTransitionsAndSetsUsername(t *testing.T) {
	sess := NewSession("mail.example.com", false, nil)
	sess.SetAuthenticated("alice", "alice@example.com")

	if sess.State() != Authenticated {
		t.Errorf("State() = %v, want Authenticated", sess.State())
	}
	if sess.Username() != "alice" {
		t.Errorf("Username() = %q, want alice", sess.Username())
	}
	if sess.Mailbox() != "alice@example.com" {
		t.Errorf("Mailbox() = %q, want alice@example.com", sess.Mailbox())
	}
}

func TestSetSelectedAndUnselectRoundTrip(t *testing.T) {
	sess := NewSession("mail.example.com", false, nil)
	sess.SetAuthenticated("alice", "alice@example.com")

	messages := []MessageView{{Seq: 1, UID: 1, Key: "k1"}}
	sess.SetSelected("INBOX", ReadWrite, messages, 100, 2)

	if sess.State() != Selected {
		t.Fatalf("State() = %v, want Selected", sess.State())
	}
	if sess.SelectedFolder() != "INBOX" {
		t.Errorf("SelectedFolder() = %q, want INBOX", sess.SelectedFolder())
	}
	if sess.Access() != ReadWrite {
		t.Errorf("Access() = %v, want ReadWrite", sess.Access())
	}
	if len(sess.Messages()) != 1 {
		t.Errorf("Messages() has %d entries, want 1", len(sess.Messages()))
	}

	sess.Unselect()
	if sess.State() != Authenticated {
		t.Errorf("State() after Unselect = %v, want Authenticated", sess.State())
	}
	if sess.SelectedFolder() != "" {
		t.Errorf("SelectedFolder() after Unselect = %q, want empty", sess.SelectedFolder())
	}
	if len(sess.Messages()) != 0 {
		t.Errorf("Messages() after Unselect has %d entries, want 0", len(sess.Messages()))
	}
}

func TestRecordAuthFailureReportsThreeStrikes(t *testing.T) {
	sess := NewSession("mail.example.com", false, nil)

	if sess.RecordAuthFailure() {
		t.Fatal("first failure should not be fatal")
	}
	if sess.RecordAuthFailure() {
		t.Fatal("second failure should not be fatal")
	}
	if !sess.RecordAuthFailure() {
		t.Fatal("third consecutive failure should report limitReached=true")
	}
}

func TestResetAuthFailuresClearsCounter(t *testing.T) {
	sess := NewSession("mail.example.com", false, nil)
	sess.RecordAuthFailure()
	sess.RecordAuthFailure()
	sess.ResetAuthFailures()

	if sess.RecordAuthFailure() {
		t.Fatal("counter should have been reset, so this is only the first failure again")
	}
}

func TestSetSecureOnlyMovesForward(t *testing.T) {
	sess := NewSession("mail.example.com", false, nil)
	if sess.IsSecure() {
		t.Fatal("new session should not be secure")
	}
	sess.SetSecure(true)
	if !sess.IsSecure() {
		t.Fatal("SetSecure(true) should mark the session secure")
	}
}

func TestPendingLiteralRoundTrip(t *testing.T) {
	sess := NewSession("mail.example.com", false, nil)
	if _, ok := sess.PendingLiteral(); ok {
		t.Fatal("new session should have no pending literal")
	}
	sess.SetPendingLiteral(42)
	octets, ok := sess.PendingLiteral()
	if !ok || octets != 42 {
		t.Fatalf("PendingLiteral() = (%d, %v), want (42, true)", octets, ok)
	}
	sess.ClearPendingLiteral()
	if _, ok := sess.PendingLiteral(); ok {
		t.Fatal("PendingLiteral should be cleared")
	}
}

func TestEnableCapabilityIsQueryable(t *testing.T) {
	sess := NewSession("mail.example.com", false, nil)
	if sess.HasCapability("UTF8=ACCEPT") {
		t.Fatal("capability should not be active before EnableCapability")
	}
	sess.EnableCapability("UTF8=ACCEPT")
	if !sess.HasCapability("UTF8=ACCEPT") {
		t.Fatal("capability should be active after EnableCapability")
	}
}
