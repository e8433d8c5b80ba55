package smtp

import (
	"testing"
)

func TestNewSessionStartsNotAuthenticated(t *testing.T) {
	sess := NewSession("mail.example.com", false, nil, "203.0.113.9")

	if sess.State() != NotAuthenticated {
		t.Errorf("State() = %v, want NotAuthenticated", sess.State())
	}
	if sess.IsSecure() {
		t.Error("IsSecure() = true for a plaintext session")
	}
	if sess.ClientIP() != "203.0.113.9" {
		t.Errorf("ClientIP() = %q, want 203.0.113.9", sess.ClientIP())
	}
}

func TestEnvelopeLifecycle(t *testing.T) {
	sess := NewSession("mail.example.com", true, nil, "203.0.113.9")
	sess.SetAuthenticated("alice", "alice@example.com")

	sess.SetEnvelopeFrom("alice@example.com")
	if sess.State() != InMail {
		t.Fatalf("State() after SetEnvelopeFrom = %v, want InMail", sess.State())
	}

	sess.AddRecipient("bob@example.com")
	sess.AddRecipient("carol@example.com")

	env := sess.Envelope()
	if env.From != "alice@example.com" {
		t.Errorf("Envelope().From = %q, want alice@example.com", env.From)
	}
	if len(env.To) != 2 || env.To[0] != "bob@example.com" || env.To[1] != "carol@example.com" {
		t.Errorf("Envelope().To = %v, want [bob@example.com carol@example.com]", env.To)
	}

	// Envelope() must be a defensive copy: mutating the returned slice must
	// not reach back into the session.
	env.To[0] = "mallory@example.com"
	if got := sess.Envelope().To[0]; got != "bob@example.com" {
		t.Errorf("Envelope() leaked a mutable slice: To[0] = %q, want bob@example.com", got)
	}

	sess.ResetEnvelope()
	if sess.State() != Authenticated {
		t.Errorf("State() after ResetEnvelope = %v, want Authenticated", sess.State())
	}
	if env := sess.Envelope(); env.From != "" || len(env.To) != 0 {
		t.Errorf("Envelope() after ResetEnvelope = %+v, want zero value", env)
	}
}

func TestResetEnvelopeLeavesNonTransactionStateAlone(t *testing.T) {
	sess := NewSession("mail.example.com", true, nil, "203.0.113.9")

	// RSET before MAIL FROM: nothing to reset, state must not move.
	sess.ResetEnvelope()
	if sess.State() != NotAuthenticated {
		t.Errorf("State() = %v, want NotAuthenticated", sess.State())
	}
}

func TestDataBufferAccumulatesAndClears(t *testing.T) {
	sess := NewSession("mail.example.com", true, nil, "203.0.113.9")

	buf := sess.dataBuffer()
	buf.WriteString("Subject: hi")
	if sess.dataBuffer().String() != "Subject: hi" {
		t.Errorf("dataBuffer() = %q, want Subject: hi", sess.dataBuffer().String())
	}

	sess.clearDataBuffer()
	if sess.dataBuffer().Len() != 0 {
		t.Errorf("dataBuffer() after clear has length %d, want 0", sess.dataBuffer().Len())
	}
}

func TestRecordAuthFailureReachesLimitAtThree(t *testing.T) {
	sess := NewSession("mail.example.com", true, nil, "203.0.113.9")

	for i := 1; i <= 2; i++ {
		if sess.RecordAuthFailure() {
			t.Fatalf("RecordAuthFailure() reached limit after %d failures, want 3", i)
		}
	}
	if !sess.RecordAuthFailure() {
		t.Fatal("RecordAuthFailure() did not reach limit after 3 failures")
	}

	sess.ResetAuthFailures()
	if sess.RecordAuthFailure() {
		t.Fatal("RecordAuthFailure() reached limit immediately after ResetAuthFailures")
	}
}

func TestMailboxFor(t *testing.T) {
	tests := []struct {
		username, mailbox, want string
	}{
		{"Alice", "", "alice"},
		{"Alice", "alice@example.com", "alice@example.com"},
	}
	for _, tt := range tests {
		if got := mailboxFor(tt.username, tt.mailbox); got != tt.want {
			t.Errorf("mailboxFor(%q, %q) = %q, want %q", tt.username, tt.mailbox, got, tt.want)
		}
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{NotAuthenticated, "not authenticated"},
		{Authenticating, "authenticating"},
		{Authenticated, "authenticated"},
		{InMail, "in mail"},
		{InData, "in data"},
		{Quit, "quit"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
