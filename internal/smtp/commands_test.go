package smtp

import (
	"context"
	"crypto/tls"
	"strings"
	"testing"
)

func TestMailRequiresAuthenticated(t *testing.T) {
	sess := NewSession("mail.example.com", true, nil, "203.0.113.9")
	deps := &Deps{Hostname: "mail.example.com"}

	result, err := (mailCommand{}).Execute(context.Background(), sess, deps, []string{"MAIL FROM:<alice@example.com>", "alice@example.com"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Code != 503 {
		t.Errorf("Code = %d, want 503 before authentication", result.Code)
	}

	sess.SetAuthenticated("alice", "alice@example.com")
	result, err = (mailCommand{}).Execute(context.Background(), sess, deps, []string{"MAIL FROM:<alice@example.com>", "alice@example.com"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Code != 250 {
		t.Errorf("Code = %d, want 250 once authenticated", result.Code)
	}
	if sess.State() != InMail {
		t.Errorf("State() = %v, want InMail", sess.State())
	}
}

func TestRcptRequiresInMail(t *testing.T) {
	sess := NewSession("mail.example.com", true, nil, "203.0.113.9")
	sess.SetAuthenticated("alice", "alice@example.com")
	deps := &Deps{Hostname: "mail.example.com"}

	result, err := (rcptCommand{}).Execute(context.Background(), sess, deps, []string{"RCPT TO:<bob@example.com>", "bob@example.com"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Code != 503 {
		t.Errorf("Code = %d, want 503 before MAIL FROM", result.Code)
	}

	sess.SetEnvelopeFrom("alice@example.com")
	result, err = (rcptCommand{}).Execute(context.Background(), sess, deps, []string{"RCPT TO:<bob@example.com>", "bob@example.com"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Code != 250 {
		t.Errorf("Code = %d, want 250 during a transaction", result.Code)
	}
	if got := sess.Envelope().To; len(got) != 1 || got[0] != "bob@example.com" {
		t.Errorf("Envelope().To = %v, want [bob@example.com]", got)
	}
}

func TestDataRequiresRecipient(t *testing.T) {
	sess := NewSession("mail.example.com", true, nil, "203.0.113.9")
	sess.SetAuthenticated("alice", "alice@example.com")
	sess.SetEnvelopeFrom("alice@example.com")
	deps := &Deps{Hostname: "mail.example.com"}

	result, err := (dataCommand{}).Execute(context.Background(), sess, deps, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Code != 503 {
		t.Errorf("Code = %d, want 503 with no recipients", result.Code)
	}
	if sess.State() != InMail {
		t.Errorf("State() = %v, want InMail unchanged", sess.State())
	}

	sess.AddRecipient("bob@example.com")
	result, err = (dataCommand{}).Execute(context.Background(), sess, deps, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Code != 354 {
		t.Errorf("Code = %d, want 354 once a recipient is present", result.Code)
	}
	if sess.State() != InData {
		t.Errorf("State() = %v, want InData", sess.State())
	}
}

func TestRsetClearsEnvelopeRegardlessOfState(t *testing.T) {
	sess := NewSession("mail.example.com", true, nil, "203.0.113.9")
	sess.SetAuthenticated("alice", "alice@example.com")
	sess.SetEnvelopeFrom("alice@example.com")
	sess.AddRecipient("bob@example.com")

	result, err := (rsetCommand{}).Execute(context.Background(), sess, &Deps{}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Code != 250 {
		t.Errorf("Code = %d, want 250", result.Code)
	}
	if sess.State() != Authenticated {
		t.Errorf("State() = %v, want Authenticated", sess.State())
	}
	if env := sess.Envelope(); env.From != "" || len(env.To) != 0 {
		t.Errorf("Envelope() = %+v, want zero value after RSET", env)
	}
}

func TestQuitTransitionsToQuitState(t *testing.T) {
	sess := NewSession("mail.example.com", true, nil, "203.0.113.9")
	result, err := (quitCommand{}).Execute(context.Background(), sess, &Deps{Hostname: "mail.example.com"}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Quit {
		t.Error("Result.Quit = false, want true")
	}
	if sess.State() != Quit {
		t.Errorf("State() = %v, want Quit", sess.State())
	}
}

func TestEhloAdvertisesStartTLSOnlyWhenInsecure(t *testing.T) {
	sess := NewSession("mail.example.com", false, nil, "203.0.113.9")
	deps := &Deps{Hostname: "mail.example.com", TLSConfig: &tls.Config{}}

	result, err := (ehloCommand{}).Execute(context.Background(), sess, deps, []string{"EHLO client.example.com", "client.example.com"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !containsLine(result.Lines, "STARTTLS") {
		t.Errorf("EHLO response %v does not advertise STARTTLS over plaintext", result.Lines)
	}

	sess.SetSecure(true)
	result, err = (ehloCommand{}).Execute(context.Background(), sess, deps, []string{"EHLO client.example.com", "client.example.com"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if containsLine(result.Lines, "STARTTLS") {
		t.Errorf("EHLO response %v advertises STARTTLS once already secure", result.Lines)
	}
}

func containsLine(lines []string, substr string) bool {
	for _, l := range lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}
