package smtp

import "testing"

func TestResultStringSingleLine(t *testing.T) {
	r := Result{Code: 250, Lines: []string{"2.0.0 ok"}}
	want := "250 2.0.0 ok\r\n"
	if got := r.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestResultStringMultiLine(t *testing.T) {
	r := Result{Code: 250, Lines: []string{"mail.example.com Hello client", "SIZE 1000000", "AUTH LOGIN PLAIN"}}
	want := "250-mail.example.com Hello client\r\n250-SIZE 1000000\r\n250 AUTH LOGIN PLAIN\r\n"
	if got := r.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestResultStringNoLines(t *testing.T) {
	r := Result{Code: 221}
	want := "221 \r\n"
	if got := r.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestMatchFindsRegisteredVerbs(t *testing.T) {
	tests := []struct {
		line     string
		wantName string
		wantOK   bool
	}{
		{"EHLO client.example.com", "EHLO", true},
		{"helo client.example.com", "HELO", true},
		{"MAIL FROM:<alice@example.com>", "MAIL", true},
		{"RCPT TO:<bob@example.com>", "RCPT", true},
		{"DATA", "DATA", true},
		{"RSET", "RSET", true},
		{"NOOP", "NOOP", true},
		{"QUIT", "QUIT", true},
		{"STARTTLS", "STARTTLS", true},
		{"AUTH PLAIN", "AUTH", true},
		{"BOGUS COMMAND", "", false},
	}
	for _, tt := range tests {
		cmd, _, ok := Match(tt.line)
		if ok != tt.wantOK {
			t.Errorf("Match(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			continue
		}
		if ok && cmd.Name() != tt.wantName {
			t.Errorf("Match(%q) name = %q, want %q", tt.line, cmd.Name(), tt.wantName)
		}
	}
}

func TestMailPatternCapturesReversePath(t *testing.T) {
	_, matches, ok := Match("MAIL FROM:<alice@example.com> SIZE=1024")
	if !ok {
		t.Fatal("Match did not recognize MAIL FROM")
	}
	if matches[1] != "alice@example.com" {
		t.Errorf("captured reverse-path = %q, want alice@example.com", matches[1])
	}
}

func TestRcptPatternCapturesForwardPath(t *testing.T) {
	_, matches, ok := Match("RCPT TO:<bob@example.com>")
	if !ok {
		t.Fatal("Match did not recognize RCPT TO")
	}
	if matches[1] != "bob@example.com" {
		t.Errorf("captured forward-path = %q, want bob@example.com", matches[1])
	}
}
