package imap

import "testing"

func TestPermittedAlwaysAllowsCapabilityNoopLogout(t *testing.T) {
	for _, state := range []State{NotAuthenticated, Authenticated, Selected, Logout} {
		for _, verb := range []string{"CAPABILITY", "NOOP", "LOGOUT"} {
			if !permitted(state, verb) {
				t.Errorf("permitted(%v, %q) = false, want true", state, verb)
			}
		}
	}
}

func TestPermittedNotAuthenticatedMatrix(t *testing.T) {
	allowed := []string{"STARTTLS", "AUTHENTICATE", "LOGIN", "ENABLE"}
	for _, verb := range allowed {
		if !permitted(NotAuthenticated, verb) {
			t.Errorf("permitted(NotAuthenticated, %q) = false, want true", verb)
		}
	}
	disallowed := []string{"SELECT", "FETCH", "CLOSE", "APPEND"}
	for _, verb := range disallowed {
		if permitted(NotAuthenticated, verb) {
			t.Errorf("permitted(NotAuthenticated, %q) = true, want false", verb)
		}
	}
}

func TestPermittedAuthenticatedMatrix(t *testing.T) {
	allowed := []string{"SELECT", "EXAMINE", "CREATE", "DELETE", "RENAME", "LIST", "STATUS", "APPEND", "IDLE"}
	for _, verb := range allowed {
		if !permitted(Authenticated, verb) {
			t.Errorf("permitted(Authenticated, %q) = false, want true", verb)
		}
	}
	disallowed := []string{"STARTTLS", "LOGIN", "FETCH", "CLOSE", "EXPUNGE", "SEARCH", "STORE"}
	for _, verb := range disallowed {
		if permitted(Authenticated, verb) {
			t.Errorf("permitted(Authenticated, %q) = true, want false", verb)
		}
	}
}

func TestPermittedSelectedIncludesAuthenticatedVerbs(t *testing.T) {
	allowed := []string{"SELECT", "LIST", "APPEND", "CHECK", "CLOSE", "EXPUNGE", "SEARCH", "FETCH", "STORE", "COPY", "MOVE", "UID"}
	for _, verb := range allowed {
		if !permitted(Selected, verb) {
			t.Errorf("permitted(Selected, %q) = false, want true", verb)
		}
	}
	if permitted(Selected, "LOGIN") {
		t.Error("permitted(Selected, LOGIN) = true, want false")
	}
}

func TestPermittedLogoutAllowsNothingExtra(t *testing.T) {
	disallowed := []string{"SELECT", "FETCH", "LOGIN", "STARTTLS"}
	for _, verb := range disallowed {
		if permitted(Logout, verb) {
			t.Errorf("permitted(Logout, %q) = true, want false", verb)
		}
	}
}

func TestDispatchRejectsUnknownCommand(t *testing.T) {
	sess := NewSession("mail.example.com", false, nil)
	deps := &Deps{}
	resp := Dispatch(nil, sess, deps, &CommandLine{Tag: "a1", Verb: "BOGUS"})
	if resp.Status != "BAD" {
		t.Errorf("Status = %q, want BAD", resp.Status)
	}
}

func TestDispatchRejectsVerbNotPermittedInState(t *testing.T) {
	sess := NewSession("mail.example.com", false, nil)
	deps := &Deps{}
	resp := Dispatch(nil, sess, deps, &CommandLine{Tag: "a1", Verb: "FETCH", Args: []string{"1", "BODY[]"}})
	if resp.Status != "BAD" {
		t.Errorf("Status = %q, want BAD", resp.Status)
	}
	want := "FETCH not permitted in state not authenticated"
	if resp.Text != want {
		t.Errorf("Text = %q, want %q", resp.Text, want)
	}
}
