// Package userstore wraps github.com/infodancer/auth behind the two
// operations the protocol engines need: verifying a password and checking
// whether a user exists, the same AuthenticationAgent the POP3 engine used
// for PASS/AUTH, without the multi-domain AuthRouter layer on top.
package userstore

import (
	"context"

	"github.com/infodancer/auth"
)

// AuthenticationAgent mirrors the subset of auth.AuthenticationAgent that
// Store depends on. Declaring it locally lets tests substitute an
// in-memory fake instead of wiring a real passwd file or remote backend.
type AuthenticationAgent interface {
	Authenticate(ctx context.Context, username, password string) (*auth.AuthSession, error)
	Close() error
}

// Store answers the verify question the IMAP and SMTP engines ask during
// LOGIN, AUTHENTICATE, and SMTP AUTH, and an exists question that no
// protocol engine asks.
type Store struct {
	agent AuthenticationAgent
}

// Open opens an auth agent from cfg, exactly as cmd/pop3d/main.go
// constructs auth.OpenAuthAgent.
func Open(cfg auth.AuthAgentConfig) (*Store, error) {
	agent, err := auth.OpenAuthAgent(cfg)
	if err != nil {
		return nil, err
	}
	return New(agent), nil
}

// New wraps an already-constructed agent, primarily for tests.
func New(agent AuthenticationAgent) *Store {
	return &Store{agent: agent}
}

// Close releases the underlying auth agent.
func (s *Store) Close() error {
	return s.agent.Close()
}

// Verify checks a username/password pair. A wrong password or unknown user
// both yield (false, nil) — the engine must never distinguish the two in
// its response, to avoid user enumeration (auth_commands.go's passCommand
// follows the same rule, logging the real error but returning a generic
// failure to the client). mailbox is the fully-qualified mailbox key
// (localpart@domain) used to address internal/mailstore; it is empty when
// ok is false.
func (s *Store) Verify(ctx context.Context, user, password string) (ok bool, mailbox string, err error) {
	session, authErr := s.agent.Authenticate(ctx, user, password)
	if authErr != nil {
		return false, "", nil
	}
	return true, session.User.Mailbox, nil
}

// existenceChecker is implemented by auth backends that can answer an
// existence query without attempting a password verification, e.g. a
// passwd-file backend consulting its user database directly.
type existenceChecker interface {
	Exists(ctx context.Context, username string) (bool, error)
}

// Exists reports whether user is a known mailbox. SMTP RCPT TO does not
// call it; recipients are accepted without an existence check. If the
// configured backend cannot answer
// this without a password, it returns ErrExistsUnsupported; callers should
// treat that as "unknown, let delivery fail instead" rather than bouncing
// the recipient outright.
func (s *Store) Exists(ctx context.Context, user string) (bool, error) {
	if ec, ok := s.agent.(existenceChecker); ok {
		return ec.Exists(ctx, user)
	}
	return false, ErrExistsUnsupported
}
