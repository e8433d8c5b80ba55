package smtp

import (
	"bytes"
	"crypto/tls"
	"strings"
	"sync"

	"github.com/emersion/go-sasl"
)

// State is the SMTP session's tagged-variant state machine (spec section 3):
// NotAuthenticated | Authenticating | Authenticated | InMail | InData | Quit.
type State int

const (
	NotAuthenticated State = iota
	Authenticating
	Authenticated
	InMail
	InData
	Quit
)

func (s State) String() string {
	switch s {
	case NotAuthenticated:
		return "not authenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case InMail:
		return "in mail"
	case InData:
		return "in data"
	case Quit:
		return "quit"
	default:
		return "unknown"
	}
}

// Envelope carries one SMTP transaction's reverse-path and forward-paths,
// frozen into a message body once DATA completes (spec section 3).
type Envelope struct {
	From string
	To   []string
}

// Session is the authoritative per-connection record for one SMTP
// connection. All mutation happens under mu, matching the locking
// discipline of internal/imap.Session.
type Session struct {
	mu sync.RWMutex

	hostname string
	secure   bool
	tlsState *tls.Config

	state State

	heloDomain string
	clientIP   string

	username string
	mailbox  string

	envelope Envelope

	saslMechanism string
	saslServer    sasl.Server

	authFailures int

	data bytes.Buffer // in-progress DATA body, valid only while state == InData
}

// NewSession creates a fresh NotAuthenticated session.
func NewSession(hostname string, secure bool, tlsConfig *tls.Config, clientIP string) *Session {
	return &Session{
		hostname: hostname,
		secure:   secure,
		tlsState: tlsConfig,
		state:    NotAuthenticated,
		clientIP: clientIP,
	}
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) SetState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) IsSecure() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.secure
}

func (s *Session) SetSecure(secure bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secure = secure
}

func (s *Session) TLSConfig() *tls.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tlsState
}

func (s *Session) ClientIP() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientIP
}

func (s *Session) HeloDomain() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.heloDomain
}

func (s *Session) SetHeloDomain(domain string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heloDomain = domain
}

func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

func (s *Session) Mailbox() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mailbox
}

// SetAuthenticated records a successful AUTH exchange.
func (s *Session) SetAuthenticated(username, mailbox string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
	s.mailbox = mailbox
	s.state = Authenticated
}

// SetEnvelopeFrom begins a new transaction (spec section 3's Envelope
// lifecycle: created by MAIL FROM).
func (s *Session) SetEnvelopeFrom(from string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envelope = Envelope{From: from}
	s.state = InMail
}

// AddRecipient extends the in-progress envelope (RCPT TO).
func (s *Session) AddRecipient(to string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envelope.To = append(s.envelope.To, to)
}

func (s *Session) Envelope() Envelope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.envelope
	out.To = append([]string(nil), s.envelope.To...)
	return out
}

// ResetEnvelope clears the in-progress transaction (RSET, or after
// successful delivery), returning to Authenticated without losing HELO or
// auth state.
func (s *Session) ResetEnvelope() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envelope = Envelope{}
	if s.state == InMail || s.state == InData {
		s.state = Authenticated
	}
}

// dataBuffer returns the session's in-progress message body buffer.
func (s *Session) dataBuffer() *bytes.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &s.data
}

func (s *Session) clearDataBuffer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Reset()
}

func (s *Session) SetSASL(mechanism string, server sasl.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saslMechanism = mechanism
	s.saslServer = server
	s.state = Authenticating
}

func (s *Session) SASLServer() sasl.Server {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saslServer
}

func (s *Session) ClearSASL() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saslMechanism = ""
	s.saslServer = nil
	if s.state == Authenticating {
		s.state = NotAuthenticated
	}
}

// RecordAuthFailure increments the consecutive-failure counter and reports
// whether the three-strikes limit (spec section 7) has now been reached.
func (s *Session) RecordAuthFailure() (limitReached bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authFailures++
	return s.authFailures >= 3
}

func (s *Session) ResetAuthFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authFailures = 0
}

// mailboxFor derives a session's mailstore key from the authenticated
// username, matching userstore.Store.Verify's returned mailbox when one is
// available and falling back to the raw username otherwise.
func mailboxFor(username, mailbox string) string {
	if mailbox != "" {
		return mailbox
	}
	return strings.ToLower(username)
}
