package imap

import (
	"crypto/tls"
	"sync"

	"github.com/emersion/go-sasl"
)

// State is the IMAP session's tagged-variant state machine (spec section 3).
type State int

const (
	NotAuthenticated State = iota
	Authenticating
	Authenticated
	Selected
	Logout
)

func (s State) String() string {
	switch s {
	case NotAuthenticated:
		return "not authenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Selected:
		return "selected"
	case Logout:
		return "logout"
	default:
		return "unknown"
	}
}

// Access is the access mode a Selected mailbox was opened with.
type Access int

const (
	ReadWrite Access = iota
	ReadOnly
)

func (a Access) String() string {
	if a == ReadOnly {
		return "READ-ONLY"
	}
	return "READ-WRITE"
}

// MessageView is one message's sequence number, UID, and flags as known to
// the session's current mailbox snapshot.
type MessageView struct {
	Seq   uint32
	UID   uint32
	Key   string // maildir message key, used to address mailstore operations
	Flags []string
	Size  int64
}

// Session is the authoritative per-connection record (spec section 3). All
// mutation happens under mu; handlers read a snapshot with Snapshot() and
// never hold the write lock across an I/O suspension point (spec section 5).
type Session struct {
	mu sync.RWMutex

	hostname string
	secure   bool
	tlsState *tls.Config

	state State

	username string
	mailbox  string // fully-qualified mailstore user key (localpart@domain)

	selectedFolder string
	access         Access
	messages       []MessageView
	uidValidity    uint32
	uidNext        uint32

	activeCapabilities map[string]bool

	saslMechanism string
	saslServer    sasl.Server
	saslTag       string

	authFailures int

	pendingLiteral *pendingLiteral

	idleCancel func() // non-nil while an IDLE is in progress
}

type pendingLiteral struct {
	octets    int
	remaining int
}

// NewSession creates a fresh NotAuthenticated session.
func NewSession(hostname string, secure bool, tlsConfig *tls.Config) *Session {
	return &Session{
		hostname:           hostname,
		secure:             secure,
		tlsState:           tlsConfig,
		state:              NotAuthenticated,
		activeCapabilities: make(map[string]bool),
	}
}

// Snapshot is a plain-struct copy of session state safe to read without
// holding the lock across a suspension point.
type Snapshot struct {
	State          State
	Secure         bool
	Username       string
	Mailbox        string
	SelectedFolder string
	Access         Access
	MessageCount   int
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		State:          s.state,
		Secure:         s.secure,
		Username:       s.username,
		Mailbox:        s.mailbox,
		SelectedFolder: s.selectedFolder,
		Access:         s.access,
		MessageCount:   len(s.messages),
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

// SetAuthenticated records a successful login and transitions to Authenticated.
func (s *Session) SetAuthenticated(username, mailbox string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
	s.mailbox = mailbox
	s.state = Authenticated
}

// SelectedFolder returns the currently selected folder name, or "" if none.
func (s *Session) SelectedFolder() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedFolder
}

func (s *Session) Access() Access {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

// SetSelected transitions into Selected(folder, access) with the given
// message snapshot and UID bookkeeping.
func (s *Session) SetSelected(folder string, access Access, messages []MessageView, uidValidity, uidNext uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Selected
	s.selectedFolder = folder
	s.access = access
	s.messages = messages
	s.uidValidity = uidValidity
	s.uidNext = uidNext
}

// Unselect clears the selected mailbox and returns to Authenticated.
func (s *Session) Unselect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Authenticated
	s.selectedFolder = ""
	s.messages = nil
	s.access = 0
	s.uidValidity = 0
	s.uidNext = 0
}

// Messages returns a copy of the current mailbox's message snapshot.
func (s *Session) Messages() []MessageView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MessageView, len(s.messages))
	copy(out, s.messages)
	return out
}

// SetMessages replaces the message snapshot, e.g. after EXPUNGE.
func (s *Session) SetMessages(messages []MessageView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = messages
}

func (s *Session) UIDValidity() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uidValidity
}

func (s *Session) UIDNext() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uidNext
}

func (s *Session) SetUIDNext(next uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uidNext = next
}

// EnableCapability marks a capability (e.g. "UTF8=ACCEPT") as active.
func (s *Session) EnableCapability(cap string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeCapabilities[cap] = true
}

func (s *Session) HasCapability(cap string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeCapabilities[cap]
}

// SetSASL begins a SASL exchange for AUTHENTICATE, remembering tag so the
// eventual completion response can be addressed back to the command that
// started it.
func (s *Session) SetSASL(mechanism, tag string, server sasl.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saslMechanism = mechanism
	s.saslTag = tag
	s.saslServer = server
	s.state = Authenticating
}

func (s *Session) SASLServer() sasl.Server {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saslServer
}

func (s *Session) SASLTag() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saslTag
}

// ClearSASL ends a SASL exchange, returning to NotAuthenticated if it did
// not complete successfully.
func (s *Session) ClearSASL() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saslMechanism = ""
	s.saslTag = ""
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

// ResetAuthFailures clears the consecutive-failure counter after a
// successful login.
func (s *Session) ResetAuthFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authFailures = 0
}

// SetPendingLiteral records a non-synchronising literal byte count the
// parser is waiting to accumulate.
func (s *Session) SetPendingLiteral(octets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingLiteral = &pendingLiteral{octets: octets, remaining: octets}
}

func (s *Session) PendingLiteral() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pendingLiteral == nil {
		return 0, false
	}
	return s.pendingLiteral.octets, true
}

func (s *Session) ClearPendingLiteral() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingLiteral = nil
}

// SetIdleCancel records the cancellation function for an in-progress IDLE.
func (s *Session) SetIdleCancel(cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idleCancel = cancel
}

func (s *Session) IdleCancel() func() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idleCancel
}
