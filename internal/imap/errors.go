package imap

import "errors"

// Protocol errors for IMAP, grounded 1:1 on the teacher's
// internal/pop3/errors.go sentinel-error shape.
var (
	ErrInvalidState     = errors.New("command not valid in current state")
	ErrTLSRequired      = errors.New("TLS required for authentication")
	ErrTLSNotAvailable  = errors.New("TLS not available")
	ErrAlreadyTLS       = errors.New("already using TLS")
	ErrAuthFailed       = errors.New("authentication failed")
	ErrInvalidCommand   = errors.New("invalid command")
	ErrNoSuchMailbox    = errors.New("no such mailbox")
	ErrMailboxExists    = errors.New("mailbox already exists")
	ErrNoSuchMessage    = errors.New("no such message")
	ErrReadOnlyMailbox  = errors.New("mailbox is read-only")
	ErrNoMailboxSelected = errors.New("no mailbox selected")
	ErrLineTooLong      = errors.New("line too long")
)
