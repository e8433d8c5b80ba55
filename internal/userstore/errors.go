package userstore

import "errors"

// ErrExistsUnsupported is returned by Exists when the configured auth
// backend cannot answer an existence query without a password attempt.
var ErrExistsUnsupported = errors.New("userstore: backend does not support existence queries")
