package smtp

import "errors"

// ErrAuthFailed is returned by a SASL authenticator callback to reject
// credentials without distinguishing the reason to the client.
var ErrAuthFailed = errors.New("authentication failed")
