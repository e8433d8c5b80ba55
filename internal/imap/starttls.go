package imap

import "context"

func init() { RegisterCommand(&startTLSCommand{}) }

// startTLSCommand implements STARTTLS. Per spec section 8, it only
// succeeds pre-authentication and is idempotent-rejected once the
// connection is already secure; the actual handshake happens in the
// connection supervisor once this OK response has been flushed
// (Response.StartTLS), never inside the handler itself, so the reply is
// never delivered over the wrong stream.
type startTLSCommand struct{}

func (startTLSCommand) Name() string { return "STARTTLS" }

func (startTLSCommand) Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error) {
	if sess.IsSecure() {
		return Response{Tag: tag, Status: "BAD", Text: "already secure"}, nil
	}
	if deps.TLSConfig == nil {
		return Response{Tag: tag, Status: "NO", Text: "TLS not available"}, nil
	}
	return Response{
		Tag:      tag,
		Status:   "OK",
		Text:     "Begin TLS negotiation",
		StartTLS: true,
	}, nil
}
