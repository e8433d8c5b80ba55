package imap

import (
	"context"
	"strings"
)

// Capabilities returns the advertised capability list for the session's
// current security state (spec section 6.3): STARTTLS is omitted once the
// connection is already secure.
func Capabilities(secure bool) []string {
	caps := []string{
		"IMAP4rev2",
	}
	if !secure {
		caps = append(caps, "STARTTLS")
	}
	caps = append(caps,
		"AUTH=PLAIN", "AUTH=LOGIN", "ENABLE", "UTF8=ACCEPT", "IDLE",
		"LIST-EXTENDED", "SPECIAL-USE", "MOVE", "UNSELECT", "LITERAL+",
	)
	return caps
}

func init() { RegisterCommand(&capabilityCommand{}) }

type capabilityCommand struct{}

func (capabilityCommand) Name() string { return "CAPABILITY" }

func (capabilityCommand) Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error) {
	line := "CAPABILITY " + strings.Join(Capabilities(sess.IsSecure()), " ")
	return Response{
		Tag:      tag,
		Status:   "OK",
		Text:     "CAPABILITY completed",
		Untagged: []string{Untagged(line)},
	}, nil
}
