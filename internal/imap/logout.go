package imap

import "context"

func init() { RegisterCommand(&logoutCommand{}) }

// logoutCommand implements LOGOUT. It transitions the session to Logout
// and asks the connection supervisor to close once the response is
// flushed (spec section 4.5).
type logoutCommand struct{}

func (logoutCommand) Name() string { return "LOGOUT" }

func (logoutCommand) Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error) {
	sess.SetState(Logout)
	return Response{
		Tag:      tag,
		Status:   "OK",
		Text:     "LOGOUT completed",
		Untagged: []string{Untagged("BYE " + deps.Hostname + " IMAP4rev2 Server logging out")},
		Bye:      true,
	}, nil
}
