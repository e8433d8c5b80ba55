package imap

import (
	"context"
	"strings"
)

func init() { RegisterCommand(&enableCommand{}) }

// knownEnableCapabilities are the extensions ENABLE is allowed to turn on;
// anything else is silently ignored per RFC 9051, which requires ENABLE to
// accept unknown capability names without error.
var knownEnableCapabilities = map[string]bool{
	"UTF8=ACCEPT": true,
	"IMAP4REV2":   true,
}

type enableCommand struct{}

func (enableCommand) Name() string { return "ENABLE" }

func (enableCommand) Execute(ctx context.Context, sess *Session, deps *Deps, tag string, args []string) (Response, error) {
	var enabled []string
	for _, cap := range args {
		upper := strings.ToUpper(cap)
		if knownEnableCapabilities[upper] {
			sess.EnableCapability(upper)
			enabled = append(enabled, upper)
		}
	}
	return Response{
		Tag:      tag,
		Status:   "OK",
		Text:     "ENABLE completed",
		Untagged: []string{Untagged("ENABLED " + strings.Join(enabled, " "))},
	}, nil
}
