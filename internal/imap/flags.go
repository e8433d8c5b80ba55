package imap

import (
	"strings"

	"github.com/infodancer/mailstackd/internal/mailstore"
)

// PermanentFlags is the flag set SELECT/EXAMINE advertise as assignable via
// STORE (spec section 4.4's SELECT contract).
var PermanentFlags = []string{"\\Seen", "\\Answered", "\\Flagged", "\\Deleted", "\\Draft"}

var flagToMaildir = map[string]mailstore.Flag{
	"\\SEEN":     mailstore.FlagSeen,
	"\\ANSWERED": mailstore.FlagAnswered,
	"\\FLAGGED":  mailstore.FlagFlagged,
	"\\DELETED":  mailstore.FlagDeleted,
	"\\DRAFT":    mailstore.FlagDraft,
}

var maildirToFlag = map[mailstore.Flag]string{
	mailstore.FlagSeen:     "\\Seen",
	mailstore.FlagAnswered: "\\Answered",
	mailstore.FlagFlagged:  "\\Flagged",
	mailstore.FlagDeleted:  "\\Deleted",
	mailstore.FlagDraft:    "\\Draft",
}

// toMaildirFlags translates IMAP flag names (e.g. "\Seen") to the maildir
// flags the store understands, ignoring any name it does not recognise
// (keyword flags and \Recent, which is never stored).
func toMaildirFlags(names []string) []mailstore.Flag {
	var out []mailstore.Flag
	for _, name := range names {
		if f, ok := flagToMaildir[strings.ToUpper(name)]; ok {
			out = append(out, f)
		}
	}
	return out
}

// toIMAPFlags translates maildir flags to their IMAP names, in the fixed
// PermanentFlags order for deterministic FETCH output.
func toIMAPFlags(flags []mailstore.Flag) []string {
	present := make(map[mailstore.Flag]bool, len(flags))
	for _, f := range flags {
		present[f] = true
	}
	var out []string
	for _, name := range PermanentFlags {
		f := flagToMaildir[strings.ToUpper(name)]
		if present[f] {
			out = append(out, name)
		}
	}
	return out
}

func hasIMAPFlag(names []string, want string) bool {
	for _, n := range names {
		if strings.EqualFold(n, want) {
			return true
		}
	}
	return false
}
