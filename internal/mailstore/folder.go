package mailstore

import "strings"

// Inbox is the reserved name for a mailbox's default folder. It is stored
// at the root of the user's maildir tree rather than as an encoded
// subdirectory.
const Inbox = "INBOX"

// EncodeFolder maps an IMAP mailbox path to the maildir subdirectory name
// that stores it, following the Courier-style convention the original
// source used: '/' becomes '.' and the result is prefixed with a leading
// '.' so the directory sorts alongside cur/new/tmp without colliding with
// them. INBOX has no encoded form; it lives at the user's maildir root.
func EncodeFolder(name string) string {
	if strings.EqualFold(name, Inbox) {
		return ""
	}
	return "." + strings.ReplaceAll(name, "/", ".")
}

// DecodeFolder reverses EncodeFolder.
func DecodeFolder(encoded string) string {
	if encoded == "" {
		return Inbox
	}
	return strings.ReplaceAll(strings.TrimPrefix(encoded, "."), ".", "/")
}

// specialUse maps well-known folder names to their IMAP special-use
// attribute (RFC 6154). Matching is by exact name, case-insensitively;
// anything else has no special use.
var specialUse = map[string]string{
	"trash":   "\\Trash",
	"sent":    "\\Sent",
	"drafts":  "\\Drafts",
	"junk":    "\\Junk",
	"archive": "\\Archive",
}

// SpecialUse returns the RFC 6154 special-use attribute for folder, and
// whether one applies.
func SpecialUse(folder string) (string, bool) {
	use, ok := specialUse[strings.ToLower(folder)]
	return use, ok
}
