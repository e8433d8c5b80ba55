package mailstore

import "testing"

func TestEncodeFolder(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"INBOX", ""},
		{"inbox", ""},
		{"Sent", ".Sent"},
		{"Archive/2026", ".Archive.2026"},
		{"a/b/c", ".a.b.c"},
	}
	for _, tc := range cases {
		if got := EncodeFolder(tc.name); got != tc.want {
			t.Errorf("EncodeFolder(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestDecodeFolder(t *testing.T) {
	cases := []struct {
		encoded string
		want    string
	}{
		{"", "INBOX"},
		{".Sent", "Sent"},
		{".Archive.2026", "Archive/2026"},
		{".a.b.c", "a/b/c"},
	}
	for _, tc := range cases {
		if got := DecodeFolder(tc.encoded); got != tc.want {
			t.Errorf("DecodeFolder(%q) = %q, want %q", tc.encoded, got, tc.want)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	names := []string{"Sent", "Archive/2026", "Work/Projects/Active"}
	for _, name := range names {
		if got := DecodeFolder(EncodeFolder(name)); got != name {
			t.Errorf("round trip %q -> %q -> %q", name, EncodeFolder(name), got)
		}
	}
}

func TestSpecialUse(t *testing.T) {
	cases := []struct {
		folder  string
		want    string
		present bool
	}{
		{"Trash", "\\Trash", true},
		{"trash", "\\Trash", true},
		{"Sent", "\\Sent", true},
		{"Drafts", "\\Drafts", true},
		{"Junk", "\\Junk", true},
		{"Archive", "\\Archive", true},
		{"Projects", "", false},
	}
	for _, tc := range cases {
		got, ok := SpecialUse(tc.folder)
		if ok != tc.present || got != tc.want {
			t.Errorf("SpecialUse(%q) = (%q, %v), want (%q, %v)", tc.folder, got, ok, tc.want, tc.present)
		}
	}
}
