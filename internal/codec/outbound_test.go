package codec

import "testing"

func TestOutboundWritesBatchAtomically(t *testing.T) {
	var buf rwBuf
	c := New(&buf)
	out := NewOutbound(c)

	out.Enqueue([]string{"* 1 EXISTS", "* 0 RECENT", "a1 OK SELECT completed"})
	out.Stop()

	want := "* 1 EXISTS\r\n* 0 RECENT\r\na1 OK SELECT completed\r\n"
	if got := buf.String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestOutboundStopDrainsBeforeReturning(t *testing.T) {
	var buf rwBuf
	c := New(&buf)
	out := NewOutbound(c)

	out.Enqueue([]string{"* BYE shutting down", "a1 OK LOGOUT completed"})
	out.Stop()

	want := "* BYE shutting down\r\na1 OK LOGOUT completed\r\n"
	if got := buf.String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if out.Failed() {
		t.Fatal("Outbound reported failed after a clean drain")
	}
}

func TestOutboundFailedAfterWriteError(t *testing.T) {
	c := New(&failingWriter{})
	out := NewOutbound(c)
	t.Cleanup(out.Stop)

	out.Enqueue([]string{"* OK ready"})
	out.Stop()

	if !out.Failed() {
		t.Fatal("expected Failed to report true after a write error")
	}
}

// failingWriter satisfies io.ReadWriter but always fails writes, simulating
// a peer that has gone away mid-response.
type failingWriter struct{}

func (failingWriter) Read(p []byte) (int, error)  { return 0, errClosedPipe }
func (failingWriter) Write(p []byte) (int, error) { return 0, errClosedPipe }

type pipeErr string

func (e pipeErr) Error() string { return string(e) }

const errClosedPipe = pipeErr("codec: simulated write failure")
