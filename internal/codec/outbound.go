package codec

import "sync"

// Outbound is the writer task's queue of pending outbound responses. It is
// the sole owner of a Codec's write half: handlers, IDLE fan-out, and
// mailbox watchers all enqueue line batches here rather than calling
// WriteLine/Flush directly, so that two goroutines can never interleave
// partial responses on the wire (spec'd connection supervisor design: one
// reader task decoding and dispatching, one writer task draining this
// queue). Each enqueued batch is written and flushed as a unit before the
// next batch is considered, which keeps a response's untagged lines and its
// tagged completion line contiguous even when an unsolicited push (IDLE,
// file-watcher) races to enqueue in between.
type Outbound struct {
	queue  chan []string
	failed chan struct{}
	done   chan struct{}

	failOnce sync.Once
	stopOnce sync.Once
}

// NewOutbound starts the writer goroutine over c and returns the queue used
// to reach it. Callers must call Stop when the connection using c is being
// torn down or rebuilt (e.g. for a STARTTLS upgrade), even after a write
// failure, to release the goroutine.
func NewOutbound(c *Codec) *Outbound {
	o := &Outbound{
		queue:  make(chan []string, 64),
		failed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go o.run(c)
	return o
}

func (o *Outbound) run(c *Codec) {
	defer close(o.done)
	for lines := range o.queue {
		if o.Failed() {
			continue // drain without writing once the link is known dead
		}
		ok := true
		for _, line := range lines {
			if err := c.WriteLine(line); err != nil {
				ok = false
				break
			}
		}
		if ok {
			if err := c.Flush(); err != nil {
				ok = false
			}
		}
		if !ok {
			o.fail()
		}
	}
}

func (o *Outbound) fail() {
	o.failOnce.Do(func() { close(o.failed) })
}

// Failed reports whether a write has already failed, so the reader task can
// stop issuing commands against a dead connection instead of discovering it
// one enqueue at a time.
func (o *Outbound) Failed() bool {
	select {
	case <-o.failed:
		return true
	default:
		return false
	}
}

// Enqueue hands one response's lines to the writer task. It never blocks
// past a dead link: once Failed, sends are discarded rather than piling up
// behind a writer goroutine that has already exited its loop.
func (o *Outbound) Enqueue(lines []string) {
	if len(lines) == 0 {
		return
	}
	select {
	case o.queue <- lines:
	case <-o.failed:
	}
}

// Stop closes the queue and blocks until the writer goroutine has drained
// every already-enqueued batch and exited. Callers use this both for
// orderly shutdown (LOGOUT/QUIT: the final response must reach the wire
// before the socket closes) and before rebuilding the codec for a STARTTLS
// upgrade, where the plaintext "OK Begin TLS negotiation" line must be
// flushed before the handshake begins.
func (o *Outbound) Stop() {
	o.stopOnce.Do(func() { close(o.queue) })
	<-o.done
}
