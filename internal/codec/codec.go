// Package codec implements the CRLF line framing shared by the IMAP and
// SMTP protocol engines. A Codec wraps a byte stream and is reconstructed
// after a STARTTLS upgrade rather than reused, so that any bytes already
// buffered on the plaintext side cannot leak across the TLS boundary.
package codec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// ErrLineTooLong is returned by ReadLine when no CRLF terminator is found
// within LineLimit bytes.
var ErrLineTooLong = errors.New("codec: line too long")

// DefaultLineLimit is the maximum line length in octets, excluding the
// CRLF terminator (spec section 6.2).
const DefaultLineLimit = 8192

// Codec frames a byte stream into CRLF-terminated lines. All writes funnel
// through a single *bufio.Writer so that partial frames are never observed
// by a reader on the other end of the connection.
type Codec struct {
	r         *bufio.Reader
	w         *bufio.Writer
	lineLimit int
}

// New wraps rw with the default line limit.
func New(rw io.ReadWriter) *Codec {
	return NewWithLimit(rw, DefaultLineLimit)
}

// NewWithLimit wraps rw enforcing a custom maximum line length.
func NewWithLimit(rw io.ReadWriter, lineLimit int) *Codec {
	return &Codec{
		r:         bufio.NewReaderSize(rw, lineLimit+2),
		w:         bufio.NewWriter(rw),
		lineLimit: lineLimit,
	}
}

// ReadLine reads one CRLF-terminated line, returning its content without
// the terminator. Returns ErrLineTooLong if the line exceeds the configured
// limit before a terminator is seen.
func (c *Codec) ReadLine() (string, error) {
	var line []byte
	for {
		chunk, err := c.r.ReadSlice('\n')
		line = append(line, chunk...)
		if err == nil {
			break
		}
		if err == bufio.ErrBufferFull {
			if len(line) > c.lineLimit+2 {
				return "", ErrLineTooLong
			}
			continue
		}
		return "", err
	}
	if len(line) > c.lineLimit+2 {
		return "", ErrLineTooLong
	}
	line = trimCRLF(line)
	return string(line), nil
}

func trimCRLF(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}

// ReadFull reads exactly n octets, used for IMAP literal arguments.
func (c *Codec) ReadFull(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return nil, fmt.Errorf("codec: read literal: %w", err)
	}
	return buf, nil
}

// WriteLine appends a CRLF terminator to line and buffers it for output.
// Callers must call Flush to push buffered lines to the wire; batching
// multiple WriteLine calls before one Flush keeps multi-line responses
// atomic from the reader's perspective.
func (c *Codec) WriteLine(line string) error {
	if _, err := c.w.WriteString(line); err != nil {
		return err
	}
	_, err := c.w.WriteString("\r\n")
	return err
}

// WriteRaw writes p verbatim with no framing, used for literal payloads.
func (c *Codec) WriteRaw(p []byte) error {
	_, err := c.w.Write(p)
	return err
}

// Flush pushes all buffered output to the underlying stream.
func (c *Codec) Flush() error {
	return c.w.Flush()
}
