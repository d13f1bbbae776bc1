// Package serial models the DMG link port as a text-capture sink: no real
// peer is emulated, and writing SC with the transfer-start+internal-clock
// bits set immediately appends the pending byte.
package serial

import (
	"io"
	"log/slog"
	"strings"
)

// Serial holds SB/SC and a line-buffered capture of transferred bytes.
type Serial struct {
	sb byte
	sc byte // bits: 7 transfer-start, 0 clock-select; only these two are writable

	buf      strings.Builder
	lastLine string
	sink     io.Writer
}

func New() *Serial { return &Serial{} }

// SetSink attaches an optional byte sink (e.g. a test harness capturing
// stdout) that receives each transferred byte as it completes.
func (s *Serial) SetSink(w io.Writer) { s.sink = w }

func (s *Serial) SB() byte { return s.sb }
func (s *Serial) WriteSB(v byte) { s.sb = v }

func (s *Serial) SC() byte { return 0x7E | (s.sc & 0x81) }

// WriteSC stores a control write. When both the start bit (7) and the
// internal-clock bit (0) are set, the pending byte is transferred
// synchronously: appended to the line buffer (flushed on '\n') and the
// start bit is cleared to signal completion.
func (s *Serial) WriteSC(v byte) {
	s.sc = v & 0x81
	if s.sc&0x81 == 0x81 {
		s.buf.WriteByte(s.sb)
		if s.sink != nil {
			_, _ = s.sink.Write([]byte{s.sb})
		}
		if s.sb == '\n' {
			s.lastLine = s.buf.String()
			slog.Debug("serial line", "line", s.lastLine)
			s.buf.Reset()
		}
		s.sc &^= 0x80
	}
}

// LastLine returns the most recently flushed (newline-terminated) line,
// the test-observation point documented for the Blargg serial protocol.
func (s *Serial) LastLine() string { return s.lastLine }

// Pending returns bytes accumulated since the last flushed line, useful for
// polling output before a trailing newline has arrived.
func (s *Serial) Pending() string { return s.buf.String() }
