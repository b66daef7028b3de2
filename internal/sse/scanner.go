package sse

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Scanner reads data events from an SSE byte stream. Event and id fields are
// tracked so callers can dispatch on event type; comment lines are skipped.
type Scanner struct {
	r     *bufio.Scanner
	event string
	data  []string
	err   error
}

// NewScanner wraps r for event reading.
func NewScanner(r io.Reader) *Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Scanner{r: sc}
}

// Next advances to the next complete event. It returns false at end of
// stream or on read error; check Err afterwards.
func (s *Scanner) Next() bool {
	s.event = ""
	s.data = s.data[:0]

	for s.r.Scan() {
		line := s.r.Text()

		// Blank line ends the event.
		if line == "" {
			if len(s.data) > 0 {
				return true
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if v, ok := strings.CutPrefix(line, "event:"); ok {
			s.event = strings.TrimPrefix(v, " ")
			continue
		}
		if v, ok := strings.CutPrefix(line, "data:"); ok {
			s.data = append(s.data, strings.TrimPrefix(v, " "))
			continue
		}
	}

	if err := s.r.Err(); err != nil {
		s.err = fmt.Errorf("read sse stream: %w", err)
	}
	// Stream may end without a trailing blank line.
	return len(s.data) > 0
}

// Event returns the event type of the current event, if any.
func (s *Scanner) Event() string { return s.event }

// Data returns the joined data payload of the current event.
func (s *Scanner) Data() string { return strings.Join(s.data, "\n") }

// Err reports the first read error encountered.
func (s *Scanner) Err() error { return s.err }
