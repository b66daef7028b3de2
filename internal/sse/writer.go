// Package sse implements the minimal subset of server-sent events the chat
// transport needs: data-frame writing on the server side and data-line
// scanning on the client side.
package sse

import (
	"fmt"
	"net/http"
	"strings"
)

// DoneSentinel terminates an event stream.
const DoneSentinel = "[DONE]"

// Writer frames payloads as SSE data events and flushes after every write.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter prepares w for event streaming. It returns an error when the
// underlying writer cannot flush, since buffered SSE defeats the purpose.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	return &Writer{w: w, flusher: flusher}, nil
}

// Send writes one data event. Multi-line payloads become multiple data:
// lines of the same event, per the SSE framing rules.
func (s *Writer) Send(payload string) error {
	for _, line := range strings.Split(payload, "\n") {
		if _, err := fmt.Fprintf(s.w, "data: %s\n", line); err != nil {
			return fmt.Errorf("write sse data: %w", err)
		}
	}
	if _, err := fmt.Fprint(s.w, "\n"); err != nil {
		return fmt.Errorf("write sse terminator: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// Comment writes an SSE comment line. Proxies that buffer small writes are
// nudged with padding, which clients ignore.
func (s *Writer) Comment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return fmt.Errorf("write sse comment: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// Pad emits a padded comment so intermediaries release their buffers.
func (s *Writer) Pad() error {
	return s.Comment(strings.Repeat(" ", 2048))
}

// Done emits the terminating sentinel event.
func (s *Writer) Done() error {
	return s.Send(DoneSentinel)
}
