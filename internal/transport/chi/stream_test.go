package chi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kailas-cloud/asksite/internal/domain"
	chatuc "github.com/kailas-cloud/asksite/internal/usecase/chat"
)

// sseDataLines extracts the data payloads from a raw SSE body, re-joining
// multi-line events.
func sseDataLines(body string) []string {
	var events []string
	var current []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "data: ") {
			current = append(current, strings.TrimPrefix(line, "data: "))
			continue
		}
		if line == "" && len(current) > 0 {
			events = append(events, strings.Join(current, "\n"))
			current = nil
		}
	}
	return events
}

func TestStreamEndpoint(t *testing.T) {
	env := newServerEnv(nil)
	env.chat.streamFn = func(ctx context.Context, payload chatuc.Payload, emitter chatuc.Emitter) error {
		_ = emitter.Status("Understanding your request")
		_ = emitter.Delta("Hel")
		_ = emitter.Delta("lo")
		usage := &domain.Usage{InputTokens: 7, OutputTokens: 2, TotalTokens: 9}
		return emitter.Done([]domain.Source{{Title: "Hours", URL: "https://example.com/hours"}}, usage)
	}

	rr := postJSON(env.handler, "/api/v1/chat/stream",
		`{"messages":[{"role":"user","content":"When are you open?"}]}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q", ct)
	}

	body := rr.Body.String()
	if !strings.Contains(body, ": stream-open\n") {
		t.Errorf("missing stream-open comment in %q", body[:120])
	}

	events := sseDataLines(body)
	want := []string{
		`{"status":"Understanding your request"}`,
		`{"delta":"Hel"}`,
		`{"delta":"lo"}`,
		`{"done":true,"sources":[{"title":"Hours","url":"https://example.com/hours"}],"usage":{"input_tokens":7,"output_tokens":2,"total_tokens":9}}`,
		"[DONE]",
	}
	if len(events) != len(want) {
		t.Fatalf("events = %q", events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, events[i], want[i])
		}
	}
}

func TestStreamEndpointValidationError(t *testing.T) {
	env := newServerEnv(nil)
	env.chat.streamFn = func(ctx context.Context, payload chatuc.Payload, emitter chatuc.Emitter) error {
		return fmt.Errorf("messages array is required: %w", domain.ErrValidation)
	}

	rr := postJSON(env.handler, "/api/v1/chat/stream", `{"messages":[]}`)

	// The SSE channel is already open; errors are delivered in-band.
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	events := sseDataLines(rr.Body.String())
	if len(events) != 2 {
		t.Fatalf("events = %q", events)
	}
	if events[0] != `{"error":"Invalid request."}` {
		t.Errorf("event[0] = %q", events[0])
	}
	if events[1] != "[DONE]" {
		t.Errorf("event[1] = %q", events[1])
	}
}

func TestStreamEndpointMalformedBody(t *testing.T) {
	env := newServerEnv(nil)

	rr := postJSON(env.handler, "/api/v1/chat/stream", `not json`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	events := sseDataLines(rr.Body.String())
	if len(events) != 2 || events[0] != `{"error":"Invalid request."}` || events[1] != "[DONE]" {
		t.Errorf("events = %q", events)
	}
	if env.chat.lastInput.Messages != nil {
		t.Errorf("usecase called with %+v", env.chat.lastInput)
	}
}

func TestStreamEndpointNilSources(t *testing.T) {
	env := newServerEnv(nil)
	env.chat.streamFn = func(ctx context.Context, payload chatuc.Payload, emitter chatuc.Emitter) error {
		_ = emitter.Delta("Hi")
		return emitter.Done(nil, nil)
	}

	rr := postJSON(env.handler, "/api/v1/chat/stream",
		`{"messages":[{"role":"user","content":"hi"}]}`)

	events := sseDataLines(rr.Body.String())
	if len(events) != 3 {
		t.Fatalf("events = %q", events)
	}
	if events[1] != `{"done":true,"sources":[]}` {
		t.Errorf("done event = %q", events[1])
	}
}

func TestStreamEndpointHonorsOrigin(t *testing.T) {
	env := newServerEnv(nil)

	req := httptest.NewRequest("POST", "/api/v1/chat/stream",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	req.Header.Set("Origin", "https://evil.example.net")
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rr.Code)
	}
}
