package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kailas-cloud/asksite/internal/sse"
)

// StreamEvent is one event from a streaming chat turn. Exactly one of the
// field groups is populated per event.
type StreamEvent struct {
	Delta  string `json:"delta,omitempty"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`

	Done    bool     `json:"done,omitempty"`
	Sources []Source `json:"sources,omitempty"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// StreamHandler receives stream events in arrival order.
type StreamHandler func(ev StreamEvent)

// ChatStream runs one streaming turn, invoking handler for every event
// until the terminating sentinel. A stream that ends early returns
// ErrStreamClosed.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest, handler StreamHandler) error {
	req.EnsureStreamID()

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/v1/chat/stream", req)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	// Streaming must outlive the client timeout; the caller's context
	// bounds the turn.
	hc := &http.Client{Transport: c.http.Transport}
	resp, err := hc.Do(httpReq)
	if err != nil {
		return fmt.Errorf("asksite: open stream: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	scanner := sse.NewScanner(resp.Body)
	for scanner.Next() {
		data := scanner.Data()
		if data == sse.DoneSentinel {
			return nil
		}

		var ev StreamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return fmt.Errorf("asksite: decode stream event: %w", err)
		}
		handler(ev)
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return ErrStreamClosed
}
