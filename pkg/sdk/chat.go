package sdk

import (
	"context"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// Message is one turn of the conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Attachment is an inline image sent with the latest user turn.
type Attachment struct {
	DataURL string `json:"data_url"`
	Name    string `json:"name,omitempty"`
}

// ChatRequest is the payload for both chat modes.
type ChatRequest struct {
	Messages   []Message   `json:"messages"`
	PageURL    string      `json:"page_url,omitempty"`
	PageTitle  string      `json:"page_title,omitempty"`
	StreamID   string      `json:"stream_id,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// EnsureStreamID fills StreamID with a fresh identifier when empty and
// returns it, so retrieval progress can be polled during the stream.
func (r *ChatRequest) EnsureStreamID() string {
	if r.StreamID == "" {
		r.StreamID = uuid.NewString()
	}
	return r.StreamID
}

// Source is a cited page returned with the answer.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Usage is the token accounting for one turn.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// ChatResponse is a completed blocking turn.
type ChatResponse struct {
	Reply   string   `json:"reply"`
	Sources []Source `json:"sources"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Chat runs one blocking turn.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/v1/chat", req)
	if err != nil {
		return ChatResponse{}, err
	}

	var resp ChatResponse
	if err := c.doJSON(httpReq, &resp); err != nil {
		return ChatResponse{}, err
	}
	return resp, nil
}

// ProgressState is the polled retrieval progress for one stream.
type ProgressState struct {
	Steps     []string `json:"steps"`
	Done      bool     `json:"done"`
	Error     string   `json:"error,omitempty"`
	UpdatedAt int64    `json:"updated_at"`
}

// Progress polls the retrieval steps recorded for streamID.
func (c *Client) Progress(ctx context.Context, streamID string) (ProgressState, error) {
	path := "/api/v1/chat/progress?stream_id=" + url.QueryEscape(streamID)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return ProgressState{}, err
	}

	var state ProgressState
	if err := c.doJSON(req, &state); err != nil {
		return ProgressState{}, err
	}
	return state, nil
}
