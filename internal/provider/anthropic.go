package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/asksite/internal/config"
	"github.com/kailas-cloud/asksite/internal/domain"
	"github.com/kailas-cloud/asksite/internal/metrics"
	"github.com/kailas-cloud/asksite/internal/sse"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-sonnet-4-5-20250929"
	anthropicVersion        = "2023-06-01"
	anthropicMaxRounds      = 4
)

// anthropicAdapter speaks the Anthropic Messages API directly. The vendor
// has no OpenAI-compatible surface, so both the blocking and streaming
// paths are implemented on net/http.
type anthropicAdapter struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func newAnthropic(cfg config.LLMConfig, log *zap.Logger) *anthropicAdapter {
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	baseURL := defaultAnthropicBaseURL
	if cfg.BaseURL != "" {
		baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &anthropicAdapter{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 120 * time.Second},
		logger:  log,
	}
}

func (a *anthropicAdapter) Name() string            { return "anthropic" }
func (a *anthropicAdapter) SupportsTools() bool     { return true }
func (a *anthropicAdapter) SupportsImages() bool    { return true }
func (a *anthropicAdapter) SupportsStreaming() bool { return true }

type anthropicImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	// tool_use fields.
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`
	// tool_result fields.
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	// image fields.
	Source *anthropicImageSource `json:"source,omitempty"`
}

type anthropicMessage struct {
	Role string `json:"role"`
	// Content is either a plain string or a block list.
	Content any `json:"content"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicToolChoice struct {
	Type string `json:"type"`
}

type anthropicRequest struct {
	Model       string               `json:"model"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature float32              `json:"temperature"`
	System      string               `json:"system,omitempty"`
	Messages    []anthropicMessage   `json:"messages"`
	Tools       []anthropicTool      `json:"tools,omitempty"`
	ToolChoice  *anthropicToolChoice `json:"tool_choice,omitempty"`
	Stream      bool                 `json:"stream,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	Content []anthropicBlock `json:"content"`
	Usage   anthropicUsage   `json:"usage"`
}

func (a *anthropicAdapter) Send(ctx context.Context, messages []domain.Message, systemPrompt string, opts Options) (Result, error) {
	if strings.TrimSpace(a.apiKey) == "" {
		return Result{}, fmt.Errorf("anthropic: %w", domain.ErrMissingCredential)
	}

	turns := a.buildMessages(messages)
	if len(turns) == 0 {
		return Result{}, fmt.Errorf("anthropic: no valid messages: %w", domain.ErrValidation)
	}

	tools := convertAnthropicTools(opts.Tools)
	useTools := len(tools) > 0 && opts.ToolHandler != nil
	maxRounds := opts.roundBudget(anthropicMaxRounds, useTools)

	var total domain.Usage
	toolUsed := false

	for round := 0; round < maxRounds; round++ {
		opts.notifyRound(round)

		req := anthropicRequest{
			Model:       a.model,
			MaxTokens:   opts.maxTokens(),
			Temperature: opts.temperature(),
			System:      systemPrompt,
			Messages:    turns,
			Tools:       tools,
		}
		if useTools && toolUsed && round >= maxRounds-1 {
			req.ToolChoice = &anthropicToolChoice{Type: "none"}
		}

		resp, err := a.post(ctx, req)
		if err != nil {
			metrics.ProviderRequestsTotal.WithLabelValues("anthropic", a.model, "error").Inc()
			return Result{}, err
		}
		metrics.ProviderRequestsTotal.WithLabelValues("anthropic", a.model, "success").Inc()
		a.recordUsage(&total, resp.Usage)

		var toolBlocks []anthropicBlock
		var textParts []string
		for _, block := range resp.Content {
			switch block.Type {
			case "tool_use":
				toolBlocks = append(toolBlocks, block)
			case "text":
				if t := strings.TrimSpace(block.Text); t != "" {
					textParts = append(textParts, t)
				}
			}
		}

		if len(toolBlocks) == 0 || !useTools {
			text := strings.TrimSpace(strings.Join(textParts, "\n"))
			if text == "" {
				return Result{}, fmt.Errorf("anthropic: %w", domain.ErrEmptyResponse)
			}
			return Result{Text: text, Usage: total}, nil
		}

		toolUsed = true
		turns = append(turns, anthropicMessage{Role: "assistant", Content: resp.Content})
		turns = append(turns, anthropicMessage{
			Role:    "user",
			Content: a.runToolCalls(ctx, toolBlocks, opts.ToolHandler),
		})
	}

	return Result{}, fmt.Errorf("anthropic: %w", domain.ErrToolLoopExhausted)
}

func (a *anthropicAdapter) SendStream(ctx context.Context, messages []domain.Message, systemPrompt string, opts Options, onDelta DeltaFunc) (Result, error) {
	if strings.TrimSpace(a.apiKey) == "" {
		return Result{}, fmt.Errorf("anthropic: %w", domain.ErrMissingCredential)
	}

	turns := a.buildMessages(messages)
	if len(turns) == 0 {
		return Result{}, fmt.Errorf("anthropic: no valid messages: %w", domain.ErrValidation)
	}

	tools := convertAnthropicTools(opts.Tools)
	useTools := len(tools) > 0 && opts.ToolHandler != nil
	maxRounds := opts.roundBudget(anthropicMaxRounds, useTools)

	var total domain.Usage
	toolUsed := false

	for round := 0; round < maxRounds; round++ {
		opts.notifyRound(round)

		req := anthropicRequest{
			Model:       a.model,
			MaxTokens:   opts.maxTokens(),
			Temperature: opts.temperature(),
			System:      systemPrompt,
			Messages:    turns,
			Tools:       tools,
			Stream:      true,
		}
		if useTools && toolUsed && round >= maxRounds-1 {
			req.ToolChoice = &anthropicToolChoice{Type: "none"}
		}

		text, toolBlocks, err := a.streamRound(ctx, req, &total, onDelta)
		if err != nil {
			metrics.ProviderRequestsTotal.WithLabelValues("anthropic", a.model, "error").Inc()
			return Result{}, err
		}
		metrics.ProviderRequestsTotal.WithLabelValues("anthropic", a.model, "success").Inc()

		if len(toolBlocks) == 0 || !useTools {
			if strings.TrimSpace(text) == "" {
				return Result{}, fmt.Errorf("anthropic: %w", domain.ErrEmptyResponse)
			}
			return Result{Text: strings.TrimSpace(text), Usage: total}, nil
		}

		toolUsed = true

		var assistant []anthropicBlock
		if text != "" {
			assistant = append(assistant, anthropicBlock{Type: "text", Text: text})
		}
		assistant = append(assistant, toolBlocks...)
		turns = append(turns, anthropicMessage{Role: "assistant", Content: assistant})
		turns = append(turns, anthropicMessage{
			Role:    "user",
			Content: a.runToolCalls(ctx, toolBlocks, opts.ToolHandler),
		})
	}

	return Result{}, fmt.Errorf("anthropic: %w", domain.ErrToolLoopExhausted)
}

// anthropicStreamEvent covers the union of stream event payloads.
type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`

	Message *struct {
		Usage anthropicUsage `json:"usage"`
	} `json:"message"`

	ContentBlock *anthropicBlock `json:"content_block"`

	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`

	Usage *anthropicUsage `json:"usage"`

	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// streamRound consumes one streamed message, forwarding text deltas and
// reassembling tool_use blocks from their partial JSON fragments.
func (a *anthropicAdapter) streamRound(ctx context.Context, req anthropicRequest, total *domain.Usage, onDelta DeltaFunc) (string, []anthropicBlock, error) {
	body, err := a.do(ctx, req)
	if err != nil {
		return "", nil, err
	}
	defer body.Close()

	type toolDraft struct {
		block anthropicBlock
		json  strings.Builder
	}

	var text strings.Builder
	drafts := map[int]*toolDraft{}
	var order []int
	usage := anthropicUsage{}

	scanner := sse.NewScanner(body)
	for scanner.Next() {
		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(scanner.Data()), &event); err != nil {
			continue
		}

		switch event.Type {
		case "message_start":
			if event.Message != nil {
				usage.InputTokens += event.Message.Usage.InputTokens
				usage.OutputTokens += event.Message.Usage.OutputTokens
			}
		case "content_block_start":
			if event.ContentBlock != nil && event.ContentBlock.Type == "tool_use" {
				drafts[event.Index] = &toolDraft{block: *event.ContentBlock}
				order = append(order, event.Index)
			}
		case "content_block_delta":
			if event.Delta == nil {
				continue
			}
			switch event.Delta.Type {
			case "text_delta":
				if event.Delta.Text != "" {
					text.WriteString(event.Delta.Text)
					if onDelta != nil {
						onDelta(event.Delta.Text)
					}
				}
			case "input_json_delta":
				if d, ok := drafts[event.Index]; ok {
					d.json.WriteString(event.Delta.PartialJSON)
				}
			}
		case "message_delta":
			if event.Usage != nil {
				usage.OutputTokens += event.Usage.OutputTokens
			}
		case "error":
			if event.Error != nil {
				return "", nil, fmt.Errorf("anthropic: %s: %w", event.Error.Message, domain.ErrTransport)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", nil, fmt.Errorf("anthropic: %s: %w", err.Error(), domain.ErrTransport)
	}

	a.recordUsage(total, usage)

	blocks := make([]anthropicBlock, 0, len(order))
	for _, idx := range order {
		d := drafts[idx]
		block := d.block
		block.Input = decodeToolArgs(d.json.String())
		blocks = append(blocks, block)
	}
	return text.String(), blocks, nil
}

func (a *anthropicAdapter) runToolCalls(ctx context.Context, toolBlocks []anthropicBlock, handler domain.ToolHandler) []anthropicBlock {
	results := make([]anthropicBlock, 0, len(toolBlocks))
	for _, tu := range toolBlocks {
		metrics.ToolInvocationsTotal.WithLabelValues(tu.Name).Inc()
		input := tu.Input
		if input == nil {
			input = map[string]any{}
		}
		results = append(results, anthropicBlock{
			Type:      "tool_result",
			ToolUseID: tu.ID,
			Content:   handler(ctx, tu.Name, input),
		})
	}
	return results
}

// post issues a blocking request and decodes the full response body.
func (a *anthropicAdapter) post(ctx context.Context, req anthropicRequest) (anthropicResponse, error) {
	body, err := a.do(ctx, req)
	if err != nil {
		return anthropicResponse{}, err
	}
	defer body.Close()

	var resp anthropicResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return anthropicResponse{}, fmt.Errorf("anthropic: %w", domain.ErrDecode)
	}
	return resp, nil
}

func (a *anthropicAdapter) do(ctx context.Context, req anthropicRequest) (io.ReadCloser, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("anthropic: build request: %w", err)
	}
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("anthropic: %s: %w", err.Error(), domain.ErrTransport)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		a.logger.Warn("anthropic API error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", detail))
		return nil, domain.NewVendorHTTPError("anthropic", resp.StatusCode)
	}

	return resp.Body, nil
}

func (a *anthropicAdapter) recordUsage(total *domain.Usage, usage anthropicUsage) {
	if usage.InputTokens == 0 && usage.OutputTokens == 0 {
		return
	}
	total.Add(domain.Usage{
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
	})
	metrics.ProviderTokensTotal.WithLabelValues("anthropic", a.model, "input").Add(float64(usage.InputTokens))
	metrics.ProviderTokensTotal.WithLabelValues("anthropic", a.model, "output").Add(float64(usage.OutputTokens))
}

// buildMessages converts vendor-neutral turns into Anthropic messages,
// keeping only user and assistant roles with content.
func (a *anthropicAdapter) buildMessages(messages []domain.Message) []anthropicMessage {
	turns := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
			continue
		}

		if m.IsMultimodal() {
			blocks := convertAnthropicParts(m.Parts)
			if len(blocks) == 0 {
				continue
			}
			turns = append(turns, anthropicMessage{Role: string(m.Role), Content: blocks})
			continue
		}

		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		turns = append(turns, anthropicMessage{Role: string(m.Role), Content: content})
	}
	return turns
}

func convertAnthropicParts(parts []domain.ContentPart) []anthropicBlock {
	blocks := make([]anthropicBlock, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case domain.PartText:
			if strings.TrimSpace(p.Text) == "" {
				continue
			}
			blocks = append(blocks, anthropicBlock{Type: "text", Text: p.Text})
		case domain.PartImage:
			if p.Base64 == "" {
				continue
			}
			blocks = append(blocks, anthropicBlock{
				Type: "image",
				Source: &anthropicImageSource{
					Type:      "base64",
					MediaType: p.MIMEType,
					Data:      p.Base64,
				},
			})
		}
	}
	return blocks
}

func convertAnthropicTools(schemas []domain.ToolSchema) []anthropicTool {
	tools := make([]anthropicTool, 0, len(schemas))
	for _, s := range schemas {
		params := s.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		tools = append(tools, anthropicTool{
			Name:        s.Name,
			Description: s.Description,
			InputSchema: params,
		})
	}
	return tools
}
