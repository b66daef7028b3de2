package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/asksite/internal/domain"
	"github.com/kailas-cloud/asksite/internal/metrics"
)

// chatAdapter drives any Chat Completions compatible vendor. The three
// OpenAI-shaped providers differ only in endpoint, headers, round budget,
// and capability flags.
type chatAdapter struct {
	client    *openai.Client
	name      string
	model     string
	hasKey    bool
	tools     bool
	images    bool
	maxRounds int
	logger    *zap.Logger
}

func (a *chatAdapter) Name() string            { return a.name }
func (a *chatAdapter) SupportsTools() bool     { return a.tools }
func (a *chatAdapter) SupportsImages() bool    { return a.images }
func (a *chatAdapter) SupportsStreaming() bool { return true }

func (a *chatAdapter) Send(ctx context.Context, messages []domain.Message, systemPrompt string, opts Options) (Result, error) {
	if !a.hasKey {
		return Result{}, fmt.Errorf("%s: %w", a.name, domain.ErrMissingCredential)
	}

	chat := a.buildMessages(messages, systemPrompt)
	if len(chat) == 0 {
		return Result{}, fmt.Errorf("%s: no valid messages: %w", a.name, domain.ErrValidation)
	}

	tools := convertChatTools(opts.Tools)
	useTools := a.tools && len(tools) > 0 && opts.ToolHandler != nil
	maxRounds := opts.roundBudget(a.maxRounds, useTools)

	var total domain.Usage
	toolUsed := false

	for round := 0; round < maxRounds; round++ {
		opts.notifyRound(round)

		req := a.newRequest(chat, opts)
		if useTools {
			req.Tools = tools
			if toolUsed && round >= maxRounds-1 {
				req.ToolChoice = "none"
			}
		}

		resp, err := a.client.CreateChatCompletion(ctx, req)
		if err != nil {
			metrics.ProviderRequestsTotal.WithLabelValues(a.name, a.model, "error").Inc()
			return Result{}, a.wrapAPIError(err)
		}
		metrics.ProviderRequestsTotal.WithLabelValues(a.name, a.model, "success").Inc()
		a.recordUsage(&total, &resp.Usage)

		if len(resp.Choices) == 0 {
			return Result{}, fmt.Errorf("%s: %w", a.name, domain.ErrEmptyResponse)
		}
		msg := resp.Choices[0].Message

		if len(msg.ToolCalls) == 0 || !useTools {
			text := strings.TrimSpace(msg.Content)
			if text == "" {
				return Result{}, fmt.Errorf("%s: %w", a.name, domain.ErrEmptyResponse)
			}
			return Result{Text: text, Usage: total}, nil
		}

		toolUsed = true
		chat = append(chat, msg)
		chat = append(chat, a.runToolCalls(ctx, msg.ToolCalls, opts.ToolHandler)...)
	}

	return Result{}, fmt.Errorf("%s: %w", a.name, domain.ErrToolLoopExhausted)
}

func (a *chatAdapter) SendStream(ctx context.Context, messages []domain.Message, systemPrompt string, opts Options, onDelta DeltaFunc) (Result, error) {
	if !a.hasKey {
		return Result{}, fmt.Errorf("%s: %w", a.name, domain.ErrMissingCredential)
	}

	chat := a.buildMessages(messages, systemPrompt)
	if len(chat) == 0 {
		return Result{}, fmt.Errorf("%s: no valid messages: %w", a.name, domain.ErrValidation)
	}

	tools := convertChatTools(opts.Tools)
	useTools := a.tools && len(tools) > 0 && opts.ToolHandler != nil
	maxRounds := opts.roundBudget(a.maxRounds, useTools)

	var total domain.Usage
	toolUsed := false

	for round := 0; round < maxRounds; round++ {
		opts.notifyRound(round)

		req := a.newRequest(chat, opts)
		req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
		if useTools {
			req.Tools = tools
			if toolUsed && round >= maxRounds-1 {
				req.ToolChoice = "none"
			}
		}

		text, calls, err := a.streamRound(ctx, req, &total, onDelta)
		if err != nil {
			return Result{}, err
		}

		if len(calls) == 0 || !useTools {
			if strings.TrimSpace(text) == "" {
				return Result{}, fmt.Errorf("%s: %w", a.name, domain.ErrEmptyResponse)
			}
			return Result{Text: strings.TrimSpace(text), Usage: total}, nil
		}

		toolUsed = true
		chat = append(chat, openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			Content:   text,
			ToolCalls: calls,
		})
		chat = append(chat, a.runToolCalls(ctx, calls, opts.ToolHandler)...)
	}

	return Result{}, fmt.Errorf("%s: %w", a.name, domain.ErrToolLoopExhausted)
}

// streamRound consumes one streamed completion, forwarding text deltas and
// reassembling tool-call fragments by index.
func (a *chatAdapter) streamRound(ctx context.Context, req openai.ChatCompletionRequest, total *domain.Usage, onDelta DeltaFunc) (string, []openai.ToolCall, error) {
	stream, err := a.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(a.name, a.model, "error").Inc()
		return "", nil, a.wrapAPIError(err)
	}
	defer stream.Close()

	var text strings.Builder
	var calls []openai.ToolCall

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			metrics.ProviderRequestsTotal.WithLabelValues(a.name, a.model, "error").Inc()
			return "", nil, a.wrapAPIError(err)
		}

		if resp.Usage != nil {
			a.recordUsage(total, resp.Usage)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta
		if delta.Content != "" {
			text.WriteString(delta.Content)
			if onDelta != nil {
				onDelta(delta.Content)
			}
		}
		for _, tc := range delta.ToolCalls {
			mergeToolCallDelta(&calls, tc)
		}
	}

	metrics.ProviderRequestsTotal.WithLabelValues(a.name, a.model, "success").Inc()
	return text.String(), calls, nil
}

func (a *chatAdapter) newRequest(chat []openai.ChatCompletionMessage, opts Options) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    chat,
		MaxTokens:   opts.maxTokens(),
		Temperature: opts.temperature(),
	}
}

func (a *chatAdapter) runToolCalls(ctx context.Context, calls []openai.ToolCall, handler domain.ToolHandler) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(calls))
	for _, tc := range calls {
		metrics.ToolInvocationsTotal.WithLabelValues(tc.Function.Name).Inc()
		result := handler(ctx, tc.Function.Name, decodeToolArgs(tc.Function.Arguments))
		out = append(out, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			ToolCallID: tc.ID,
			Content:    result,
		})
	}
	return out
}

// buildMessages converts vendor-neutral turns, prepending the system prompt
// and dropping anything outside the user/assistant roles or with no content.
func (a *chatAdapter) buildMessages(messages []domain.Message, systemPrompt string) []openai.ChatCompletionMessage {
	chat := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		chat = append(chat, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}

	hadTurn := false
	for _, m := range messages {
		if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
			continue
		}

		if m.IsMultimodal() && a.images {
			parts := convertChatParts(m.Parts)
			if len(parts) == 0 {
				continue
			}
			chat = append(chat, openai.ChatCompletionMessage{
				Role:         string(m.Role),
				MultiContent: parts,
			})
			hadTurn = true
			continue
		}

		content := strings.TrimSpace(m.Text())
		if content == "" {
			continue
		}
		chat = append(chat, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: content,
		})
		hadTurn = true
	}

	if !hadTurn {
		return nil
	}
	return chat
}

func convertChatParts(parts []domain.ContentPart) []openai.ChatMessagePart {
	out := make([]openai.ChatMessagePart, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case domain.PartText:
			if strings.TrimSpace(p.Text) == "" {
				continue
			}
			out = append(out, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: p.Text,
			})
		case domain.PartImage:
			if p.DataURL == "" {
				continue
			}
			out = append(out, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: p.DataURL},
			})
		}
	}
	return out
}

func convertChatTools(schemas []domain.ToolSchema) []openai.Tool {
	tools := make([]openai.Tool, 0, len(schemas))
	for _, s := range schemas {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		})
	}
	return tools
}

// mergeToolCallDelta folds a streamed tool-call fragment into the slot
// addressed by its index. Arguments arrive split across many fragments.
func mergeToolCallDelta(calls *[]openai.ToolCall, delta openai.ToolCall) {
	idx := 0
	if delta.Index != nil {
		idx = *delta.Index
	}
	for len(*calls) <= idx {
		*calls = append(*calls, openai.ToolCall{Type: openai.ToolTypeFunction})
	}

	cur := &(*calls)[idx]
	if delta.ID != "" {
		cur.ID = delta.ID
	}
	if delta.Function.Name != "" {
		cur.Function.Name = delta.Function.Name
	}
	cur.Function.Arguments += delta.Function.Arguments
}

func (a *chatAdapter) recordUsage(total *domain.Usage, usage *openai.Usage) {
	if usage == nil {
		return
	}
	if usage.PromptTokens == 0 && usage.CompletionTokens == 0 {
		return
	}
	total.Add(domain.Usage{
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
	})
	metrics.ProviderTokensTotal.WithLabelValues(a.name, a.model, "input").Add(float64(usage.PromptTokens))
	metrics.ProviderTokensTotal.WithLabelValues(a.name, a.model, "output").Add(float64(usage.CompletionTokens))
}

func (a *chatAdapter) wrapAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		a.logger.Warn("provider API error",
			zap.String("provider", a.name),
			zap.Int("status", apiErr.HTTPStatusCode),
			zap.String("message", apiErr.Message))
		return domain.NewVendorHTTPError(a.name, apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		a.logger.Warn("provider API error",
			zap.String("provider", a.name),
			zap.Int("status", reqErr.HTTPStatusCode))
		return domain.NewVendorHTTPError(a.name, reqErr.HTTPStatusCode)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return fmt.Errorf("%s: %s: %w", a.name, err.Error(), domain.ErrTransport)
}
