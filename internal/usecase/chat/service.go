// Package chat orchestrates a visitor turn: sanitization, guardrails,
// retrieval context, the provider call with its tool loop, and source
// attribution.
package chat

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/asksite/internal/config"
	"github.com/kailas-cloud/asksite/internal/domain"
	"github.com/kailas-cloud/asksite/internal/metrics"
	"github.com/kailas-cloud/asksite/internal/provider"
	"github.com/kailas-cloud/asksite/internal/rag"
)

// retriever is the slice of the retrieval service the chat flow consumes.
type retriever interface {
	BuildContext(ctx context.Context, pageURL, latestMessage, faqRaw string) domain.RagContext
	ToolSearch(ctx context.Context, query string, excludeID, maxResults int) []domain.SearchResult
	GetPage(ctx context.Context, rawURL string, maxLen int) (*domain.PagePayload, error)
}

// progressStore tracks retrieval steps for the polling endpoint.
type progressStore interface {
	Begin(ctx context.Context, id string) error
	AddStep(ctx context.Context, id, step string) error
	MarkDone(ctx context.Context, id, errMsg string) error
}

// usageRecorder persists per-turn token accounting.
type usageRecorder interface {
	Append(ctx context.Context, ts int64, provider, model string, usage domain.Usage) error
}

// Service runs chat turns against the configured provider.
type Service struct {
	chatCfg  config.ChatConfig
	ragCfg   config.RAGConfig
	llmCfg   config.LLMConfig
	adapter  provider.Adapter
	rag      retriever
	progress progressStore
	usage    usageRecorder
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a chat service.
func New(
	cfg config.Config,
	adapter provider.Adapter,
	retr retriever,
	prog progressStore,
	usage usageRecorder,
	log *zap.Logger,
) *Service {
	return &Service{
		chatCfg:  cfg.Chat,
		ragCfg:   cfg.RAG,
		llmCfg:   cfg.LLM,
		adapter:  adapter,
		rag:      retr,
		progress: prog,
		usage:    usage,
		logger:   log,
		now:      time.Now,
	}
}

// MaxPayloadBytes is the request body cap the transport enforces.
func (s *Service) MaxPayloadBytes() int {
	return MaxPayloadBytes(s.chatCfg.EnableImages)
}

// Response is a completed non-streaming chat turn.
type Response struct {
	Reply   string          `json:"reply"`
	Sources []domain.Source `json:"sources"`
	Action  any             `json:"action"`
	Usage   *domain.Usage   `json:"usage,omitempty"`
}

// turn carries the validated state shared by both chat modes.
type turn struct {
	messages    []domain.Message
	latestUser  string
	pageTitle   string
	pageURL     string
	attachment  *Attachment
	contextText string
	sources     []domain.Source
	excludeID   int
}

// prepare validates the payload and sanitizes the history. It does not
// build retrieval context yet; guardrail turns skip that entirely.
func (s *Service) prepare(payload Payload) (*turn, error) {
	attachment, err := ParseAttachment(payload.Attachment, s.chatCfg.EnableImages)
	if err != nil {
		return nil, err
	}
	if attachment != nil && !s.adapter.SupportsImages() {
		return nil, fmt.Errorf(
			"image attachments are not supported by the selected LLM provider: %w", domain.ErrValidation)
	}

	if len(payload.Messages) == 0 {
		return nil, fmt.Errorf("messages array is required: %w", domain.ErrValidation)
	}

	messages, latestUser := sanitizeHistory(payload.Messages)

	if latestUser == "" && attachment != nil {
		latestUser = imageAttachedMarker
		messages = append(messages, domain.Message{Role: domain.RoleUser, Content: latestUser})
	}
	if latestUser == "" {
		return nil, fmt.Errorf("no valid user message found: %w", domain.ErrValidation)
	}

	return &turn{
		messages:   messages,
		latestUser: latestUser,
		pageTitle:  rag.CleanText(payload.PageTitle, maxPageTitleLen),
		pageURL:    payload.PageURL,
		attachment: attachment,
	}, nil
}

// buildContext assembles the retrieval context unless retrieval is disabled.
func (s *Service) buildContext(ctx context.Context, t *turn) {
	if s.ragCfg.Disabled {
		return
	}

	rc := s.rag.BuildContext(ctx, t.pageURL, t.latestUser, s.chatCfg.FAQRaw)
	t.contextText = rag.ContextToText(rc)
	t.sources = rc.Sources
	if rc.CurrentPage != nil {
		t.excludeID = rc.CurrentPage.SourceID
	}
}

func (s *Service) statusReply(message string) string {
	if message == formSubmittedPing {
		return s.chatCfg.FormSuccessMessage
	}
	return s.chatCfg.FormOpenedMessage
}

func (s *Service) providerOptions(useTools bool, bag *sourceBag, status StatusFunc) provider.Options {
	opts := provider.Options{
		MaxOutputTokens: s.llmCfg.MaxOutputTokens,
		Temperature:     s.llmCfg.Temperature,
		MaxRounds:       s.ragCfg.ToolRounds,
	}
	if useTools {
		opts.Tools = []domain.ToolSchema{domain.SearchWebsiteTool(), domain.GetPageTool()}
		opts.ToolHandler = s.toolHandler(bag, status)
	}
	return opts
}

// Chat runs one blocking turn and returns the full reply. Provider
// failures degrade to an apologetic canned reply rather than an error;
// only invalid payloads error out.
func (s *Service) Chat(ctx context.Context, payload Payload) (Response, error) {
	start := s.now()

	t, err := s.prepare(payload)
	if err != nil {
		metrics.ObserveChatRequest("chat", "invalid", start)
		return Response{}, err
	}

	if isStatusPing(t.latestUser) {
		metrics.ObserveChatRequest("chat", "ping", start)
		return Response{Reply: s.statusReply(t.latestUser), Sources: []domain.Source{}}, nil
	}
	if IsInjectionAttempt(t.latestUser) {
		metrics.ObserveChatRequest("chat", "blocked", start)
		return Response{Reply: injectionReply, Sources: []domain.Source{}}, nil
	}

	s.buildContext(ctx, t)

	bag := &sourceBag{excludeID: t.excludeID}
	useTools := s.adapter.SupportsTools()
	opts := s.providerOptions(useTools, bag, nil)

	t.messages = attachImage(t.messages, t.attachment)
	systemPrompt := BuildSystemPrompt(s.chatCfg, t.contextText, t.pageTitle, useTools, t.attachment != nil)

	result, err := s.adapter.Send(ctx, t.messages, systemPrompt, opts)
	if err != nil {
		s.logger.Warn("chat generation failed",
			zap.String("provider", s.adapter.Name()),
			zap.Error(err))
		metrics.ObserveChatRequest("chat", "provider_error", start)
		return Response{
			Reply:   genericFailureReply,
			Sources: rag.DedupeSources(append(t.sources, bag.items...)),
		}, nil
	}

	s.recordUsage(ctx, result.Usage)
	metrics.ObserveChatRequest("chat", "success", start)

	return Response{
		Reply:   result.Text,
		Sources: rag.DedupeSources(append(t.sources, bag.items...)),
		Usage:   &result.Usage,
	}, nil
}

func (s *Service) recordUsage(ctx context.Context, usage domain.Usage) {
	if usage.IsZero() {
		return
	}
	if err := s.usage.Append(ctx, s.now().Unix(), s.adapter.Name(), s.llmCfg.Model, usage); err != nil {
		s.logger.Warn("usage log append failed", zap.Error(err))
	}
}
