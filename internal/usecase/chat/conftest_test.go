package chat

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/asksite/internal/config"
	"github.com/kailas-cloud/asksite/internal/domain"
	"github.com/kailas-cloud/asksite/internal/provider"
)

// fakeRetriever serves canned retrieval data.
type fakeRetriever struct {
	context       domain.RagContext
	searchResults []domain.SearchResult
	pages         map[string]*domain.PagePayload

	searchQueries []string
}

func (f *fakeRetriever) BuildContext(ctx context.Context, pageURL, latestMessage, faqRaw string) domain.RagContext {
	return f.context
}

func (f *fakeRetriever) ToolSearch(ctx context.Context, query string, excludeID, maxResults int) []domain.SearchResult {
	f.searchQueries = append(f.searchQueries, query)
	if len(f.searchResults) > maxResults {
		return f.searchResults[:maxResults]
	}
	return f.searchResults
}

func (f *fakeRetriever) GetPage(ctx context.Context, rawURL string, maxLen int) (*domain.PagePayload, error) {
	if p, ok := f.pages[rawURL]; ok {
		return p, nil
	}
	return nil, domain.ErrPageNotFound
}

// fakeProgress records lifecycle calls.
type fakeProgress struct {
	begun    []string
	steps    []string
	doneIDs  []string
	doneErrs []string
}

func (f *fakeProgress) Begin(ctx context.Context, id string) error {
	f.begun = append(f.begun, id)
	return nil
}

func (f *fakeProgress) AddStep(ctx context.Context, id, step string) error {
	f.steps = append(f.steps, step)
	return nil
}

func (f *fakeProgress) MarkDone(ctx context.Context, id, errMsg string) error {
	f.doneIDs = append(f.doneIDs, id)
	f.doneErrs = append(f.doneErrs, errMsg)
	return nil
}

// fakeUsage records appended usage entries.
type usageEntry struct {
	provider string
	model    string
	usage    domain.Usage
}

type fakeUsage struct {
	entries []usageEntry
}

func (f *fakeUsage) Append(ctx context.Context, ts int64, provider, model string, usage domain.Usage) error {
	f.entries = append(f.entries, usageEntry{provider: provider, model: model, usage: usage})
	return nil
}

// fakeAdapter is a scripted provider.
type fakeAdapter struct {
	name   string
	tools  bool
	images bool

	sendFn   func(ctx context.Context, messages []domain.Message, systemPrompt string, opts provider.Options) (provider.Result, error)
	streamFn func(ctx context.Context, messages []domain.Message, systemPrompt string, opts provider.Options, onDelta provider.DeltaFunc) (provider.Result, error)

	sendCalls   int
	streamCalls int
	lastSystem  string
	lastOpts    provider.Options
}

func (f *fakeAdapter) Name() string            { return f.name }
func (f *fakeAdapter) SupportsTools() bool     { return f.tools }
func (f *fakeAdapter) SupportsImages() bool    { return f.images }
func (f *fakeAdapter) SupportsStreaming() bool { return true }

func (f *fakeAdapter) Send(ctx context.Context, messages []domain.Message, systemPrompt string, opts provider.Options) (provider.Result, error) {
	f.sendCalls++
	f.lastSystem = systemPrompt
	f.lastOpts = opts
	return f.sendFn(ctx, messages, systemPrompt, opts)
}

func (f *fakeAdapter) SendStream(ctx context.Context, messages []domain.Message, systemPrompt string, opts provider.Options, onDelta provider.DeltaFunc) (provider.Result, error) {
	f.streamCalls++
	f.lastSystem = systemPrompt
	f.lastOpts = opts
	return f.streamFn(ctx, messages, systemPrompt, opts, onDelta)
}

// streamEvent is one recorded emitter call.
type streamEvent struct {
	kind    string // delta, status, error, done
	text    string
	sources []domain.Source
	usage   *domain.Usage
}

type recordingEmitter struct {
	events []streamEvent
}

func (r *recordingEmitter) Delta(text string) error {
	r.events = append(r.events, streamEvent{kind: "delta", text: text})
	return nil
}

func (r *recordingEmitter) Status(text string) error {
	r.events = append(r.events, streamEvent{kind: "status", text: text})
	return nil
}

func (r *recordingEmitter) Error(text string) error {
	r.events = append(r.events, streamEvent{kind: "error", text: text})
	return nil
}

func (r *recordingEmitter) Done(sources []domain.Source, usage *domain.Usage) error {
	r.events = append(r.events, streamEvent{kind: "done", sources: sources, usage: usage})
	return nil
}

func (r *recordingEmitter) kinds() []string {
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.kind)
	}
	return out
}

func (r *recordingEmitter) last() streamEvent {
	return r.events[len(r.events)-1]
}

func testConfig() config.Config {
	cfg := config.Config{}
	cfg.ApplyDefaults()
	cfg.LLM.Model = "gpt-4o"
	return cfg
}

type testEnv struct {
	service  *Service
	adapter  *fakeAdapter
	rag      *fakeRetriever
	progress *fakeProgress
	usage    *fakeUsage
}

func newTestEnv(cfg config.Config, adapter *fakeAdapter, retr *fakeRetriever) *testEnv {
	if retr == nil {
		retr = &fakeRetriever{}
	}
	prog := &fakeProgress{}
	usage := &fakeUsage{}

	svc := New(cfg, adapter, retr, prog, usage, zap.NewNop())
	svc.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	return &testEnv{service: svc, adapter: adapter, rag: retr, progress: prog, usage: usage}
}

func userPayload(text string) Payload {
	return Payload{Messages: []PayloadMessage{{Role: "user", Content: text}}}
}
