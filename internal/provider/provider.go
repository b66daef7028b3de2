// Package provider adapts vendor LLM APIs behind a single chat contract.
// Each adapter owns its vendor's wire format, including the multi-round
// tool-call loop, and reports vendor-neutral results.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/asksite/internal/config"
	"github.com/kailas-cloud/asksite/internal/domain"
)

// Output token bounds enforced on every request regardless of configuration.
const (
	defaultMaxOutputTokens = 500
	minOutputTokens        = 120
	maxOutputTokensCap     = 4000
	defaultTemperature     = 0.7
)

// DeltaFunc receives incremental text as a streamed round produces it.
type DeltaFunc func(text string)

// Options carries per-request generation settings. Tools and ToolHandler
// must both be set for the tool loop to run; otherwise the adapter makes
// a single generation round.
type Options struct {
	MaxOutputTokens int
	Temperature     float32
	Tools           []domain.ToolSchema
	ToolHandler     domain.ToolHandler
	// MaxRounds caps the tool loop below the adapter's own budget.
	// Zero keeps the adapter default.
	MaxRounds int
	// OnRound is invoked before each generation round after the first,
	// letting the caller surface round-boundary progress.
	OnRound func(round int)
}

func (o Options) maxTokens() int {
	n := o.MaxOutputTokens
	if n <= 0 {
		n = defaultMaxOutputTokens
	}
	return max(minOutputTokens, min(maxOutputTokensCap, n))
}

func (o Options) temperature() float32 {
	if o.Temperature <= 0 {
		return defaultTemperature
	}
	return o.Temperature
}

// roundBudget resolves the tool-loop budget for an adapter whose own cap
// is adapterMax. Tool loops never run when useTools is false.
func (o Options) roundBudget(adapterMax int, useTools bool) int {
	if !useTools {
		return 1
	}
	if o.MaxRounds > 0 && o.MaxRounds < adapterMax {
		return o.MaxRounds
	}
	return adapterMax
}

func (o Options) notifyRound(round int) {
	if round > 0 && o.OnRound != nil {
		o.OnRound(round)
	}
}

// Result is the final outcome of a generation turn, with usage accumulated
// across all tool rounds.
type Result struct {
	Text  string
	Usage domain.Usage
}

// Adapter is the vendor-neutral LLM client. Send blocks until the final
// text is available; SendStream additionally delivers text increments
// through onDelta as they arrive.
type Adapter interface {
	Name() string
	SupportsTools() bool
	SupportsImages() bool
	SupportsStreaming() bool
	Send(ctx context.Context, messages []domain.Message, systemPrompt string, opts Options) (Result, error)
	SendStream(ctx context.Context, messages []domain.Message, systemPrompt string, opts Options, onDelta DeltaFunc) (Result, error)
}

// New builds the adapter selected by cfg.Provider. siteURL and siteName
// identify the calling site to vendors that attribute traffic.
func New(cfg config.LLMConfig, siteURL, siteName string, log *zap.Logger) (Adapter, error) {
	switch cfg.Provider {
	case "openai", "":
		return newOpenAI(cfg, log), nil
	case "anthropic":
		return newAnthropic(cfg, log), nil
	case "openrouter":
		return newOpenRouter(cfg, siteURL, siteName, log), nil
	case "ollama":
		return newOllama(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// decodeToolArgs parses a vendor-emitted JSON argument string, degrading
// to an empty map on malformed input so the tool handler still runs.
func decodeToolArgs(raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{}
	}
	return args
}
