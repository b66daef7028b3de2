package provider

import (
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/asksite/internal/config"
)

const defaultOllamaModel = "llama3"

// newOllama targets a local Ollama daemon through its OpenAI-compatible
// endpoint. No credential is required and tool calling is not offered.
func newOllama(cfg config.LLMConfig, log *zap.Logger) *chatAdapter {
	endpoint := strings.TrimRight(cfg.OllamaEndpoint, "/")
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}

	clientCfg := openai.DefaultConfig("ollama")
	clientCfg.BaseURL = endpoint + "/v1"

	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}

	return &chatAdapter{
		client:    openai.NewClientWithConfig(clientCfg),
		name:      "ollama",
		model:     model,
		hasKey:    true,
		tools:     false,
		images:    false,
		maxRounds: 1,
		logger:    log,
	}
}
