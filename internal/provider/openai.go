package provider

import (
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/asksite/internal/config"
)

const defaultOpenAIModel = "gpt-4o"

func newOpenAI(cfg config.LLMConfig, log *zap.Logger) *chatAdapter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	return &chatAdapter{
		client:    openai.NewClientWithConfig(clientCfg),
		name:      "openai",
		model:     model,
		hasKey:    cfg.APIKey != "",
		tools:     true,
		images:    true,
		maxRounds: 4,
		logger:    log,
	}
}
