package provider

import (
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/asksite/internal/config"
)

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel   = "openai/gpt-4o"
)

func newOpenRouter(cfg config.LLMConfig, siteURL, siteName string, log *zap.Logger) *chatAdapter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = defaultOpenRouterBaseURL
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	// OpenRouter attributes traffic via referer headers.
	headers := map[string]string{}
	if siteURL != "" {
		headers["HTTP-Referer"] = siteURL
	}
	if siteName != "" {
		headers["X-Title"] = siteName
	}
	if len(headers) > 0 {
		clientCfg.HTTPClient = &http.Client{
			Transport: &headerTransport{base: http.DefaultTransport, headers: headers},
		}
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenRouterModel
	}

	return &chatAdapter{
		client:    openai.NewClientWithConfig(clientCfg),
		name:      "openrouter",
		model:     model,
		hasKey:    cfg.APIKey != "",
		tools:     true,
		images:    true,
		maxRounds: 6,
		logger:    log,
	}
}

// headerTransport injects static headers into every outgoing request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		clone.Header.Set(k, v)
	}
	return t.base.RoundTrip(clone)
}
