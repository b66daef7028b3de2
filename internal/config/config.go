package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the asksite service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Site     SiteConfig     `yaml:"site"`
	LLM      LLMConfig      `yaml:"llm"`
	RAG      RAGConfig      `yaml:"rag"`
	Chat     ChatConfig     `yaml:"chat"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	// AdminAPIKeys protect the admin routes (usage log, index management).
	// Empty disables admin authentication.
	AdminAPIKeys []string `yaml:"admin_api_keys"`
}

// DatabaseConfig holds Redis connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// SiteConfig identifies the site whose content is served.
type SiteConfig struct {
	// BaseURL is the public site origin, e.g. https://example.com.
	BaseURL string `yaml:"base_url"`
	// ContentAPIURL is the content store REST root. Defaults to
	// BaseURL + /wp-json/wp/v2.
	ContentAPIURL string `yaml:"content_api_url"`
	// PostTypes are the content types considered first-class for retrieval.
	PostTypes []string `yaml:"post_types"`
}

// LLMConfig holds provider selection and generation settings.
type LLMConfig struct {
	// Provider is one of openai, anthropic, openrouter, ollama.
	Provider        string  `yaml:"provider"`
	Model           string  `yaml:"model"`
	APIKey          string  `yaml:"api_key"`
	BaseURL         string  `yaml:"base_url"` // optional override for OpenAI-compatible endpoints
	OllamaEndpoint  string  `yaml:"ollama_endpoint"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	Temperature     float32 `yaml:"temperature"`
}

// RAGConfig holds retrieval and index settings.
type RAGConfig struct {
	// Disabled turns off context assembly entirely; the model then answers
	// from the system prompt and tools alone.
	Disabled         bool  `yaml:"disabled"`
	MaxResults       int   `yaml:"max_results"`
	MaxFAQ           int   `yaml:"max_faq"`
	SnippetLength    int   `yaml:"snippet_length"`
	IndexMaxDocs     int   `yaml:"index_max_docs"`
	IndexTTLSec      int   `yaml:"index_ttl_sec"`
	FetchBudget      int   `yaml:"fetch_budget"`        // live-render fetches per regular rebuild
	FetchBudgetForce int   `yaml:"fetch_budget_forced"` // live-render fetches per forced rebuild
	RefreshSec       int   `yaml:"refresh_sec"`         // background rebuild interval
	FetchRatePerSec  int   `yaml:"fetch_rate_per_sec"`  // outbound page-fetch rate limit
	MaxSitemaps      int   `yaml:"max_sitemaps"`
	SitemapMaxURLs   int   `yaml:"sitemap_max_urls"`
	ToolRounds       int   `yaml:"tool_rounds"` // streaming tool-loop round budget
}

// ChatConfig holds the visitor-facing chat settings.
type ChatConfig struct {
	BotName            string `yaml:"bot_name"`
	SystemInstructions string `yaml:"system_instructions"`
	ContextPack        string `yaml:"context_pack"`
	FAQRaw             string `yaml:"faq_raw"`
	FormSuccessMessage string `yaml:"form_success_message"`
	FormOpenedMessage  string `yaml:"form_opened_message"`
	RateLimitHourly    int    `yaml:"rate_limit_hourly"`
	EnableImages       bool   `yaml:"enable_image_attachments"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// DefaultSystemInstructions is used when system_instructions is empty.
// {bot_name} is substituted at prompt-build time.
const DefaultSystemInstructions = `You are {bot_name}, the friendly and knowledgeable support assistant for our company. You are part of the team — always speak in the first person plural ("we", "our", "us") when referring to the company.

Guidelines:
- You proudly represent our company. Be warm, confident, and helpful.
- Answer questions using the provided context from our website content.
- Speak as a team member who genuinely cares about helping the visitor.
- If you don't have enough information, say so honestly and offer to connect them with our team.
- Be concise (2-6 sentences) unless the visitor asks for more detail.
- Use markdown for structure (lists, **bold**) when it helps readability.
- Never make up facts. Only use information from the provided context.
- Answer in the language the visitor writes in.`

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// Streaming turns hold the connection across tool rounds.
		c.HTTP.WriteTimeoutSec = 300
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "asksite:"
	}
	if c.Site.ContentAPIURL == "" && c.Site.BaseURL != "" {
		c.Site.ContentAPIURL = strings.TrimRight(c.Site.BaseURL, "/") + "/wp-json/wp/v2"
	}
	if len(c.Site.PostTypes) == 0 {
		c.Site.PostTypes = []string{"page", "post"}
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.OllamaEndpoint == "" {
		c.LLM.OllamaEndpoint = "http://localhost:11434"
	}
	if c.LLM.MaxOutputTokens <= 0 {
		c.LLM.MaxOutputTokens = 500
	}
	if c.LLM.Temperature <= 0 {
		c.LLM.Temperature = 0.7
	}
	if c.RAG.MaxResults <= 0 {
		c.RAG.MaxResults = 4
	}
	if c.RAG.MaxFAQ <= 0 {
		c.RAG.MaxFAQ = 2
	}
	if c.RAG.SnippetLength <= 0 {
		c.RAG.SnippetLength = 300
	}
	if c.RAG.IndexMaxDocs <= 0 {
		c.RAG.IndexMaxDocs = 40
	}
	if c.RAG.IndexTTLSec <= 0 {
		c.RAG.IndexTTLSec = 6 * 3600
	}
	if c.RAG.FetchBudget <= 0 {
		c.RAG.FetchBudget = 8
	}
	if c.RAG.FetchBudgetForce <= 0 {
		c.RAG.FetchBudgetForce = 14
	}
	if c.RAG.RefreshSec <= 0 {
		c.RAG.RefreshSec = 3600
	}
	if c.RAG.FetchRatePerSec <= 0 {
		c.RAG.FetchRatePerSec = 2
	}
	if c.RAG.MaxSitemaps <= 0 {
		c.RAG.MaxSitemaps = 8
	}
	if c.RAG.SitemapMaxURLs <= 0 {
		c.RAG.SitemapMaxURLs = 50
	}
	if c.RAG.ToolRounds <= 0 {
		c.RAG.ToolRounds = 4
	}
	if c.Chat.BotName == "" {
		c.Chat.BotName = "Chat Assistant"
	}
	if c.Chat.SystemInstructions == "" {
		c.Chat.SystemInstructions = DefaultSystemInstructions
	}
	if c.Chat.FormSuccessMessage == "" {
		c.Chat.FormSuccessMessage = "Thank you. Your submission has been sent."
	}
	if c.Chat.FormOpenedMessage == "" {
		c.Chat.FormOpenedMessage = "Please fill out the form. It will be sent directly to us."
	}
	if c.Chat.RateLimitHourly <= 0 {
		c.Chat.RateLimitHourly = 60
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	switch c.LLM.Provider {
	case "openai", "anthropic", "openrouter", "ollama":
		// ok
	default:
		return fmt.Errorf(
			"llm.provider must be one of openai, anthropic, openrouter, ollama, got %q",
			c.LLM.Provider,
		)
	}
	if c.RAG.ToolRounds > 6 {
		return fmt.Errorf("rag.tool_rounds must be at most 6, got %d", c.RAG.ToolRounds)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
