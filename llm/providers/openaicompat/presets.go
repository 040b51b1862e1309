package openaicompat

import (
	"net/http"

	"github.com/BaSui01/crewstudio/llm/providers"
	"go.uber.org/zap"
)

// 各 OpenAI 兼容服务的默认地址
const (
	OpenAIBaseURL = "https://api.openai.com"
	GroqBaseURL   = "https://api.groq.com/openai"
	ZhipuBaseURL  = "https://open.bigmodel.cn"
	OllamaBaseURL = "http://localhost:11434"
)

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func fromBase(name string, cfg providers.BaseProviderConfig, baseURL string, client *http.Client) Config {
	return Config{
		ProviderName: name,
		APIKey:       cfg.APIKey,
		BaseURL:      orDefault(cfg.BaseURL, baseURL),
		DefaultModel: cfg.Model,
		Timeout:      cfg.Timeout,
		HTTPClient:   client,
	}
}

// NewOpenAI returns a provider for api.openai.com.
func NewOpenAI(cfg providers.BaseProviderConfig, client *http.Client, logger *zap.Logger) *Provider {
	c := fromBase("openai", cfg, OpenAIBaseURL, client)
	c.FallbackModel = "gpt-4o-mini"
	return New(c, logger)
}

// NewGroq returns a provider for GROQ's OpenAI-compatible endpoint.
func NewGroq(cfg providers.BaseProviderConfig, client *http.Client, logger *zap.Logger) *Provider {
	c := fromBase("groq", cfg, GroqBaseURL, client)
	c.FallbackModel = "llama-3.3-70b-versatile"
	return New(c, logger)
}

// NewZhipu returns a provider for Zhipu AI (GLM). 智谱使用 /api/paas/v4 前缀。
func NewZhipu(cfg providers.BaseProviderConfig, client *http.Client, logger *zap.Logger) *Provider {
	c := fromBase("zhipu", cfg, ZhipuBaseURL, client)
	c.FallbackModel = "glm-4-flash"
	c.EndpointPath = "/api/paas/v4/chat/completions"
	c.ModelsEndpoint = "/api/paas/v4/models"
	return New(c, logger)
}

// NewOllama returns a provider for a local Ollama daemon. No auth header is sent.
func NewOllama(cfg providers.BaseProviderConfig, client *http.Client, logger *zap.Logger) *Provider {
	c := fromBase("ollama", cfg, OllamaBaseURL, client)
	c.APIKey = ""
	c.BuildHeaders = func(r *http.Request, _ string) {
		providers.BearerTokenHeaders(r, "")
	}
	return New(c, logger)
}
