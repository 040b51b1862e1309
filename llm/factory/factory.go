package factory

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/crewstudio/internal/tlsutil"
	"github.com/BaSui01/crewstudio/llm"
	"github.com/BaSui01/crewstudio/llm/catalog"
	"github.com/BaSui01/crewstudio/llm/credentials"
	"github.com/BaSui01/crewstudio/llm/providers"
	"github.com/BaSui01/crewstudio/llm/providers/anthropic"
	"github.com/BaSui01/crewstudio/llm/providers/openaicompat"
	"go.uber.org/zap"
)

// 温度策略：协调者更确定，执行者更发散
const (
	ManagerTemperature = 0.3
	WorkerTemperature  = 0.7
	AnthropicMaxTokens = anthropic.DefaultMaxTokens
)

// ErrModelRequired is returned when no model identifier was selected.
var ErrModelRequired = errors.New("model is required")

// UnsupportedProviderError 表示 Provider 名称不在受支持集合中，属于配置错误。
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported provider: %s", e.Provider)
}

// Config 覆盖各 Provider 的地址与超时。零值使用默认地址。
type Config struct {
	OpenAIBaseURL    string
	AnthropicBaseURL string
	GroqBaseURL      string
	ZhipuBaseURL     string
	OllamaBaseURL    string
	Timeout          time.Duration
	// Retry 为 nil 或 MaxRetries 为 0 时不包装重试
	Retry *providers.RetryConfig
	// Recorder 非空时为每个客户端记录请求指标
	Recorder providers.Recorder
	// HTTPClient 供测试注入
	HTTPClient *http.Client
}

// Factory 为 (provider, model, role) 构建新的 Handle，构建过程不发起网络请求。
type Factory struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New 创建 Factory。
func New(cfg Config, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = tlsutil.WithUserAgent(tlsutil.SecureHTTPClient(cfg.Timeout), "")
	}
	return &Factory{cfg: cfg, client: client, logger: logger.With(zap.String("component", "model_factory"))}
}

// Build 解析 Provider 名称后构建 Handle。
func (f *Factory) Build(provider, model string, role credentials.Role, creds *credentials.Store) (*Handle, error) {
	kind, err := catalog.ParseKind(provider)
	if err != nil {
		return nil, &UnsupportedProviderError{Provider: provider}
	}
	return f.BuildKind(kind, model, role, creds)
}

// BuildKind 按 Provider 规则构建 Handle。每次调用都创建新的客户端，不在 Agent 之间共享。
func (f *Factory) BuildKind(kind catalog.Kind, model string, role credentials.Role, creds *credentials.Store) (*Handle, error) {
	model = strings.TrimSpace(model)
	desc, ok := catalog.Lookup(kind)
	if !ok {
		return nil, &UnsupportedProviderError{Provider: kind.String()}
	}
	if model == "" {
		return nil, fmt.Errorf("%s: %w", desc.DisplayName, ErrModelRequired)
	}
	if creds == nil {
		creds = credentials.NewStore()
	}

	h := &Handle{
		Provider:         kind,
		Model:            model,
		RoutedModel:      desc.RoutingPrefix + "/" + model,
		Role:             role,
		Temperature:      WorkerTemperature,
		CredentialSource: credentials.SourceMissing,
	}
	if desc.RequiresAPIKey {
		h.APIKey, h.CredentialSource = creds.Resolve(kind, role)
	}

	base := providers.BaseProviderConfig{APIKey: h.APIKey, Model: model, Timeout: f.cfg.Timeout}
	var client llm.Provider
	switch kind {
	case catalog.KindOpenAI:
		h.Temperature = roleTemperature(role)
		h.BaseURL = orDefault(f.cfg.OpenAIBaseURL, openaicompat.OpenAIBaseURL)
		base.BaseURL = h.BaseURL
		client = openaicompat.NewOpenAI(base, f.client, f.logger)
	case catalog.KindAnthropic:
		h.Temperature = roleTemperature(role)
		h.MaxTokens = AnthropicMaxTokens
		h.BaseURL = orDefault(f.cfg.AnthropicBaseURL, anthropic.DefaultBaseURL)
		base.BaseURL = h.BaseURL
		client = anthropic.New(providers.AnthropicConfig{BaseProviderConfig: base, MaxTokens: AnthropicMaxTokens}, f.client, f.logger)
	case catalog.KindGroq:
		h.BaseURL = orDefault(f.cfg.GroqBaseURL, openaicompat.GroqBaseURL)
		base.BaseURL = h.BaseURL
		client = openaicompat.NewGroq(base, f.client, f.logger)
	case catalog.KindZhipu:
		h.BaseURL = orDefault(f.cfg.ZhipuBaseURL, openaicompat.ZhipuBaseURL)
		base.BaseURL = h.BaseURL
		client = openaicompat.NewZhipu(base, f.client, f.logger)
	case catalog.KindOllama:
		h.BaseURL = orDefault(f.cfg.OllamaBaseURL, openaicompat.OllamaBaseURL)
		base.BaseURL = h.BaseURL
		client = openaicompat.NewOllama(base, f.client, f.logger)
	default:
		return nil, &UnsupportedProviderError{Provider: kind.String()}
	}

	if r := f.cfg.Retry; r != nil && r.MaxRetries > 0 {
		client = providers.NewRetryableProvider(client, *r, f.logger)
	}
	if f.cfg.Recorder != nil {
		client = providers.NewInstrumentedProvider(client, model, f.cfg.Recorder)
	}
	h.Client = client

	f.logger.Debug("model handle built",
		zap.String("provider", kind.String()),
		zap.String("model", h.RoutedModel),
		zap.String("role", string(role)),
		zap.String("credential", string(h.CredentialSource)))
	return h, nil
}

func roleTemperature(role credentials.Role) float32 {
	if role == credentials.RoleManager {
		return ManagerTemperature
	}
	return WorkerTemperature
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
