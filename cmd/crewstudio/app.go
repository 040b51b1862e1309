package main

import (
	"os"

	"go.uber.org/zap"

	"github.com/BaSui01/crewstudio/agent/research"
	"github.com/BaSui01/crewstudio/config"
	"github.com/BaSui01/crewstudio/internal/metrics"
	"github.com/BaSui01/crewstudio/internal/tlsutil"
	"github.com/BaSui01/crewstudio/llm/catalog"
	"github.com/BaSui01/crewstudio/llm/credentials"
	"github.com/BaSui01/crewstudio/llm/factory"
	"github.com/BaSui01/crewstudio/llm/providers"
)

// =============================================================================
// 🧩 组件装配
// =============================================================================

// app 持有 CLI 与 HTTP 服务共用的组件
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	collector *metrics.Collector
	catalog   *catalog.Catalog
	models    *factory.Factory
	runner    *research.Runner
	// seed 是进程启动时从环境变量读取的凭据，会话与 CLI 运行只使用它的克隆
	seed *credentials.Store
}

func newApp(cfg *config.Config, logger *zap.Logger) *app {
	collector := metrics.NewCollector("crewstudio", logger)
	client := tlsutil.WithUserAgent(tlsutil.SecureHTTPClient(cfg.Providers.Timeout), "crewstudio/"+Version)

	cat := catalog.New(logger,
		catalog.WithHTTPClient(client),
		catalog.WithOpenAIBaseURL(cfg.Providers.OpenAIBaseURL),
		catalog.WithOllamaBaseURL(cfg.Providers.OllamaBaseURL),
		catalog.WithTimeouts(cfg.Providers.OpenAIListTimeout, cfg.Providers.OllamaListTimeout),
		catalog.WithRecorder(collector),
	)

	var retry *providers.RetryConfig
	if cfg.Providers.MaxRetries > 0 {
		rc := providers.DefaultRetryConfig()
		rc.MaxRetries = cfg.Providers.MaxRetries
		retry = &rc
	}
	models := factory.New(factory.Config{
		OpenAIBaseURL:    cfg.Providers.OpenAIBaseURL,
		AnthropicBaseURL: cfg.Providers.AnthropicBaseURL,
		GroqBaseURL:      cfg.Providers.GroqBaseURL,
		ZhipuBaseURL:     cfg.Providers.ZhipuBaseURL,
		OllamaBaseURL:    cfg.Providers.OllamaBaseURL,
		Timeout:          cfg.Providers.Timeout,
		Retry:            retry,
		Recorder:         collector,
		HTTPClient:       client,
	}, logger)

	runner := research.NewRunner(research.RunnerConfig{
		Crew:         cfg.Crew,
		Search:       cfg.Search,
		HTTPClient:   tlsutil.WithUserAgent(tlsutil.SecureHTTPClient(cfg.Search.ScrapeTimeout), "crewstudio/"+Version),
		Recorder:     collector,
		ToolRecorder: collector,
	}, logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		collector: collector,
		catalog:   cat,
		models:    models,
		runner:    runner,
		seed:      credentials.FromEnv(os.LookupEnv),
	}
}
