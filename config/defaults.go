// =============================================================================
// 📦 crewstudio 默认配置
// =============================================================================
package config

import (
	"time"

	"github.com/BaSui01/crewstudio/llm/providers/anthropic"
	"github.com/BaSui01/crewstudio/llm/providers/openaicompat"
	"github.com/BaSui01/crewstudio/llm/tools"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Session:   DefaultSessionConfig(),
		Crew:      DefaultCrewConfig(),
		Providers: DefaultProvidersConfig(),
		Search:    DefaultSearchConfig(),
		Selection: DefaultSelection(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    35 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// DefaultSessionConfig 返回默认会话配置
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxSessions: 1000,
		TTL:         2 * time.Hour,
		Issuer:      "crewstudio",
	}
}

// DefaultCrewConfig 返回默认研究运行配置
func DefaultCrewConfig() CrewConfig {
	return CrewConfig{
		OutputDir:     "output",
		ReportFile:    "research_report.md",
		MaxIterations: 10,
		RunTimeout:    30 * time.Minute,
	}
}

// DefaultProvidersConfig 返回默认 Provider 端点
func DefaultProvidersConfig() ProvidersConfig {
	return ProvidersConfig{
		OpenAIBaseURL:     openaicompat.OpenAIBaseURL,
		AnthropicBaseURL:  anthropic.DefaultBaseURL,
		GroqBaseURL:       openaicompat.GroqBaseURL,
		ZhipuBaseURL:      openaicompat.ZhipuBaseURL,
		OllamaBaseURL:     openaicompat.OllamaBaseURL,
		Timeout:           120 * time.Second,
		// 运行失败直接上报，不自动重试；需要时通过 providers.max_retries 开启
		MaxRetries:        0,
		OpenAIListTimeout: 5 * time.Second,
		OllamaListTimeout: 2 * time.Second,
	}
}

// DefaultSearchConfig 返回默认搜索配置
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		SerperURL:       tools.DefaultSerperURL,
		Timeout:         15 * time.Second,
		MaxResults:      10,
		CallsPerMinute:  30,
		ScrapeTimeout:   30 * time.Second,
		ScrapeMaxLength: 20000,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     false,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "crewstudio",
		SampleRate:   0.1,
	}
}
