// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

// --- 默认配置测试 ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
	assert.Equal(t, 1000, cfg.Session.MaxSessions)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "output/research_report.md", cfg.Crew.ReportPath())
	assert.Equal(t, 10, cfg.Crew.MaxIterations)
	assert.Equal(t, "https://api.groq.com/openai", cfg.Providers.GroqBaseURL)
	assert.Equal(t, "https://open.bigmodel.cn", cfg.Providers.ZhipuBaseURL)
	assert.Equal(t, "http://localhost:11434", cfg.Providers.OllamaBaseURL)
	assert.Equal(t, 5*time.Second, cfg.Providers.OpenAIListTimeout)
	assert.Equal(t, 2*time.Second, cfg.Providers.OllamaListTimeout)
	assert.Zero(t, cfg.Providers.MaxRetries, "provider retries are opt-in")
	assert.Equal(t, "https://google.serper.dev/search", cfg.Search.SerperURL)
	assert.Equal(t, "OpenAI", cfg.Selection.ManagerProvider)
	assert.False(t, cfg.Selection.UseHierarchical)
	assert.False(t, cfg.Telemetry.Enabled)
	require.NoError(t, cfg.Validate())
}

// --- Loader 测试 ---

func TestLoader_LoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crewstudio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  http_port: 9000
crew:
  max_iterations: 5
  output_dir: reports
selection:
  provider: GROQ
  model: llama-3.3-70b-versatile
log:
  level: debug
  format: json
`), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).WithLookupEnv(envMap(nil)).Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, 5, cfg.Crew.MaxIterations)
	assert.Equal(t, "reports/research_report.md", cfg.Crew.ReportPath())
	assert.Equal(t, "GROQ", cfg.Selection.ManagerProvider)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.Selection.ManagerModel)
	assert.Equal(t, "debug", cfg.Log.Level)
	// 未出现的字段保留默认值
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).WithLookupEnv(envMap(map[string]string{
		"CREWSTUDIO_LOG_LEVEL":                    "error",
		"CREWSTUDIO_SERVER_ALLOWED_ORIGINS":       "a.example, b.example",
		"CREWSTUDIO_SESSION_TTL":                  "30m",
		"CREWSTUDIO_PROVIDERS_OLLAMA_BASE_URL":    "http://gpu-box:11434",
		"CREWSTUDIO_TELEMETRY_ENABLED":            "true",
		"CREWSTUDIO_SERVER_RATE_LIMIT_RPS":        "2.5",
		"CREWSTUDIO_SEARCH_SCRAPE_MAX_LENGTH":     "500",
		"CREWSTUDIO_PROVIDERS_OPENAI_LIST_TIMEOUT": "",
	})).Load()
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, []string{"a.example", "b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, "http://gpu-box:11434", cfg.Providers.OllamaBaseURL)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 2.5, cfg.Server.RateLimitRPS)
	assert.Equal(t, 500, cfg.Search.ScrapeMaxLength)
	assert.Equal(t, 5*time.Second, cfg.Providers.OpenAIListTimeout)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	cfg, err := NewLoader().WithEnvPrefix("CS").WithLookupEnv(envMap(map[string]string{
		"CS_SERVER_HTTP_PORT":         "7070",
		"CREWSTUDIO_SERVER_HTTP_PORT": "1",
	})).Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.HTTPPort)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	_, err := NewLoader().WithLookupEnv(envMap(map[string]string{"CREWSTUDIO_SESSION_TTL": "forever"})).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CREWSTUDIO_SESSION_TTL")
}

func TestLoader_WithValidator(t *testing.T) {
	_, err := NewLoader().
		WithLookupEnv(envMap(map[string]string{"CREWSTUDIO_CREW_MAX_ITERATIONS": "50"})).
		WithValidator((*Config).Validate).
		Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_iterations")
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/crewstudio.yaml").WithLookupEnv(envMap(nil)).Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))
	_, err := NewLoader().WithConfigPath(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.HTTPPort = 0 }, wantErr: "invalid HTTP port"},
		{name: "bad ttl", mutate: func(c *Config) { c.Session.TTL = 0 }, wantErr: "session.ttl"},
		{name: "iterations too high", mutate: func(c *Config) { c.Crew.MaxIterations = 21 }, wantErr: "max_iterations"},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
		{name: "bad sample rate", mutate: func(c *Config) { c.Telemetry.SampleRate = 2 }, wantErr: "sample_rate"},
		{name: "unknown provider", mutate: func(c *Config) { c.Selection.ManagerProvider = "Mistral" }, wantErr: "manager_provider"},
		{name: "empty selection allowed", mutate: func(c *Config) { c.Selection = Selection{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_ValidatesByDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  max_sessions: -1\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}
