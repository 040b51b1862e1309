package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- mock WebSearchProvider ---

type mockWebSearchProvider struct {
	results  []WebSearchResult
	err      error
	lastOpts WebSearchOptions
	lastQ    string
}

func (m *mockWebSearchProvider) Search(_ context.Context, q string, opts WebSearchOptions) ([]WebSearchResult, error) {
	m.lastQ = q
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

func (m *mockWebSearchProvider) Name() string { return "mock" }

func TestNewWebSearchTool_Metadata(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		config      WebSearchToolConfig
		wantTimeout time.Duration
	}{
		{name: "default config", config: DefaultWebSearchToolConfig(), wantTimeout: 15 * time.Second},
		{name: "custom timeout", config: WebSearchToolConfig{Timeout: time.Minute}, wantTimeout: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fn, meta := NewWebSearchTool(tt.config, zap.NewNop())
			require.NotNil(t, fn)
			assert.Equal(t, WebSearchToolName, meta.Schema.Name)
			assert.Equal(t, tt.wantTimeout, meta.Timeout)
			assert.True(t, json.Valid(meta.Schema.Parameters))
		})
	}
}

func TestWebSearchTool_Execute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider *mockWebSearchProvider
		args     string
		wantErr  string
		wantN    int
	}{
		{
			name: "success truncates to max_results",
			provider: &mockWebSearchProvider{results: []WebSearchResult{
				{Title: "a", URL: "https://a.example"},
				{Title: "b", URL: "https://b.example"},
				{Title: "c", URL: "https://c.example"},
			}},
			args:  `{"query":"AI trends 2026","max_results":2}`,
			wantN: 2,
		},
		{name: "missing query", provider: &mockWebSearchProvider{}, args: `{}`, wantErr: "query is required"},
		{name: "invalid json", provider: &mockWebSearchProvider{}, args: `{`, wantErr: "invalid web_search arguments"},
		{
			name:     "provider error",
			provider: &mockWebSearchProvider{err: fmt.Errorf("boom")},
			args:     `{"query":"x"}`,
			wantErr:  "web search failed: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultWebSearchToolConfig()
			cfg.Provider = tt.provider
			fn, _ := NewWebSearchTool(cfg, nil)

			out, err := fn(context.Background(), json.RawMessage(tt.args))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)

			var resp webSearchResponse
			require.NoError(t, json.Unmarshal(out, &resp))
			assert.Equal(t, tt.wantN, resp.TotalCount)
			assert.Len(t, resp.Results, tt.wantN)
		})
	}
}

func TestWebSearchTool_ArgsOverrideDefaults(t *testing.T) {
	t.Parallel()

	mock := &mockWebSearchProvider{}
	cfg := DefaultWebSearchToolConfig()
	cfg.Provider = mock
	fn, _ := NewWebSearchTool(cfg, nil)

	_, err := fn(context.Background(), json.RawMessage(`{"query":"go","language":"zh","region":"cn","time_range":"week"}`))
	require.NoError(t, err)
	assert.Equal(t, "go", mock.lastQ)
	assert.Equal(t, "zh", mock.lastOpts.Language)
	assert.Equal(t, "cn", mock.lastOpts.Region)
	assert.Equal(t, "week", mock.lastOpts.TimeRange)
	assert.Equal(t, 10, mock.lastOpts.MaxResults)
}

func TestWebSearchTool_NoProvider(t *testing.T) {
	t.Parallel()
	fn, _ := NewWebSearchTool(DefaultWebSearchToolConfig(), nil)
	_, err := fn(context.Background(), json.RawMessage(`{"query":"x"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestRegisterWebSearchTool(t *testing.T) {
	t.Parallel()
	reg := NewDefaultRegistry(zap.NewNop())
	require.NoError(t, RegisterWebSearchTool(reg, DefaultWebSearchToolConfig(), nil))
	assert.True(t, reg.Has(WebSearchToolName))
	assert.Error(t, RegisterWebSearchTool(reg, DefaultWebSearchToolConfig(), nil))
}
