package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSerperProvider_Search(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))

		var body serperRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "AI trends 2026", body.Query)
		assert.Equal(t, 5, body.Num)
		assert.Equal(t, "qdr:m", body.TBS)
		assert.Equal(t, "us", body.Country)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"organic":[
			{"title":"Trend report","link":"https://example.com/report","snippet":"s1","date":"Jan 5, 2026","position":1},
			{"title":"no link","link":"","snippet":"skip","position":2},
			{"title":"Second","link":"https://example.org/2","snippet":"s2","position":3}
		]}`))
	}))
	defer srv.Close()

	p := NewSerperProvider(SerperConfig{APIKey: "test-key", BaseURL: srv.URL}, srv.Client(), zap.NewNop())
	results, err := p.Search(context.Background(), "AI trends 2026", WebSearchOptions{MaxResults: 5, Region: "US", TimeRange: "month"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Trend report", results[0].Title)
	assert.Equal(t, "https://example.com/report", results[0].URL)
	assert.Equal(t, "Jan 5, 2026", results[0].PublishedAt)
	assert.Equal(t, 3, results[1].Position)
}

func TestSerperProvider_MissingKey(t *testing.T) {
	t.Parallel()

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	p := NewSerperProvider(SerperConfig{BaseURL: srv.URL}, srv.Client(), nil)
	_, err := p.Search(context.Background(), "q", DefaultWebSearchOptions())
	require.ErrorIs(t, err, ErrSearchKeyMissing)
	assert.False(t, called)
}

func TestSerperProvider_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Unauthorized."}`))
	}))
	defer srv.Close()

	p := NewSerperProvider(SerperConfig{APIKey: "bad", BaseURL: srv.URL}, srv.Client(), nil)
	_, err := p.Search(context.Background(), "q", DefaultWebSearchOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
	assert.Contains(t, err.Error(), "Unauthorized.")
}

// 缺少搜索密钥时，执行器返回错误结果而不是中断
func TestSerperProvider_MissingKeySurfacesAsToolError(t *testing.T) {
	t.Parallel()

	reg := NewDefaultRegistry(nil)
	cfg := DefaultWebSearchToolConfig()
	cfg.Provider = NewSerperProvider(SerperConfig{}, nil, nil)
	require.NoError(t, RegisterWebSearchTool(reg, cfg, nil))

	exec := NewDefaultExecutor(reg, nil)
	res := exec.ExecuteOne(context.Background(), toolCall("c1", WebSearchToolName, `{"query":"x"}`))
	assert.Contains(t, res.Error, "SERPER_API_KEY")
	assert.Contains(t, res.ToMessage().Content, "Error:")
}
