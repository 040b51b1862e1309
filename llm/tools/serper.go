package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/crewstudio/internal/tlsutil"
	"go.uber.org/zap"
)

// DefaultSerperURL 是 Serper Google 搜索接口。
const DefaultSerperURL = "https://google.serper.dev/search"

// ErrSearchKeyMissing 在未配置 SERPER_API_KEY 时由 Search 返回。
var ErrSearchKeyMissing = errors.New("search API key is not configured (set SERPER_API_KEY)")

// SerperConfig configures a SerperProvider.
type SerperConfig struct {
	APIKey  string        `json:"-" yaml:"-"`
	BaseURL string        `json:"base_url,omitempty" yaml:"base_url"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout"`
}

// SerperProvider implements WebSearchProvider over the Serper API.
type SerperProvider struct {
	cfg    SerperConfig
	client *http.Client
	logger *zap.Logger
}

// NewSerperProvider creates a Serper-backed search provider. A nil client uses
// a secure default client with cfg.Timeout.
func NewSerperProvider(cfg SerperConfig, client *http.Client, logger *zap.Logger) *SerperProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSerperURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if client == nil {
		client = tlsutil.SecureHTTPClient(cfg.Timeout)
	}
	return &SerperProvider{
		cfg:    cfg,
		client: client,
		logger: logger.With(zap.String("component", "serper")),
	}
}

func (p *SerperProvider) Name() string { return "serper" }

type serperRequest struct {
	Query    string `json:"q"`
	Num      int    `json:"num,omitempty"`
	Country  string `json:"gl,omitempty"`
	Language string `json:"hl,omitempty"`
	TBS      string `json:"tbs,omitempty"`
}

type serperResponse struct {
	Organic []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Date     string `json:"date"`
		Position int    `json:"position"`
	} `json:"organic"`
	Message string `json:"message"`
}

var serperTimeRanges = map[string]string{
	"day":   "qdr:d",
	"week":  "qdr:w",
	"month": "qdr:m",
	"year":  "qdr:y",
}

// Search 调用 Serper 并将 organic 结果映射为 WebSearchResult。
func (p *SerperProvider) Search(ctx context.Context, query string, opts WebSearchOptions) ([]WebSearchResult, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, ErrSearchKeyMissing
	}

	body, err := json.Marshal(serperRequest{
		Query:    query,
		Num:      opts.MaxResults,
		Country:  strings.ToLower(opts.Region),
		Language: opts.Language,
		TBS:      serperTimeRanges[opts.TimeRange],
	})
	if err != nil {
		return nil, fmt.Errorf("marshal serper request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create serper request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("read serper response: %w", err)
	}

	var parsed serperResponse
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &parsed) == nil && parsed.Message != "" {
			msg = parsed.Message
		}
		p.logger.Warn("serper returned error", zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("serper status %d: %s", resp.StatusCode, msg)
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode serper response: %w", err)
	}

	results := make([]WebSearchResult, 0, len(parsed.Organic))
	for _, o := range parsed.Organic {
		if o.Link == "" {
			continue
		}
		results = append(results, WebSearchResult{
			Title:       o.Title,
			URL:         o.Link,
			Snippet:     o.Snippet,
			PublishedAt: o.Date,
			Position:    o.Position,
		})
	}
	return results, nil
}
