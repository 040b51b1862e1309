package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BaSui01/crewstudio/llm"
	"go.uber.org/zap"
)

// 工具名称，与 AgentSpec 中的工具引用一致。
const (
	WebSearchToolName = "web_search"
	WebScrapeToolName = "web_scrape"
)

// WebSearchProvider defines the interface for web search backends.
type WebSearchProvider interface {
	// Search performs a web search and returns results.
	Search(ctx context.Context, query string, opts WebSearchOptions) ([]WebSearchResult, error)
	// Name returns the provider name.
	Name() string
}

// WebSearchOptions configures a web search request.
type WebSearchOptions struct {
	MaxResults int    `json:"max_results"`          // Maximum number of results (default: 10)
	Language   string `json:"language,omitempty"`   // Language code (e.g., "en", "zh")
	Region     string `json:"region,omitempty"`     // Region code (e.g., "us", "cn")
	TimeRange  string `json:"time_range,omitempty"` // Time range: "day", "week", "month", "year"
}

// DefaultWebSearchOptions returns sensible defaults.
func DefaultWebSearchOptions() WebSearchOptions {
	return WebSearchOptions{
		MaxResults: 10,
		Language:   "en",
	}
}

// WebSearchResult represents a single search result.
type WebSearchResult struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Snippet     string  `json:"snippet"`
	PublishedAt string  `json:"published_at,omitempty"` // Publication date
	Position    int     `json:"position,omitempty"`
	Score       float64 `json:"score,omitempty"`
}

// WebSearchToolConfig configures the web search tool.
type WebSearchToolConfig struct {
	Provider    WebSearchProvider // Search backend provider
	DefaultOpts WebSearchOptions  // Default search options
	Timeout     time.Duration     // Per-search timeout
	RateLimit   *RateLimitConfig  // Rate limiting
}

// DefaultWebSearchToolConfig returns sensible defaults.
func DefaultWebSearchToolConfig() WebSearchToolConfig {
	return WebSearchToolConfig{
		DefaultOpts: DefaultWebSearchOptions(),
		Timeout:     15 * time.Second,
		RateLimit: &RateLimitConfig{
			MaxCalls: 30,
			Window:   time.Minute,
		},
	}
}

type webSearchArgs struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
	Language   string `json:"language,omitempty"`
	Region     string `json:"region,omitempty"`
	TimeRange  string `json:"time_range,omitempty"`
}

type webSearchResponse struct {
	Query      string            `json:"query"`
	Results    []WebSearchResult `json:"results"`
	TotalCount int               `json:"total_count"`
	Duration   string            `json:"duration"`
}

const webSearchSchema = `{
	"type": "object",
	"properties": {
		"query": {"type": "string", "description": "The search query"},
		"max_results": {"type": "integer", "description": "Maximum number of results to return (default: 10)", "default": 10},
		"language": {"type": "string", "description": "Language code for results (e.g., 'en', 'zh')"},
		"region": {"type": "string", "description": "Region code for results (e.g., 'us', 'cn')"},
		"time_range": {"type": "string", "enum": ["day", "week", "month", "year"], "description": "Filter results by time range"}
	},
	"required": ["query"]
}`

// NewWebSearchTool creates a ToolFunc for web searching.
func NewWebSearchTool(config WebSearchToolConfig, logger *zap.Logger) (ToolFunc, ToolMetadata) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("tool", WebSearchToolName))

	fn := func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var params webSearchArgs
		if err := json.Unmarshal(args, &params); err != nil {
			return nil, fmt.Errorf("invalid web_search arguments: %w", err)
		}
		if params.Query == "" {
			return nil, fmt.Errorf("query is required")
		}
		if config.Provider == nil {
			return nil, fmt.Errorf("web search provider not configured")
		}

		opts := config.DefaultOpts
		if params.MaxResults > 0 {
			opts.MaxResults = params.MaxResults
		}
		if params.Language != "" {
			opts.Language = params.Language
		}
		if params.Region != "" {
			opts.Region = params.Region
		}
		if params.TimeRange != "" {
			opts.TimeRange = params.TimeRange
		}

		start := time.Now()
		logger.Info("executing web search", zap.String("query", params.Query), zap.Int("max_results", opts.MaxResults))

		results, err := config.Provider.Search(ctx, params.Query, opts)
		if err != nil {
			logger.Warn("web search failed", zap.String("query", params.Query), zap.Error(err))
			return nil, fmt.Errorf("web search failed: %w", err)
		}
		if opts.MaxResults > 0 && len(results) > opts.MaxResults {
			results = results[:opts.MaxResults]
		}

		logger.Info("web search completed",
			zap.String("query", params.Query),
			zap.Int("results", len(results)),
			zap.Duration("duration", time.Since(start)))

		return json.Marshal(webSearchResponse{
			Query:      params.Query,
			Results:    results,
			TotalCount: len(results),
			Duration:   time.Since(start).String(),
		})
	}

	metadata := ToolMetadata{
		Schema: llm.ToolSchema{
			Name:        WebSearchToolName,
			Description: "Search the web for information. Returns a list of relevant results with titles, URLs, snippets and publication dates.",
			Parameters:  json.RawMessage(webSearchSchema),
		},
		Timeout:     config.Timeout,
		RateLimit:   config.RateLimit,
		Description: "Web search tool backed by a configurable search provider.",
	}
	return fn, metadata
}

// RegisterWebSearchTool creates and registers the web search tool.
func RegisterWebSearchTool(registry ToolRegistry, config WebSearchToolConfig, logger *zap.Logger) error {
	fn, metadata := NewWebSearchTool(config, logger)
	return registry.Register(WebSearchToolName, fn, metadata)
}
