package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/BaSui01/crewstudio/llm"
	"go.uber.org/zap"
)

// WebScrapeProvider 定义网页抓取后端接口。
type WebScrapeProvider interface {
	// Scrape 从 URL 获取并提取内容。
	Scrape(ctx context.Context, url string, opts WebScrapeOptions) (*WebScrapeResult, error)
	Name() string
}

// WebScrapeOptions 配置单次抓取。
type WebScrapeOptions struct {
	Format           string   `json:"format"`                      // "markdown" 或 "text"
	IncludeLinks     bool     `json:"include_links,omitempty"`     // Include hyperlinks in output
	IncludeImages    bool     `json:"include_images,omitempty"`    // Include image descriptions
	MaxLength        int      `json:"max_length,omitempty"`        // Maximum content length in characters
	Selectors        []string `json:"selectors,omitempty"`         // CSS selectors to extract specific elements
	ExcludeSelectors []string `json:"exclude_selectors,omitempty"` // CSS selectors to exclude
}

// DefaultWebScrapeOptions 返回默认抓取选项。
func DefaultWebScrapeOptions() WebScrapeOptions {
	return WebScrapeOptions{
		Format:       "markdown",
		IncludeLinks: true,
		MaxLength:    20000,
	}
}

// WebScrapeResult 是从单个 URL 提取的内容。
type WebScrapeResult struct {
	URL         string         `json:"url"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	PublishedAt string         `json:"published_at,omitempty"`
	Content     string         `json:"content"`
	Format      string         `json:"format"`
	WordCount   int            `json:"word_count"`
	Truncated   bool           `json:"truncated,omitempty"`
	Links       []ScrapedLink  `json:"links,omitempty"`
	Images      []ScrapedImage `json:"images,omitempty"`
	ScrapedAt   time.Time      `json:"scraped_at"`
}

type ScrapedLink struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type ScrapedImage struct {
	Alt string `json:"alt"`
	URL string `json:"url"`
}

// WebScrapeToolConfig 配置网页抓取工具。
type WebScrapeToolConfig struct {
	Provider    WebScrapeProvider
	DefaultOpts WebScrapeOptions
	Timeout     time.Duration
	RateLimit   *RateLimitConfig
}

// DefaultWebScrapeToolConfig 返回默认配置。
func DefaultWebScrapeToolConfig() WebScrapeToolConfig {
	return WebScrapeToolConfig{
		DefaultOpts: DefaultWebScrapeOptions(),
		Timeout:     30 * time.Second,
		RateLimit: &RateLimitConfig{
			MaxCalls: 20,
			Window:   time.Minute,
		},
	}
}

type webScrapeArgs struct {
	URL           string   `json:"url"`
	Format        string   `json:"format,omitempty"`
	IncludeLinks  *bool    `json:"include_links,omitempty"`
	IncludeImages bool     `json:"include_images,omitempty"`
	MaxLength     int      `json:"max_length,omitempty"`
	Selectors     []string `json:"selectors,omitempty"`
}

const webScrapeSchema = `{
	"type": "object",
	"properties": {
		"url": {"type": "string", "description": "The http(s) URL of the page to read"},
		"format": {"type": "string", "enum": ["markdown", "text"], "description": "Output format (default: markdown)"},
		"include_links": {"type": "boolean", "description": "Include hyperlinks found on the page"},
		"include_images": {"type": "boolean", "description": "Include image alt texts and URLs"},
		"max_length": {"type": "integer", "description": "Maximum content length in characters"},
		"selectors": {"type": "array", "items": {"type": "string"}, "description": "CSS selectors limiting extraction to specific elements"}
	},
	"required": ["url"]
}`

// NewWebScrapeTool 创建网页抓取工具。
func NewWebScrapeTool(config WebScrapeToolConfig, logger *zap.Logger) (ToolFunc, ToolMetadata) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("tool", WebScrapeToolName))

	fn := func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var params webScrapeArgs
		if err := json.Unmarshal(args, &params); err != nil {
			return nil, fmt.Errorf("invalid web_scrape arguments: %w", err)
		}
		if params.URL == "" {
			return nil, fmt.Errorf("url is required")
		}
		u, err := url.Parse(params.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("url must be an absolute http(s) URL: %q", params.URL)
		}
		if config.Provider == nil {
			return nil, fmt.Errorf("web scrape provider not configured")
		}

		opts := config.DefaultOpts
		if params.Format != "" {
			opts.Format = params.Format
		}
		if params.IncludeLinks != nil {
			opts.IncludeLinks = *params.IncludeLinks
		}
		if params.IncludeImages {
			opts.IncludeImages = true
		}
		if params.MaxLength > 0 && (opts.MaxLength == 0 || params.MaxLength < opts.MaxLength) {
			opts.MaxLength = params.MaxLength
		}
		if len(params.Selectors) > 0 {
			opts.Selectors = params.Selectors
		}

		start := time.Now()
		result, err := config.Provider.Scrape(ctx, u.String(), opts)
		if err != nil {
			logger.Warn("web scrape failed", zap.String("url", params.URL), zap.Error(err))
			return nil, fmt.Errorf("web scrape failed: %w", err)
		}
		logger.Info("web scrape completed",
			zap.String("url", params.URL),
			zap.Int("word_count", result.WordCount),
			zap.Duration("duration", time.Since(start)))

		return json.Marshal(result)
	}

	metadata := ToolMetadata{
		Schema: llm.ToolSchema{
			Name:        WebScrapeToolName,
			Description: "Fetch a web page and extract its readable content, title, publication date and links.",
			Parameters:  json.RawMessage(webScrapeSchema),
		},
		Timeout:     config.Timeout,
		RateLimit:   config.RateLimit,
		Description: "Web scrape tool that reads a single page through a configurable scraping backend.",
	}
	return fn, metadata
}

// RegisterWebScrapeTool 创建并注册网页抓取工具。
func RegisterWebScrapeTool(registry ToolRegistry, config WebScrapeToolConfig, logger *zap.Logger) error {
	fn, metadata := NewWebScrapeTool(config, logger)
	return registry.Register(WebScrapeToolName, fn, metadata)
}
