package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BaSui01/crewstudio/internal/tlsutil"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	maxScrapeBody  = 5 << 20
	maxScrapeLinks = 50
	truncateMarker = "\n\n[Content truncated...]"
)

// 噪声元素，抽取前整体移除
const noiseSelector = "script, style, noscript, nav, footer, header, aside, iframe, svg, form"

const blockSelector = "h1, h2, h3, h4, h5, h6, p, li, blockquote, pre"

// HTTPScraper implements WebScrapeProvider with net/http and goquery.
type HTTPScraper struct {
	client *http.Client
	logger *zap.Logger
}

// NewHTTPScraper 创建 goquery 抓取器。client 为空时使用带 UA 的安全客户端。
func NewHTTPScraper(client *http.Client, logger *zap.Logger) *HTTPScraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = tlsutil.WithUserAgent(tlsutil.SecureHTTPClient(30*time.Second), "")
	}
	return &HTTPScraper{client: client, logger: logger.With(zap.String("component", "scraper"))}
}

func (s *HTTPScraper) Name() string { return "goquery" }

// Scrape 获取页面并抽取可读内容。
func (s *HTTPScraper) Scrape(ctx context.Context, rawURL string, opts WebScrapeOptions) (*WebScrapeResult, error) {
	base, err := url.Parse(rawURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("unsupported url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL
	}

	body := io.LimitReader(resp.Body, maxScrapeBody)
	result := &WebScrapeResult{
		URL:       base.String(),
		Format:    opts.Format,
		ScrapedAt: time.Now().UTC(),
	}
	if result.Format == "" {
		result.Format = "markdown"
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if ct != "" && !strings.Contains(ct, "html") {
		if !strings.HasPrefix(ct, "text/") && !strings.Contains(ct, "json") && !strings.Contains(ct, "xml") {
			return nil, fmt.Errorf("unsupported content type %q", ct)
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		s.finish(result, strings.TrimSpace(string(raw)), opts.MaxLength)
		return result, nil
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	result.Title = strings.TrimSpace(doc.Find("title").First().Text())
	result.Description = metaContent(doc, `meta[name="description"]`, `meta[property="og:description"]`)
	result.PublishedAt = metaContent(doc,
		`meta[property="article:published_time"]`,
		`meta[name="date"]`,
		`meta[name="pubdate"]`,
		`meta[itemprop="datePublished"]`)
	if result.PublishedAt == "" {
		if v, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
			result.PublishedAt = strings.TrimSpace(v)
		}
	}

	doc.Find(noiseSelector).Remove()
	for _, sel := range opts.ExcludeSelectors {
		doc.Find(sel).Remove()
	}

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	if len(opts.Selectors) > 0 {
		root = doc.Find(strings.Join(opts.Selectors, ", "))
	}

	markdown := result.Format != "text"
	content := extractBlocks(root, markdown)
	if content == "" {
		content = collapseSpace(root.Text())
	}

	if opts.IncludeLinks {
		result.Links = extractLinks(root, base)
	}
	if opts.IncludeImages {
		result.Images = extractImages(root, base)
	}

	s.finish(result, content, opts.MaxLength)
	s.logger.Debug("page scraped", zap.String("url", result.URL), zap.Int("words", result.WordCount))
	return result, nil
}

func (s *HTTPScraper) finish(result *WebScrapeResult, content string, maxLength int) {
	result.WordCount = len(strings.Fields(content))
	if maxLength > 0 && utf8.RuneCountInString(content) > maxLength {
		content = string([]rune(content)[:maxLength]) + truncateMarker
		result.Truncated = true
	}
	result.Content = content
}

// extractBlocks 按文档顺序输出标题、段落与列表项，跳过嵌套在其他块内的重复文本。
func extractBlocks(root *goquery.Selection, markdown bool) string {
	var b strings.Builder
	var last string
	root.Find(blockSelector).Each(func(_ int, sel *goquery.Selection) {
		if sel.ParentsFiltered(blockSelector).Length() > 0 {
			return
		}
		text := collapseSpace(sel.Text())
		if text == "" || text == last {
			return
		}
		last = text

		tag := goquery.NodeName(sel)
		if markdown {
			switch {
			case len(tag) == 2 && tag[0] == 'h':
				b.WriteString(strings.Repeat("#", int(tag[1]-'0')) + " ")
			case tag == "li":
				b.WriteString("- ")
			case tag == "blockquote":
				b.WriteString("> ")
			}
		}
		b.WriteString(text)
		if tag == "li" {
			b.WriteString("\n")
		} else {
			b.WriteString("\n\n")
		}
	})
	return strings.TrimSpace(b.String())
}

func extractLinks(root *goquery.Selection, base *url.URL) []ScrapedLink {
	links := make([]ScrapedLink, 0)
	seen := make(map[string]struct{})
	root.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		abs, ok := resolveURL(base, href)
		if !ok {
			return true
		}
		if _, dup := seen[abs]; dup {
			return true
		}
		seen[abs] = struct{}{}
		links = append(links, ScrapedLink{Text: collapseSpace(a.Text()), URL: abs})
		return len(links) < maxScrapeLinks
	})
	return links
}

func extractImages(root *goquery.Selection, base *url.URL) []ScrapedImage {
	images := make([]ScrapedImage, 0)
	root.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		abs, ok := resolveURL(base, src)
		if !ok {
			return
		}
		alt, _ := img.Attr("alt")
		images = append(images, ScrapedImage{Alt: strings.TrimSpace(alt), URL: abs})
	})
	return images
}

func resolveURL(base *url.URL, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(u)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	abs.Fragment = ""
	return abs.String(), true
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
