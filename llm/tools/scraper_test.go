package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const samplePage = `<!doctype html>
<html><head>
<title> Agentic AI in 2026 </title>
<meta name="description" content="Where agents are heading">
<meta property="article:published_time" content="2026-01-15T08:00:00Z">
<script>var tracking = true;</script>
<style>body{color:red}</style>
</head>
<body>
<header>Site header</header>
<nav><a href="/home">Home</a></nav>
<article>
<h1>Agentic AI</h1>
<p>Agents  are
 becoming mainstream.</p>
<ul><li>Planning</li><li><p>Tool use</p></li></ul>
<p>Read the <a href="/report#section">full report</a> or <a href="https://other.example/x">source</a>.</p>
<a href="javascript:void(0)">noop</a>
<img src="/chart.png" alt="Adoption chart">
</article>
<footer>Copyright</footer>
</body></html>`

func newPageServer(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPScraper_ExtractsReadableContent(t *testing.T) {
	t.Parallel()

	srv := newPageServer(t, "text/html; charset=utf-8", samplePage)
	s := NewHTTPScraper(srv.Client(), zap.NewNop())

	res, err := s.Scrape(context.Background(), srv.URL+"/post", WebScrapeOptions{Format: "markdown", IncludeLinks: true, IncludeImages: true})
	require.NoError(t, err)

	assert.Equal(t, "Agentic AI in 2026", res.Title)
	assert.Equal(t, "Where agents are heading", res.Description)
	assert.Equal(t, "2026-01-15T08:00:00Z", res.PublishedAt)
	assert.Contains(t, res.Content, "# Agentic AI")
	assert.Contains(t, res.Content, "Agents are becoming mainstream.")
	assert.Contains(t, res.Content, "- Planning")
	assert.Equal(t, 1, strings.Count(res.Content, "Tool use"))
	assert.NotContains(t, res.Content, "tracking")
	assert.NotContains(t, res.Content, "Site header")
	assert.NotContains(t, res.Content, "Copyright")

	urls := make([]string, 0, len(res.Links))
	for _, l := range res.Links {
		urls = append(urls, l.URL)
	}
	assert.Contains(t, urls, srv.URL+"/report")
	assert.Contains(t, urls, "https://other.example/x")
	assert.NotContains(t, urls, srv.URL+"/home")
	for _, u := range urls {
		assert.False(t, strings.HasPrefix(u, "javascript:"))
	}

	require.Len(t, res.Images, 1)
	assert.Equal(t, "Adoption chart", res.Images[0].Alt)
	assert.Equal(t, srv.URL+"/chart.png", res.Images[0].URL)
}

func TestHTTPScraper_TextFormatAndTruncation(t *testing.T) {
	t.Parallel()

	srv := newPageServer(t, "text/html", samplePage)
	s := NewHTTPScraper(srv.Client(), nil)

	res, err := s.Scrape(context.Background(), srv.URL, WebScrapeOptions{Format: "text", MaxLength: 10})
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.True(t, strings.HasPrefix(res.Content, "Agentic AI"))
	assert.True(t, strings.HasSuffix(res.Content, truncateMarker))
	assert.Empty(t, res.Links)
}

func TestHTTPScraper_PlainText(t *testing.T) {
	t.Parallel()

	srv := newPageServer(t, "text/plain", "  just text here  ")
	res, err := NewHTTPScraper(srv.Client(), nil).Scrape(context.Background(), srv.URL, DefaultWebScrapeOptions())
	require.NoError(t, err)
	assert.Equal(t, "just text here", res.Content)
	assert.Equal(t, 3, res.WordCount)
}

func TestHTTPScraper_Errors(t *testing.T) {
	t.Parallel()

	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()
	binary := newPageServer(t, "image/png", "\x89PNG")

	s := NewHTTPScraper(nil, nil)
	_, err := s.Scrape(context.Background(), notFound.URL, DefaultWebScrapeOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")

	_, err = NewHTTPScraper(binary.Client(), nil).Scrape(context.Background(), binary.URL, DefaultWebScrapeOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported content type")

	_, err = s.Scrape(context.Background(), "file:///etc/passwd", DefaultWebScrapeOptions())
	require.Error(t, err)
}
