package catalog

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/BaSui01/crewstudio/internal/tlsutil"
	"github.com/BaSui01/crewstudio/llm"
	"github.com/BaSui01/crewstudio/llm/providers"
	"github.com/BaSui01/crewstudio/llm/providers/openaicompat"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ListStatus 是模型列表查询的类型化结果。
type ListStatus string

const (
	StatusLive        ListStatus = "live"        // 在线查询成功
	StatusStatic      ListStatus = "static"      // 该 Provider 只有内置列表
	StatusFallback    ListStatus = "fallback"    // 在线查询失败或无凭据，回退内置列表
	StatusTimeout     ListStatus = "timeout"     // 在线查询超时
	StatusUnavailable ListStatus = "unavailable" // 无可选模型
)

// ListResult 是一次 ListModels 的结果，网络失败不会以 error 形式返回。
type ListResult struct {
	Provider Kind       `json:"provider"`
	Status   ListStatus `json:"status"`
	Models   []string   `json:"models"`
	Reason   string     `json:"reason,omitempty"`
	Err      error      `json:"-"`
}

// Selectable reports whether at least one model can be chosen.
func (r ListResult) Selectable() bool { return len(r.Models) > 0 }

// Recorder 接收每次列表查询的结果，通常由 internal/metrics 实现。
type Recorder interface {
	RecordModelListing(provider, status string, duration time.Duration)
}

// KeyFunc 返回某 Provider 用于列表查询的凭据，没有则返回空串。
type KeyFunc func(Kind) string

const (
	DefaultOpenAIListTimeout = 5 * time.Second
	DefaultOllamaListTimeout = 2 * time.Second
)

// Catalog 负责模型列表查询。零配置即可用，所有地址都可覆盖（测试用）。
type Catalog struct {
	client        *http.Client
	openAIBaseURL string
	ollamaBaseURL string
	openAITimeout time.Duration
	ollamaTimeout time.Duration
	recorder      Recorder
	logger        *zap.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

func WithHTTPClient(c *http.Client) Option { return func(cat *Catalog) { cat.client = c } }

func WithOpenAIBaseURL(u string) Option {
	return func(cat *Catalog) {
		if u != "" {
			cat.openAIBaseURL = u
		}
	}
}

func WithOllamaBaseURL(u string) Option {
	return func(cat *Catalog) {
		if u != "" {
			cat.ollamaBaseURL = u
		}
	}
}

// WithTimeouts sets the live listing timeouts; zero keeps the default.
func WithTimeouts(openAI, ollama time.Duration) Option {
	return func(cat *Catalog) {
		if openAI > 0 {
			cat.openAITimeout = openAI
		}
		if ollama > 0 {
			cat.ollamaTimeout = ollama
		}
	}
}

func WithRecorder(r Recorder) Option { return func(cat *Catalog) { cat.recorder = r } }

// New 创建 Catalog。
func New(logger *zap.Logger, opts ...Option) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Catalog{
		openAIBaseURL: MustLookup(KindOpenAI).DefaultBaseURL,
		ollamaBaseURL: MustLookup(KindOllama).DefaultBaseURL,
		openAITimeout: DefaultOpenAIListTimeout,
		ollamaTimeout: DefaultOllamaListTimeout,
		logger:        logger.With(zap.String("component", "catalog")),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		// 超时由每次调用的 ctx 控制
		c.client = tlsutil.WithUserAgent(tlsutil.SecureHTTPClient(0), "")
	}
	return c
}

// ListModels 返回某 Provider 可选的模型。credential 仅用于 OpenAI 在线查询。
func (c *Catalog) ListModels(ctx context.Context, kind Kind, credential string) ListResult {
	start := time.Now()
	var res ListResult
	switch kind {
	case KindOpenAI:
		res = c.listOpenAI(ctx, credential)
	case KindOllama:
		res = c.listOllama(ctx)
	case KindAnthropic, KindGroq, KindZhipu:
		res = ListResult{Provider: kind, Status: StatusStatic, Models: MustLookup(kind).StaticModels()}
	default:
		res = ListResult{
			Provider: kind,
			Status:   StatusUnavailable,
			Reason:   "unsupported provider",
			Err:      &UnknownProviderError{Name: kind.String()},
		}
	}
	if c.recorder != nil {
		c.recorder.RecordModelListing(kind.String(), string(res.Status), time.Since(start))
	}
	if res.Err != nil {
		c.logger.Debug("model listing degraded",
			zap.String("provider", kind.String()),
			zap.String("status", string(res.Status)),
			zap.Error(res.Err))
	}
	return res
}

// ListAll 并发查询所有 Provider，结果按 AllKinds 顺序返回。
func (c *Catalog) ListAll(ctx context.Context, keys KeyFunc) []ListResult {
	kinds := AllKinds()
	results := make([]ListResult, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, k := range kinds {
		g.Go(func() error {
			key := ""
			if keys != nil {
				key = keys(k)
			}
			results[i] = c.ListModels(gctx, k, key)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *Catalog) listOpenAI(ctx context.Context, credential string) ListResult {
	fallback := func(status ListStatus, reason string, err error) ListResult {
		return ListResult{
			Provider: KindOpenAI,
			Status:   status,
			Models:   MustLookup(KindOpenAI).StaticModels(),
			Reason:   reason,
			Err:      err,
		}
	}
	if credential == "" {
		return fallback(StatusFallback, "no credential", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.openAITimeout)
	defer cancel()

	p := openaicompat.NewOpenAI(providers.BaseProviderConfig{APIKey: credential, BaseURL: c.openAIBaseURL}, c.client, c.logger)
	models, err := p.ListModels(ctx)
	if err != nil {
		var llmErr *llm.Error
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &llmErr) && llmErr.Code == llm.ErrUpstreamTimeout) {
			return fallback(StatusTimeout, "listing timed out", err)
		}
		return fallback(StatusFallback, "listing failed", err)
	}

	ids := make([]string, 0, len(models))
	seen := make(map[string]struct{}, len(models))
	for _, m := range models {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		ids = append(ids, m.ID)
	}
	ranked := RankModels(FilterChatModels(ids))
	if len(ranked) == 0 {
		return fallback(StatusFallback, "no chat models listed", nil)
	}
	return ListResult{Provider: KindOpenAI, Status: StatusLive, Models: ranked}
}
