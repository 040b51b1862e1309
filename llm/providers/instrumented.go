package providers

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/crewstudio/llm"
)

// Recorder 接收每次 Completion 的结果，通常由 internal/metrics 实现。
type Recorder interface {
	RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int)
}

// InstrumentedProvider 在 Completion 前后记录耗时、状态与 Token 用量。
type InstrumentedProvider struct {
	inner    llm.Provider
	model    string
	recorder Recorder
}

// NewInstrumentedProvider wraps inner. model 是请求未指定模型时使用的标签。
func NewInstrumentedProvider(inner llm.Provider, model string, recorder Recorder) *InstrumentedProvider {
	return &InstrumentedProvider{inner: inner, model: model, recorder: recorder}
}

var _ llm.Provider = (*InstrumentedProvider)(nil)

func (p *InstrumentedProvider) Name() string { return p.inner.Name() }
func (p *InstrumentedProvider) SupportsNativeFunctionCalling() bool {
	return p.inner.SupportsNativeFunctionCalling()
}
func (p *InstrumentedProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return p.inner.HealthCheck(ctx)
}

// Unwrap returns the wrapped provider.
func (p *InstrumentedProvider) Unwrap() llm.Provider { return p.inner }

func (p *InstrumentedProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	start := time.Now()
	resp, err := p.inner.Completion(ctx, req)

	model := p.model
	if req != nil && req.Model != "" {
		model = req.Model
	}
	var prompt, completion int
	if resp != nil {
		prompt, completion = resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	}
	p.recorder.RecordLLMRequest(p.inner.Name(), model, completionStatus(err), time.Since(start), prompt, completion)
	return resp, err
}

// completionStatus 把错误归类为指标标签。
func completionStatus(err error) string {
	if err == nil {
		return "ok"
	}
	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		return string(llmErr.Code)
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}
