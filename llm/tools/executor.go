package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BaSui01/crewstudio/llm"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ToolFunc defines the tool function signature.
type ToolFunc func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// ToolMetadata describes tool metadata.
type ToolMetadata struct {
	Schema      llm.ToolSchema   // Tool JSON Schema
	RateLimit   *RateLimitConfig // Rate limit config (optional)
	Timeout     time.Duration    // Execution timeout (default 30s)
	Description string           // Detailed description
}

// RateLimitConfig defines rate limit configuration.
type RateLimitConfig struct {
	MaxCalls int           // Maximum calls
	Window   time.Duration // Time window
}

func (c *RateLimitConfig) limiter() *rate.Limiter {
	if c == nil || c.MaxCalls <= 0 || c.Window <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(c.Window/time.Duration(c.MaxCalls)), c.MaxCalls)
}

// ToolResult represents tool execution result.
type ToolResult struct {
	ToolCallID string          `json:"tool_call_id"`
	Name       string          `json:"name"`
	Result     json.RawMessage `json:"result"`
	Error      string          `json:"error,omitempty"`
	Duration   time.Duration   `json:"duration"`
}

// ErrToolNotFound is returned by registries for unknown or out-of-scope tools.
var ErrToolNotFound = errors.New("tool not found")

// ToolRegistry defines tool registry interface.
type ToolRegistry interface {
	Register(name string, fn ToolFunc, metadata ToolMetadata) error
	Unregister(name string) error
	Get(name string) (ToolFunc, ToolMetadata, error)
	List() []llm.ToolSchema
	Has(name string) bool
}

// ToolExecutor defines tool executor interface.
type ToolExecutor interface {
	Execute(ctx context.Context, calls []llm.ToolCall) []ToolResult
	ExecuteOne(ctx context.Context, call llm.ToolCall) ToolResult
}

// rateLimited 由带限流的注册表实现
type rateLimited interface {
	checkRateLimit(name string) error
}

// ====== 实现：DefaultRegistry ======

type DefaultRegistry struct {
	mu         sync.RWMutex
	tools      map[string]ToolFunc
	metadata   map[string]ToolMetadata
	rateLimits map[string]*rate.Limiter // 工具级别的速率限制器
	logger     *zap.Logger
}

// NewDefaultRegistry 创建默认的工具注册中心。
func NewDefaultRegistry(logger *zap.Logger) *DefaultRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultRegistry{
		tools:      make(map[string]ToolFunc),
		metadata:   make(map[string]ToolMetadata),
		rateLimits: make(map[string]*rate.Limiter),
		logger:     logger.With(zap.String("component", "tool_registry")),
	}
}

func (r *DefaultRegistry) Register(name string, fn ToolFunc, metadata ToolMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	if metadata.Schema.Name == "" {
		metadata.Schema.Name = name
	}
	if metadata.Schema.Name != name {
		return fmt.Errorf("tool name mismatch: schema.Name=%s, register name=%s", metadata.Schema.Name, name)
	}
	if metadata.Timeout == 0 {
		metadata.Timeout = 30 * time.Second
	}

	r.tools[name] = fn
	r.metadata[name] = metadata
	if l := metadata.RateLimit.limiter(); l != nil {
		r.rateLimits[name] = l
	}

	r.logger.Debug("tool registered", zap.String("name", name), zap.Duration("timeout", metadata.Timeout))
	return nil
}

func (r *DefaultRegistry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	delete(r.tools, name)
	delete(r.metadata, name)
	delete(r.rateLimits, name)
	return nil
}

func (r *DefaultRegistry) Get(name string) (ToolFunc, ToolMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.tools[name]
	if !ok {
		return nil, ToolMetadata{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return fn, r.metadata[name], nil
}

// List 按名称排序返回所有工具 Schema。
func (r *DefaultRegistry) List() []llm.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]llm.ToolSchema, 0, len(r.metadata))
	for _, meta := range r.metadata {
		schemas = append(schemas, meta.Schema)
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	return schemas
}

func (r *DefaultRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

func (r *DefaultRegistry) checkRateLimit(name string) error {
	r.mu.RLock()
	limiter, ok := r.rateLimits[name]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	if !limiter.Allow() {
		return fmt.Errorf("no tokens available for %s", name)
	}
	return nil
}

// ====== 实现：ScopedRegistry ======

// ScopedRegistry 是只读视图，只暴露 allowed 中的工具。
// 每个 Agent 只能看到并调用自己被授权的工具。
type ScopedRegistry struct {
	base    ToolRegistry
	allowed map[string]struct{}
}

// NewScopedRegistry restricts base to the given tool names.
func NewScopedRegistry(base ToolRegistry, names ...string) *ScopedRegistry {
	allowed := make(map[string]struct{}, len(names))
	for _, n := range names {
		allowed[n] = struct{}{}
	}
	return &ScopedRegistry{base: base, allowed: allowed}
}

func (s *ScopedRegistry) Register(name string, _ ToolFunc, _ ToolMetadata) error {
	return fmt.Errorf("scoped registry is read-only: cannot register %s", name)
}

func (s *ScopedRegistry) Unregister(name string) error {
	return fmt.Errorf("scoped registry is read-only: cannot unregister %s", name)
}

func (s *ScopedRegistry) Get(name string) (ToolFunc, ToolMetadata, error) {
	if _, ok := s.allowed[name]; !ok {
		return nil, ToolMetadata{}, fmt.Errorf("%w: %s is not available to this agent", ErrToolNotFound, name)
	}
	return s.base.Get(name)
}

func (s *ScopedRegistry) List() []llm.ToolSchema {
	all := s.base.List()
	out := make([]llm.ToolSchema, 0, len(s.allowed))
	for _, schema := range all {
		if _, ok := s.allowed[schema.Name]; ok {
			out = append(out, schema)
		}
	}
	return out
}

func (s *ScopedRegistry) Has(name string) bool {
	_, ok := s.allowed[name]
	return ok && s.base.Has(name)
}

func (s *ScopedRegistry) checkRateLimit(name string) error {
	if rl, ok := s.base.(rateLimited); ok {
		return rl.checkRateLimit(name)
	}
	return nil
}

// ====== 实现：DefaultExecutor ======

// Recorder 接收每次工具调用的结果，通常由 internal/metrics 实现。
type Recorder interface {
	RecordToolCall(tool, status string, duration time.Duration)
}

type DefaultExecutor struct {
	registry ToolRegistry
	recorder Recorder
	logger   *zap.Logger
}

// ExecutorOption configures a DefaultExecutor.
type ExecutorOption func(*DefaultExecutor)

// WithRecorder reports every call outcome to r.
func WithRecorder(r Recorder) ExecutorOption {
	return func(e *DefaultExecutor) { e.recorder = r }
}

// NewDefaultExecutor 创建默认的工具执行器。
func NewDefaultExecutor(registry ToolRegistry, logger *zap.Logger, opts ...ExecutorOption) *DefaultExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &DefaultExecutor{registry: registry, logger: logger.With(zap.String("component", "tool_executor"))}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute 并发执行所有工具调用，结果顺序与 calls 一致。
func (e *DefaultExecutor) Execute(ctx context.Context, calls []llm.ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = e.ExecuteOne(ctx, call)
		}()
	}
	wg.Wait()
	return results
}

func (e *DefaultExecutor) ExecuteOne(ctx context.Context, call llm.ToolCall) ToolResult {
	start := time.Now()
	result := ToolResult{ToolCallID: call.ID, Name: call.Name}
	finish := func(status string) ToolResult {
		result.Duration = time.Since(start)
		if e.recorder != nil {
			e.recorder.RecordToolCall(call.Name, status, result.Duration)
		}
		return result
	}

	fn, meta, err := e.registry.Get(call.Name)
	if err != nil {
		result.Error = err.Error()
		e.logger.Warn("tool not found", zap.String("name", call.Name))
		return finish("not_found")
	}

	if rl, ok := e.registry.(rateLimited); ok {
		if err := rl.checkRateLimit(call.Name); err != nil {
			result.Error = fmt.Sprintf("rate limit exceeded: %s", err.Error())
			e.logger.Warn("rate limit exceeded", zap.String("name", call.Name))
			return finish("rate_limited")
		}
	}

	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if !json.Valid(args) {
		result.Error = "invalid arguments: not valid JSON"
		return finish("invalid_args")
	}

	execCtx, cancel := context.WithTimeout(ctx, meta.Timeout)
	defer cancel()

	// 带缓冲，超时后 goroutine 仍可写入并退出
	type outcome struct {
		res json.RawMessage
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := fn(execCtx, args)
		done <- outcome{res, err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-execCtx.Done():
	}

	switch {
	case ctx.Err() != nil:
		result.Error = fmt.Sprintf("cancelled: %v", ctx.Err())
		return finish("cancelled")
	case errors.Is(execCtx.Err(), context.DeadlineExceeded) && (out.err != nil || out.res == nil):
		result.Error = fmt.Sprintf("execution timeout after %s", meta.Timeout)
		e.logger.Warn("tool execution timeout", zap.String("name", call.Name), zap.Duration("timeout", meta.Timeout))
		return finish("timeout")
	case out.err != nil:
		result.Error = out.err.Error()
		e.logger.Warn("tool execution failed", zap.String("name", call.Name), zap.Error(out.err))
		return finish("error")
	}
	result.Result = out.res
	e.logger.Debug("tool executed", zap.String("name", call.Name), zap.Duration("duration", time.Since(start)))
	return finish("ok")
}
