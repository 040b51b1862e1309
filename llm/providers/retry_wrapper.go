package providers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/BaSui01/crewstudio/llm"
	"go.uber.org/zap"
)

// RetryConfig holds retry configuration for a provider wrapper.
type RetryConfig struct {
	MaxRetries    int           `json:"max_retries" yaml:"max_retries"`       // Maximum retry attempts, default 2
	InitialDelay  time.Duration `json:"initial_delay" yaml:"initial_delay"`   // Initial backoff delay, default 1s
	MaxDelay      time.Duration `json:"max_delay" yaml:"max_delay"`           // Maximum backoff delay, default 10s
	BackoffFactor float64       `json:"backoff_factor" yaml:"backoff_factor"` // Exponential backoff factor, default 2.0
}

// DefaultRetryConfig returns the retry defaults used for crew agents.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    2,
		InitialDelay:  time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
	}
}

// RetryableProvider wraps an llm.Provider and retries Completion on errors
// marked Retryable. Anything else is returned on the first attempt.
type RetryableProvider struct {
	inner  llm.Provider
	config RetryConfig
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryableProvider creates a retrying wrapper around the given provider.
func NewRetryableProvider(inner llm.Provider, config RetryConfig, logger *zap.Logger) *RetryableProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.BackoffFactor <= 0 {
		config.BackoffFactor = 2.0
	}
	return &RetryableProvider{
		inner:  inner,
		config: config,
		logger: logger.With(zap.String("component", "retry_provider"), zap.String("provider", inner.Name())),
		sleep:  sleepCtx,
	}
}

var _ llm.Provider = (*RetryableProvider)(nil)

func (p *RetryableProvider) Name() string { return p.inner.Name() }
func (p *RetryableProvider) SupportsNativeFunctionCalling() bool {
	return p.inner.SupportsNativeFunctionCalling()
}
func (p *RetryableProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return p.inner.HealthCheck(ctx)
}

// Unwrap returns the wrapped provider.
func (p *RetryableProvider) Unwrap() llm.Provider { return p.inner }

// Completion performs a chat completion with retry on transient errors.
func (p *RetryableProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.calculateDelay(attempt)
			p.logger.Debug("retrying completion", zap.Int("attempt", attempt), zap.Duration("delay", delay))
			if err := p.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		resp, err := p.inner.Completion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var llmErr *llm.Error
		if !errors.As(err, &llmErr) || !llmErr.Retryable {
			return nil, err
		}
		p.logger.Warn("completion failed, will retry", zap.Int("attempt", attempt), zap.Error(err))
	}
	return nil, fmt.Errorf("completion failed after %d retries: %w", p.config.MaxRetries, lastErr)
}

func (p *RetryableProvider) calculateDelay(attempt int) time.Duration {
	delay := float64(p.config.InitialDelay) * math.Pow(p.config.BackoffFactor, float64(attempt-1))
	if p.config.MaxDelay > 0 && delay > float64(p.config.MaxDelay) {
		delay = float64(p.config.MaxDelay)
	}
	return time.Duration(delay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
