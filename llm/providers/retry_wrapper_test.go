package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BaSui01/crewstudio/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	errs  []error
	calls int
}

func (s *scriptedProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return &llm.ChatResponse{Choices: []llm.ChatChoice{{Message: llm.Message{Content: "ok"}}}}, nil
}
func (s *scriptedProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}
func (s *scriptedProvider) Name() string                        { return "scripted" }
func (s *scriptedProvider) SupportsNativeFunctionCalling() bool { return true }

func newTestRetry(inner llm.Provider, max int) *RetryableProvider {
	p := NewRetryableProvider(inner, RetryConfig{MaxRetries: max, InitialDelay: time.Millisecond}, nil)
	p.sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func TestRetryableProvider_RetriesTransientErrors(t *testing.T) {
	inner := &scriptedProvider{errs: []error{
		&llm.Error{Code: llm.ErrRateLimited, Retryable: true},
		&llm.Error{Code: llm.ErrUpstreamError, Retryable: true},
	}}
	resp, err := newTestRetry(inner, 2).Completion(context.Background(), &llm.ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.FirstContent())
	assert.Equal(t, 3, inner.calls)
}

func TestRetryableProvider_StopsOnPermanentError(t *testing.T) {
	inner := &scriptedProvider{errs: []error{&llm.Error{Code: llm.ErrUnauthorized}}}
	_, err := newTestRetry(inner, 3).Completion(context.Background(), &llm.ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)

	inner = &scriptedProvider{errs: []error{errors.New("plain")}}
	_, err = newTestRetry(inner, 3).Completion(context.Background(), &llm.ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryableProvider_ExhaustsRetries(t *testing.T) {
	e := &llm.Error{Code: llm.ErrModelOverloaded, Retryable: true}
	inner := &scriptedProvider{errs: []error{e, e, e}}
	_, err := newTestRetry(inner, 2).Completion(context.Background(), &llm.ChatRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, e)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryableProvider_CalculateDelayCapped(t *testing.T) {
	p := NewRetryableProvider(&scriptedProvider{}, RetryConfig{InitialDelay: time.Second, MaxDelay: 3 * time.Second, BackoffFactor: 2}, nil)
	assert.Equal(t, time.Second, p.calculateDelay(1))
	assert.Equal(t, 2*time.Second, p.calculateDelay(2))
	assert.Equal(t, 3*time.Second, p.calculateDelay(5))
}
