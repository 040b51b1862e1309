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

type llmRecord struct {
	provider, model, status string
	prompt, completion      int
}

type fakeLLMRecorder struct {
	records []llmRecord
}

func (f *fakeLLMRecorder) RecordLLMRequest(provider, model, status string, _ time.Duration, prompt, completion int) {
	f.records = append(f.records, llmRecord{provider, model, status, prompt, completion})
}

type stubProvider struct {
	resp *llm.ChatResponse
	err  error
}

func (s *stubProvider) Completion(context.Context, *llm.ChatRequest) (*llm.ChatResponse, error) {
	return s.resp, s.err
}
func (s *stubProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}
func (s *stubProvider) Name() string                        { return "stub" }
func (s *stubProvider) SupportsNativeFunctionCalling() bool { return false }

func TestInstrumentedProvider_RecordsUsage(t *testing.T) {
	rec := &fakeLLMRecorder{}
	inner := &stubProvider{resp: &llm.ChatResponse{Usage: llm.ChatUsage{PromptTokens: 12, CompletionTokens: 30}}}
	p := NewInstrumentedProvider(inner, "default-model", rec)

	_, err := p.Completion(context.Background(), &llm.ChatRequest{Model: "gpt-5.2"})
	require.NoError(t, err)
	_, err = p.Completion(context.Background(), &llm.ChatRequest{})
	require.NoError(t, err)

	assert.Equal(t, []llmRecord{
		{"stub", "gpt-5.2", "ok", 12, 30},
		{"stub", "default-model", "ok", 12, 30},
	}, rec.records)
	assert.False(t, p.SupportsNativeFunctionCalling())
	assert.Same(t, inner, p.Unwrap())
}

func TestInstrumentedProvider_ErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&llm.Error{Code: llm.ErrRateLimited}, "LLM_RATE_LIMITED"},
		{context.DeadlineExceeded, "timeout"},
		{context.Canceled, "cancelled"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		rec := &fakeLLMRecorder{}
		p := NewInstrumentedProvider(&stubProvider{err: tt.err}, "m", rec)
		_, err := p.Completion(context.Background(), &llm.ChatRequest{})
		require.Error(t, err)
		require.Len(t, rec.records, 1)
		assert.Equal(t, tt.want, rec.records[0].status)
	}
}
