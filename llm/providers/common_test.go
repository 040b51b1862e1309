package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/crewstudio/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		status    int
		msg       string
		code      llm.ErrorCode
		retryable bool
	}{
		{http.StatusUnauthorized, "bad key", llm.ErrUnauthorized, false},
		{http.StatusForbidden, "nope", llm.ErrForbidden, false},
		{http.StatusTooManyRequests, "slow down", llm.ErrRateLimited, true},
		{http.StatusBadRequest, "Insufficient credit balance", llm.ErrQuotaExceeded, false},
		{http.StatusBadRequest, "bad field", llm.ErrInvalidRequest, false},
		{http.StatusGatewayTimeout, "", llm.ErrUpstreamTimeout, true},
		{http.StatusBadGateway, "", llm.ErrUpstreamError, true},
		{529, "overloaded", llm.ErrModelOverloaded, true},
		{http.StatusInternalServerError, "", llm.ErrUpstreamError, true},
		{http.StatusTeapot, "", llm.ErrUpstreamError, false},
	}
	for _, tt := range tests {
		err := MapHTTPError(tt.status, tt.msg, "groq")
		assert.Equal(t, tt.code, err.Code, "status %d", tt.status)
		assert.Equal(t, tt.retryable, err.Retryable, "status %d", tt.status)
		assert.Equal(t, "groq", err.Provider)
		assert.Equal(t, tt.status, err.HTTPStatus)
	}
}

func TestTransportError(t *testing.T) {
	e := TransportError(context.DeadlineExceeded, "openai")
	assert.Equal(t, llm.ErrUpstreamTimeout, e.Code)

	e = TransportError(errors.New("connection refused"), "ollama")
	assert.Equal(t, llm.ErrProviderUnavailable, e.Code)
	assert.True(t, e.Retryable)

	e = TransportError(context.Canceled, "ollama")
	assert.False(t, e.Retryable)
}

func TestReadErrorMessage(t *testing.T) {
	msg := ReadErrorMessage(strings.NewReader(`{"error":{"message":"invalid model","type":"invalid_request_error"}}`))
	assert.Equal(t, "invalid model (type: invalid_request_error)", msg)
	assert.Equal(t, "plain failure", ReadErrorMessage(strings.NewReader("plain failure\n")))
}

func TestConvertToolsToOpenAI_CarriesSchema(t *testing.T) {
	params := json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}}}`)
	out := ConvertToolsToOpenAI([]llm.ToolSchema{{Name: "web_search", Description: "search", Parameters: params}})
	require.Len(t, out, 1)
	assert.Equal(t, "function", out[0].Type)
	assert.Equal(t, "web_search", out[0].Function.Name)
	assert.JSONEq(t, string(params), string(out[0].Function.Parameters))

	data, err := json.Marshal(out[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"parameters"`)
	assert.Nil(t, ConvertToolsToOpenAI(nil))
}

func TestConvertMessagesToOpenAI_ToolCallArgumentsAreStrings(t *testing.T) {
	msgs := []llm.Message{
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "c1", Name: "web_search", Arguments: json.RawMessage(`{"query":"go"}`)}}},
		{Role: llm.RoleTool, ToolCallID: "c1", Content: "result"},
	}
	out := ConvertMessagesToOpenAI(msgs)
	require.Len(t, out, 2)
	assert.Equal(t, `{"query":"go"}`, out[0].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "c1", out[1].ToolCallID)
}

func TestToLLMChatResponse(t *testing.T) {
	oa := OpenAICompatResponse{
		ID:    "resp-1",
		Model: "llama-3.3-70b-versatile",
		Choices: []OpenAICompatChoice{{
			FinishReason: "tool_calls",
			Message: OpenAICompatMessage{
				Role: "assistant",
				ToolCalls: []OpenAICompatToolCall{
					{ID: "a", Type: "function", Function: OpenAICompatCall{Name: "web_search", Arguments: `{"query":"x"}`}},
					{ID: "b", Type: "function", Function: OpenAICompatCall{Name: "web_scrape", Arguments: `not json`}},
				},
			},
		}},
		Usage: &OpenAICompatUsage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7},
	}
	resp := ToLLMChatResponse(oa, "groq")
	require.Len(t, resp.Choices, 1)
	calls := resp.Choices[0].Message.ToolCalls
	require.Len(t, calls, 2)
	assert.JSONEq(t, `{"query":"x"}`, string(calls[0].Arguments))
	assert.True(t, json.Valid(calls[1].Arguments))
	assert.Equal(t, 7, resp.Usage.TotalTokens)
	assert.Equal(t, "groq", resp.Provider)
}

func TestChooseModel(t *testing.T) {
	assert.Equal(t, "req", ChooseModel(&llm.ChatRequest{Model: "req"}, "def", "fb"))
	assert.Equal(t, "def", ChooseModel(&llm.ChatRequest{}, "def", "fb"))
	assert.Equal(t, "fb", ChooseModel(nil, "", "fb"))
}

func TestBearerTokenHeaders_EmptyKeyOmitsAuthorization(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	BearerTokenHeaders(r, "")
	assert.Empty(t, r.Header.Get("Authorization"))

	BearerTokenHeaders(r, "sk-1")
	assert.Equal(t, "Bearer sk-1", r.Header.Get("Authorization"))
}

func TestListModelsOpenAICompat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4o"},{"id":"gpt-5"}]}`))
	}))
	defer srv.Close()

	client := &http.Client{Timeout: time.Second}
	models, err := ListModelsOpenAICompat(context.Background(), client, srv.URL, "good", "openai", "/v1/models", nil)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "gpt-4o", models[0].ID)

	_, err = ListModelsOpenAICompat(context.Background(), client, srv.URL, "bad", "openai", "/v1/models", nil)
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrUnauthorized, llmErr.Code)
}
