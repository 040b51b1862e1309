package crews

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/BaSui01/crewstudio/llm"
	"github.com/BaSui01/crewstudio/llm/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	mu        sync.Mutex
	responses []*llm.ChatResponse
	requests  []*llm.ChatRequest
	err       error
}

func (p *fakeProvider) Completion(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	if len(p.responses) == 0 {
		return &llm.ChatResponse{Choices: []llm.ChatChoice{{Message: llm.Message{Role: llm.RoleAssistant, Content: "default answer"}}}}, nil
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

func (p *fakeProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}
func (p *fakeProvider) Name() string                        { return "fake" }
func (p *fakeProvider) SupportsNativeFunctionCalling() bool { return true }

func text(s string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Choices: []llm.ChatChoice{{Message: llm.Message{Role: llm.RoleAssistant, Content: s}}},
		Usage:   llm.ChatUsage{TotalTokens: 3},
	}
}

func newToolRegistry(t *testing.T, names ...string) *tools.DefaultRegistry {
	t.Helper()
	reg := tools.NewDefaultRegistry(zap.NewNop())
	for _, n := range names {
		require.NoError(t, reg.Register(n, func(context.Context, json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`{"results":[]}`), nil
		}, tools.ToolMetadata{Schema: llm.ToolSchema{Name: n, Parameters: json.RawMessage(`{"type":"object"}`)}}))
	}
	return reg
}

func TestLLMAgent_Execute_UsesScopedTools(t *testing.T) {
	base := newToolRegistry(t, tools.WebSearchToolName, tools.WebScrapeToolName)
	provider := &fakeProvider{responses: []*llm.ChatResponse{
		{Choices: []llm.ChatChoice{{Message: llm.Message{
			Role:      llm.RoleAssistant,
			ToolCalls: []llm.ToolCall{{ID: "c1", Name: tools.WebSearchToolName, Arguments: json.RawMessage(`{"query":"x"}`)}},
		}}}, Usage: llm.ChatUsage{TotalTokens: 4}},
		text("final findings"),
	}}

	var steps []int
	agent := NewLLMAgent(LLMAgentConfig{
		ID:       "analyst",
		Role:     Role{Name: "Data Analysis Specialist", Goal: "analyze", Backstory: "Seasoned analyst."},
		Provider: provider,
		Model:    "gpt-5.2",
		Tools:    tools.NewScopedRegistry(base, tools.WebSearchToolName),
		OnStep:   func(id string, s tools.ReActStep) { steps = append(steps, s.StepNumber) },
	}, zap.NewNop())

	res, err := agent.Execute(context.Background(), CrewTask{ID: "t1", Description: "Analyze AI", Expected: "A table", Context: "prior notes"})
	require.NoError(t, err)
	assert.Equal(t, "final findings", res.Output)
	assert.Equal(t, "analyst", res.MemberID)
	assert.Equal(t, 7, res.TokensUsed)
	assert.Equal(t, []int{1, 2}, steps)

	first := provider.requests[0]
	assert.Equal(t, "gpt-5.2", first.Model)
	require.Len(t, first.Tools, 1)
	assert.Equal(t, tools.WebSearchToolName, first.Tools[0].Name)
	assert.Contains(t, first.Messages[0].Content, "You are Data Analysis Specialist.")
	assert.Contains(t, first.Messages[0].Content, "Your personal goal is: analyze")
	assert.Contains(t, first.Messages[1].Content, "Analyze AI")
	assert.Contains(t, first.Messages[1].Content, "prior notes")
	assert.Contains(t, first.Messages[1].Content, "A table")
}

func TestLLMAgent_NewRequestCarriesModelParameters(t *testing.T) {
	provider := &fakeProvider{}
	agent := NewLLMAgent(LLMAgentConfig{
		ID:       "m",
		Role:     Role{Name: "Research Director", AllowDelegation: true},
		Provider: provider,
		NewRequest: func(msgs []llm.Message, schemas []llm.ToolSchema) *llm.ChatRequest {
			return &llm.ChatRequest{Model: "claude-sonnet-4-5", Messages: msgs, Tools: schemas, Temperature: 0.3, MaxTokens: 8192}
		},
	}, nil)

	_, err := agent.Execute(context.Background(), CrewTask{ID: "t"})
	require.NoError(t, err)
	req := provider.requests[0]
	assert.Equal(t, float32(0.3), req.Temperature)
	assert.Equal(t, 8192, req.MaxTokens)
	assert.Empty(t, req.Tools)
	assert.Contains(t, req.Messages[0].Content, "no tools")
}

func TestLLMAgent_Execute_Errors(t *testing.T) {
	agent := NewLLMAgent(LLMAgentConfig{ID: "a", Provider: &fakeProvider{err: errors.New("401")}}, nil)
	_, err := agent.Execute(context.Background(), CrewTask{ID: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	empty := NewLLMAgent(LLMAgentConfig{ID: "b", Provider: &fakeProvider{responses: []*llm.ChatResponse{text("  ")}}}, nil)
	_, err = empty.Execute(context.Background(), CrewTask{ID: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty final answer")
}

func TestLLMAgent_MaxIterationsClamped(t *testing.T) {
	assert.Equal(t, DefaultMaxIterations, NewLLMAgent(LLMAgentConfig{Provider: &fakeProvider{}}, nil).cfg.MaxIterations)
	assert.Equal(t, MaxIterationsLimit, NewLLMAgent(LLMAgentConfig{Provider: &fakeProvider{}, MaxIterations: 99}, nil).cfg.MaxIterations)
	assert.Equal(t, 3, NewLLMAgent(LLMAgentConfig{Provider: &fakeProvider{}, MaxIterations: 3}, nil).cfg.MaxIterations)
}

func TestLLMAgent_Negotiate(t *testing.T) {
	worker := NewLLMAgent(LLMAgentConfig{ID: "w", Provider: &fakeProvider{}}, nil)
	manager := NewLLMAgent(LLMAgentConfig{ID: "m", Role: Role{AllowDelegation: true}, Provider: &fakeProvider{}}, nil)

	res, err := worker.Negotiate(context.Background(), Proposal{Type: ProposalTypeDelegate, Task: &CrewTask{AssignedTo: "w"}})
	require.NoError(t, err)
	assert.True(t, res.Accepted)

	res, _ = worker.Negotiate(context.Background(), Proposal{Type: ProposalTypeDelegate, Task: &CrewTask{AssignedTo: "other"}})
	assert.False(t, res.Accepted)

	res, _ = manager.Negotiate(context.Background(), Proposal{Type: ProposalTypeDelegate})
	assert.True(t, res.Accepted)
	assert.Equal(t, "m", res.Response)

	res, _ = worker.Negotiate(context.Background(), Proposal{Type: "vote"})
	assert.False(t, res.Accepted)
}

func TestLLMAgent_PlanAndSynthesize(t *testing.T) {
	provider := &fakeProvider{responses: []*llm.ChatResponse{text("the plan"), text("# Report")}}
	manager := NewLLMAgent(LLMAgentConfig{ID: "m", Role: Role{Name: "Research Director", AllowDelegation: true}, Provider: provider}, nil)

	plan, err := manager.Plan(context.Background(),
		[]CrewTask{{Description: "Research topic X\nmore detail"}},
		[]Role{{Name: "Web Research Specialist", Goal: "find", Tools: []string{"web_search"}}})
	require.NoError(t, err)
	assert.Equal(t, "the plan", plan)
	assert.Contains(t, provider.requests[0].Messages[1].Content, "Web Research Specialist")
	assert.Contains(t, provider.requests[0].Messages[1].Content, "1. Research topic X\n")
	assert.Empty(t, provider.requests[0].Tools)

	final, err := manager.Synthesize(context.Background(), "six sections", []*TaskResult{{TaskID: "research", Output: "facts"}})
	require.NoError(t, err)
	assert.Equal(t, "# Report", final.Output)
	prompt := provider.requests[1].Messages[1].Content
	assert.Contains(t, prompt, "facts")
	assert.Contains(t, prompt, "six sections")
}

// 层级模式端到端：LLMAgent 作为管理者和成员
func TestCrew_WithLLMAgents_Hierarchical(t *testing.T) {
	managerLLM := &fakeProvider{responses: []*llm.ChatResponse{text("plan"), text("# Final report")}}
	workerLLM := &fakeProvider{responses: []*llm.ChatResponse{text("research notes")}}

	manager := NewLLMAgent(LLMAgentConfig{ID: "manager", Role: Role{Name: "Research Director", AllowDelegation: true}, Provider: managerLLM}, nil)
	worker := NewLLMAgent(LLMAgentConfig{ID: "researcher", Role: Role{Name: "Web Research Specialist"}, Provider: workerLLM}, nil)

	crew := NewCrew(CrewConfig{Process: ProcessHierarchical, Planning: true, FailFast: true}, nil)
	crew.AddMember(manager, manager.Role())
	crew.AddMember(worker, worker.Role())
	crew.AddTask(CrewTask{ID: "research", Description: "Research", AssignedTo: "researcher"})

	result, err := crew.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "# Final report", result.Final)
	assert.Equal(t, "research notes", result.TaskResults["research"].Output)
	assert.True(t, result.TaskResults["research"].Delegated)
}
