package crews

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/crewstudio/llm"
	"github.com/BaSui01/crewstudio/llm/tools"
	"go.uber.org/zap"
)

const (
	DefaultMaxIterations = 10
	MaxIterationsLimit   = 20
)

// RequestFunc 按成员绑定的模型参数构造请求。
type RequestFunc func(msgs []llm.Message, schemas []llm.ToolSchema) *llm.ChatRequest

// LLMAgentConfig 配置一个由 LLM 驱动的团队成员。
type LLMAgentConfig struct {
	ID       string
	Role     Role
	Provider llm.Provider
	// NewRequest 为空时只使用 Model 字段构造请求
	NewRequest RequestFunc
	Model      string
	// Tools 应当是只包含该成员授权工具的注册表
	Tools         tools.ToolRegistry
	Recorder      tools.Recorder
	MaxIterations int
	OnStep        func(agentID string, step tools.ReActStep)
}

// LLMAgent 通过 ReAct 循环执行任务。
type LLMAgent struct {
	cfg    LLMAgentConfig
	react  *tools.ReActExecutor
	schema []llm.ToolSchema
	logger *zap.Logger
}

// NewLLMAgent 创建 LLMAgent。MaxIterations 被限制在 [1, 20]，0 使用默认值 10。
func NewLLMAgent(cfg LLMAgentConfig, logger *zap.Logger) *LLMAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch {
	case cfg.MaxIterations <= 0:
		cfg.MaxIterations = DefaultMaxIterations
	case cfg.MaxIterations > MaxIterationsLimit:
		cfg.MaxIterations = MaxIterationsLimit
	}
	if cfg.Tools == nil {
		cfg.Tools = tools.NewScopedRegistry(tools.NewDefaultRegistry(logger))
	}
	if cfg.NewRequest == nil {
		model := cfg.Model
		cfg.NewRequest = func(msgs []llm.Message, schemas []llm.ToolSchema) *llm.ChatRequest {
			return &llm.ChatRequest{Model: model, Messages: msgs, Tools: schemas}
		}
	}
	logger = logger.With(zap.String("component", "llm_agent"), zap.String("agent", cfg.ID))

	var opts []tools.ExecutorOption
	if cfg.Recorder != nil {
		opts = append(opts, tools.WithRecorder(cfg.Recorder))
	}
	executor := tools.NewDefaultExecutor(cfg.Tools, logger, opts...)

	reactCfg := tools.ReActConfig{MaxIterations: cfg.MaxIterations, ForceFinalAnswer: true}
	if cfg.OnStep != nil {
		id, onStep := cfg.ID, cfg.OnStep
		reactCfg.OnStep = func(step tools.ReActStep) { onStep(id, step) }
	}

	return &LLMAgent{
		cfg:    cfg,
		react:  tools.NewReActExecutor(cfg.Provider, executor, reactCfg, logger),
		schema: cfg.Tools.List(),
		logger: logger,
	}
}

func (a *LLMAgent) ID() string { return a.cfg.ID }

// Role 返回成员角色。
func (a *LLMAgent) Role() Role { return a.cfg.Role }

// Tools 返回该成员可见的工具 Schema。
func (a *LLMAgent) Tools() []llm.ToolSchema { return a.schema }

// Execute 运行 ReAct 循环直到模型给出最终答案。
func (a *LLMAgent) Execute(ctx context.Context, task CrewTask) (*TaskResult, error) {
	start := time.Now()
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: a.systemPrompt()},
		{Role: llm.RoleUser, Content: a.taskPrompt(task)},
	}
	req := a.cfg.NewRequest(msgs, a.schema)
	req.TraceID = task.ID

	resp, trace, err := a.react.ExecuteWithTrace(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", a.cfg.ID, err)
	}
	output := strings.TrimSpace(resp.FirstContent())
	if output == "" {
		return nil, fmt.Errorf("agent %s: empty final answer", a.cfg.ID)
	}

	a.logger.Info("task executed",
		zap.String("task", task.ID),
		zap.Int("steps", trace.TotalSteps),
		zap.Int("tokens", trace.TotalTokens),
		zap.Duration("duration", time.Since(start)))

	return &TaskResult{
		TaskID:     task.ID,
		MemberID:   a.cfg.ID,
		Output:     output,
		TokensUsed: trace.TotalTokens,
		Duration:   time.Since(start).Milliseconds(),
	}, nil
}

// Negotiate 不调用模型：接受分配给自己（或未分配）的委派，其余一律拒绝。
func (a *LLMAgent) Negotiate(_ context.Context, p Proposal) (*NegotiationResult, error) {
	if p.Type != ProposalTypeDelegate {
		return &NegotiationResult{Accepted: false, Response: "unsupported proposal " + string(p.Type)}, nil
	}
	if p.Task != nil && p.Task.AssignedTo != "" && p.Task.AssignedTo != a.cfg.ID {
		return &NegotiationResult{Accepted: false, Response: "task is assigned to " + p.Task.AssignedTo}, nil
	}
	return &NegotiationResult{Accepted: true, Response: a.cfg.ID}, nil
}

// Plan 在执行前生成分步计划，不使用工具。
func (a *LLMAgent) Plan(ctx context.Context, tasks []CrewTask, roster []Role) (string, error) {
	var b strings.Builder
	b.WriteString("Create a concise step-by-step plan for the crew below. ")
	b.WriteString("For each task, state which team member should handle it and what they must deliver.\n\n")
	b.WriteString("Team members:\n")
	for _, r := range roster {
		fmt.Fprintf(&b, "- %s: %s", r.Name, r.Goal)
		if len(r.Tools) > 0 {
			fmt.Fprintf(&b, " (tools: %s)", strings.Join(r.Tools, ", "))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nTasks:\n")
	for i, t := range tasks {
		fmt.Fprintf(&b, "%d. %s\n", i+1, firstLine(t.Description))
	}
	return a.complete(ctx, "plan", b.String())
}

// Synthesize 汇总全部任务输出，生成最终交付物。
func (a *LLMAgent) Synthesize(ctx context.Context, objective string, results []*TaskResult) (*TaskResult, error) {
	start := time.Now()
	var b strings.Builder
	b.WriteString("Your team has finished its tasks. Combine their outputs into the final deliverable.\n\n")
	for _, r := range results {
		fmt.Fprintf(&b, "## Output of %s\n%s\n\n", r.TaskID, r.Output)
	}
	if objective != "" {
		b.WriteString("The final deliverable must meet these criteria:\n")
		b.WriteString(objective)
		b.WriteString("\n")
	}
	b.WriteString("\nReturn the complete final deliverable, not a summary of it.")

	out, err := a.complete(ctx, "synthesis", b.String())
	if err != nil {
		return nil, err
	}
	return &TaskResult{TaskID: "synthesis", MemberID: a.cfg.ID, Output: out, Duration: time.Since(start).Milliseconds()}, nil
}

func (a *LLMAgent) complete(ctx context.Context, traceID, prompt string) (string, error) {
	req := a.cfg.NewRequest([]llm.Message{
		{Role: llm.RoleSystem, Content: a.systemPrompt()},
		{Role: llm.RoleUser, Content: prompt},
	}, nil)
	req.TraceID = traceID
	resp, err := a.cfg.Provider.Completion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("agent %s %s: %w", a.cfg.ID, traceID, err)
	}
	out := strings.TrimSpace(resp.FirstContent())
	if out == "" {
		return "", fmt.Errorf("agent %s %s: empty response", a.cfg.ID, traceID)
	}
	return out, nil
}

func (a *LLMAgent) systemPrompt() string {
	r := a.cfg.Role
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.", r.Name)
	if r.Backstory != "" {
		b.WriteString(" ")
		b.WriteString(r.Backstory)
	}
	if r.Goal != "" {
		fmt.Fprintf(&b, "\n\nYour personal goal is: %s", r.Goal)
	}
	if len(a.schema) > 0 {
		names := make([]string, len(a.schema))
		for i, s := range a.schema {
			names[i] = s.Name
		}
		fmt.Fprintf(&b, "\n\nYou can use these tools: %s. Call them whenever you need fresh information.", strings.Join(names, ", "))
	} else {
		b.WriteString("\n\nYou have no tools; answer from the information you are given.")
	}
	return b.String()
}

func (a *LLMAgent) taskPrompt(t CrewTask) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current task: %s\n", t.Description)
	if t.Context != "" {
		fmt.Fprintf(&b, "\nThis is the context you are working with:\n%s\n", t.Context)
	}
	if t.Expected != "" {
		fmt.Fprintf(&b, "\nThis is the expected criteria for your final answer:\n%s\n", t.Expected)
	}
	b.WriteString("\nYou must return the actual complete content as the final answer, not a summary.")
	return b.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
