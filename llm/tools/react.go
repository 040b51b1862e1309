package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/crewstudio/llm"
	"go.uber.org/zap"
)

// ErrMaxIterations 在达到最大轮数且未强制收尾时返回。
var ErrMaxIterations = errors.New("max iterations reached")

// finalAnswerPrompt 在轮数耗尽时追加，要求模型停止调用工具并直接作答。
const finalAnswerPrompt = "You have reached the maximum number of tool calls. " +
	"Do not call any more tools. Using the information gathered so far, give your best final answer now."

// ReActConfig defines ReAct loop configuration.
type ReActConfig struct {
	MaxIterations int  // Maximum iterations (prevents infinite loops)
	StopOnError   bool // Stop on tool execution error

	// ForceFinalAnswer 轮数耗尽时追加一次不带工具的调用，而不是返回 ErrMaxIterations。
	ForceFinalAnswer bool

	// OnStep 在每个步骤完成后同步调用，用于进度上报。
	OnStep func(step ReActStep)
}

// ReActExecutor implements the ReAct (Reasoning and Acting) loop.
// Automatically handles "LLM -> Tool -> LLM" multi-turn conversations.
type ReActExecutor struct {
	provider     llm.Provider
	toolExecutor ToolExecutor
	logger       *zap.Logger
	config       ReActConfig
}

// NewReActExecutor creates a ReAct executor.
func NewReActExecutor(provider llm.Provider, toolExecutor ToolExecutor, config ReActConfig, logger *zap.Logger) *ReActExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = 10
	}
	return &ReActExecutor{
		provider:     provider,
		toolExecutor: toolExecutor,
		logger:       logger.With(zap.String("component", "react")),
		config:       config,
	}
}

// Execute runs the ReAct loop, returning final response and all steps.
func (r *ReActExecutor) Execute(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, []ReActStep, error) {
	steps := make([]ReActStep, 0)
	messages := append([]llm.Message{}, req.Messages...)

	if len(req.Tools) > 0 && !r.provider.SupportsNativeFunctionCalling() {
		r.logger.Debug("provider lacks native function calling, tools dropped", zap.String("provider", r.provider.Name()))
	}

	for i := 0; i < r.config.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, steps, err
		}
		r.logger.Debug("ReAct iteration", zap.Int("iteration", i+1))

		callReq := *req
		callReq.Messages = messages
		if !r.provider.SupportsNativeFunctionCalling() {
			callReq.Tools = nil
			callReq.ToolChoice = ""
		}
		resp, err := r.provider.Completion(ctx, &callReq)
		if err != nil {
			return nil, steps, fmt.Errorf("LLM call failed at iteration %d: %w", i+1, err)
		}
		if len(resp.Choices) == 0 {
			return resp, steps, fmt.Errorf("no choices in LLM response")
		}

		choice := resp.Choices[0]
		toolCalls := choice.Message.ToolCalls

		step := ReActStep{
			StepNumber: i + 1,
			Thought:    choice.Message.Content,
			Timestamp:  time.Now().UTC(),
			TokensUsed: resp.Usage.TotalTokens,
		}

		if len(toolCalls) == 0 {
			r.logger.Info("ReAct completed", zap.Int("iterations", i+1), zap.String("finish_reason", choice.FinishReason))
			steps = r.appendStep(steps, step)
			return resp, steps, nil
		}

		r.logger.Info("executing tools", zap.Int("count", len(toolCalls)))
		step.Actions = toolCalls
		toolResults := r.toolExecutor.Execute(ctx, toolCalls)
		step.Observations = toolResults

		hasError := false
		for _, result := range toolResults {
			if result.Error != "" {
				hasError = true
				r.logger.Warn("tool execution failed", zap.String("tool", result.Name), zap.String("error", result.Error))
			}
		}

		steps = r.appendStep(steps, step)
		if hasError && r.config.StopOnError {
			return resp, steps, fmt.Errorf("tool execution failed, stopping ReAct loop")
		}

		messages = append(messages, choice.Message)
		for _, result := range toolResults {
			messages = append(messages, result.ToMessage())
		}
	}

	r.logger.Warn("ReAct max iterations reached", zap.Int("max", r.config.MaxIterations))
	if !r.config.ForceFinalAnswer {
		return nil, steps, fmt.Errorf("%w (%d)", ErrMaxIterations, r.config.MaxIterations)
	}

	final := *req
	final.Messages = append(messages, llm.Message{Role: llm.RoleUser, Content: finalAnswerPrompt})
	final.Tools = nil
	final.ToolChoice = ""
	resp, err := r.provider.Completion(ctx, &final)
	if err != nil {
		return nil, steps, fmt.Errorf("LLM final answer call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return resp, steps, fmt.Errorf("no choices in LLM response")
	}
	steps = r.appendStep(steps, ReActStep{
		StepNumber: len(steps) + 1,
		Thought:    resp.Choices[0].Message.Content,
		Timestamp:  time.Now().UTC(),
		TokensUsed: resp.Usage.TotalTokens,
	})
	return resp, steps, nil
}

func (r *ReActExecutor) appendStep(steps []ReActStep, step ReActStep) []ReActStep {
	if r.config.OnStep != nil {
		r.config.OnStep(step)
	}
	return append(steps, step)
}

// ExecuteWithTrace executes ReAct loop and returns full trace.
func (r *ReActExecutor) ExecuteWithTrace(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, *ReActTrace, error) {
	resp, steps, err := r.Execute(ctx, req)

	trace := &ReActTrace{
		TraceID:    req.TraceID,
		Steps:      steps,
		TotalSteps: len(steps),
		Success:    err == nil,
	}
	for _, step := range steps {
		trace.TotalTokens += step.TokensUsed
	}
	if resp != nil && len(resp.Choices) > 0 {
		trace.FinalAnswer = resp.Choices[0].Message.Content
	}
	if err != nil {
		trace.ErrorMessage = err.Error()
	}
	return resp, trace, err
}

// ReActStep represents one step in the ReAct loop (Thought → Action → Observation).
type ReActStep struct {
	StepNumber   int            `json:"step_number"`
	Thought      string         `json:"thought,omitempty"`
	Actions      []llm.ToolCall `json:"actions,omitempty"`
	Observations []ToolResult   `json:"observations,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	TokensUsed   int            `json:"tokens_used,omitempty"`
}

// ReActTrace represents the complete ReAct execution trace.
type ReActTrace struct {
	TraceID      string      `json:"trace_id,omitempty"`
	Steps        []ReActStep `json:"steps"`
	TotalTokens  int         `json:"total_tokens"`
	TotalSteps   int         `json:"total_steps"`
	Success      bool        `json:"success"`
	FinalAnswer  string      `json:"final_answer,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// ToMessage converts ToolResult to LLM Message.
func (tr ToolResult) ToMessage() llm.Message {
	msg := llm.Message{
		Role:       llm.RoleTool,
		ToolCallID: tr.ToolCallID,
		Name:       tr.Name,
	}
	if tr.Error != "" {
		msg.Content = fmt.Sprintf("Error: %s", tr.Error)
	} else {
		msg.Content = string(tr.Result)
	}
	return msg
}

// ToJSON serializes ToolResult to JSON.
func (tr ToolResult) ToJSON() (json.RawMessage, error) {
	return json.Marshal(tr)
}
