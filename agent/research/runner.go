package research

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BaSui01/crewstudio/agent/crews"
	"github.com/BaSui01/crewstudio/config"
	"github.com/BaSui01/crewstudio/llm/tools"
	"github.com/BaSui01/crewstudio/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/BaSui01/crewstudio/agent/research"

// EventType 标识运行事件。
type EventType string

const (
	EventCrewStarted   EventType = "crew_started"
	EventPlanReady     EventType = "plan_ready"
	EventTaskStarted   EventType = "task_started"
	EventTaskDelegated EventType = "task_delegated"
	EventTaskFallback  EventType = "task_fallback"
	EventTaskCompleted EventType = "task_completed"
	EventTaskFailed    EventType = "task_failed"
	EventSynthesized   EventType = "synthesized"
	EventToolCall      EventType = "tool_call"
	EventReportWritten EventType = "report_written"
	EventCrewFailed    EventType = "crew_failed"
)

// RunEvent 是运行过程中推送给调用方的进度事件。
type RunEvent struct {
	RunID   string    `json:"run_id"`
	Type    EventType `json:"type"`
	TaskID  string    `json:"task_id,omitempty"`
	Agent   string    `json:"agent,omitempty"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

// TaskOutput 是单个任务的输出。
type TaskOutput struct {
	TaskID    string `json:"task_id"`
	Name      string `json:"name,omitempty"`
	Agent     string `json:"agent"`
	Output    string `json:"output,omitempty"`
	Error     string `json:"error,omitempty"`
	Delegated bool   `json:"delegated,omitempty"`
}

// RunResult 是一次成功运行的结果。
type RunResult struct {
	RunID           string            `json:"run_id"`
	Topic           string            `json:"topic"`
	Process         crews.ProcessType `json:"process"`
	Plan            string            `json:"plan,omitempty"`
	Report          string            `json:"report"`
	OutputPath      string            `json:"output_path"`
	TaskOutputs     []TaskOutput      `json:"task_outputs"`
	MissingSections []string          `json:"missing_sections,omitempty"`
	TotalTokens     int               `json:"total_tokens,omitempty"`
	Duration        time.Duration     `json:"duration"`
}

// ExecutionError 表示执行引擎失败。进程保持存活，用户可以重新运行。
type ExecutionError struct {
	RunID  string
	TaskID string
	Err    error
}

func (e *ExecutionError) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("research run %s failed at task %s: %v", e.RunID, e.TaskID, e.Err)
	}
	return fmt.Sprintf("research run %s failed: %v", e.RunID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// RunRecorder 记录运行结果，通常由 internal/metrics 实现。
type RunRecorder interface {
	RecordRun(process, status string, duration time.Duration)
}

// RunnerConfig 配置 Runner。
type RunnerConfig struct {
	Crew   config.CrewConfig
	Search config.SearchConfig
	// HTTPClient 供搜索与抓取工具使用，nil 使用默认安全客户端
	HTTPClient   *http.Client
	Recorder     RunRecorder
	ToolRecorder tools.Recorder
}

// Runner 把 CrewSpec 交给 crews 引擎执行，并写出报告文件。
type Runner struct {
	cfg      RunnerConfig
	tracer   trace.Tracer
	runs     metric.Int64Counter
	duration metric.Float64Histogram
	logger   *zap.Logger
}

// NewRunner 创建 Runner。
func NewRunner(cfg RunnerConfig, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Crew.OutputDir == "" && cfg.Crew.ReportFile == "" {
		cfg.Crew.OutputDir, cfg.Crew.ReportFile = filepath.Split(DefaultReportPath)
	}
	if cfg.Crew.ReportFile == "" {
		cfg.Crew.ReportFile = filepath.Base(DefaultReportPath)
	}

	r := &Runner{
		cfg:    cfg,
		tracer: otel.Tracer(instrumentationName),
		logger: logger.With(zap.String("component", "research_runner")),
	}
	meter := otel.Meter(instrumentationName)
	var err error
	if r.runs, err = meter.Int64Counter("research.run.total",
		metric.WithDescription("Total number of research runs"),
		metric.WithUnit("{run}")); err != nil {
		r.logger.Warn("create run counter", zap.Error(err))
	}
	if r.duration, err = meter.Float64Histogram("research.run.duration",
		metric.WithDescription("Research run duration"),
		metric.WithUnit("s")); err != nil {
		r.logger.Warn("create run histogram", zap.Error(err))
	}
	return r
}

// ReportPath 返回报告写入位置。
func (r *Runner) ReportPath() string {
	return filepath.Join(r.cfg.Crew.OutputDir, r.cfg.Crew.ReportFile)
}

// RunOption configures a single run.
type RunOption func(*runOptions)

type runOptions struct {
	observer func(RunEvent)
}

// WithObserver 接收本次运行的事件，回调在执行 goroutine 上同步调用。
func WithObserver(fn func(RunEvent)) RunOption {
	return func(o *runOptions) { o.observer = fn }
}

// Run 执行 CrewSpec。主题为空时在任何网络请求之前返回 INVALID_REQUEST。
func (r *Runner) Run(ctx context.Context, spec *CrewSpec, opts ...RunOption) (*RunResult, error) {
	if spec == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "crew spec is required")
	}
	if err := spec.Validate(); err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err.Error()).WithCause(err)
	}
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}

	runID := uuid.NewString()
	start := time.Now()
	logger := r.logger.With(zap.String("run_id", runID), zap.String("process", string(spec.Process)))
	emit := func(t EventType, taskID, agent, msg string) {
		if o.observer != nil {
			o.observer(RunEvent{RunID: runID, Type: t, TaskID: taskID, Agent: agent, Message: msg, Time: time.Now().UTC()})
		}
	}

	if r.cfg.Crew.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Crew.RunTimeout)
		defer cancel()
	}
	ctx, span := r.tracer.Start(ctx, "research.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("crew.process", string(spec.Process)),
		attribute.Int("crew.tasks", len(spec.Tasks)),
	))
	defer span.End()

	fail := func(taskID string, err error) (*RunResult, error) {
		emit(EventCrewFailed, taskID, "", err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.record(ctx, spec.Process, "error", time.Since(start))
		logger.Error("research run failed", zap.String("task", taskID), zap.Error(err))
		return nil, &ExecutionError{RunID: runID, TaskID: taskID, Err: err}
	}

	crew, err := r.buildCrew(spec, logger, emit)
	if err != nil {
		return fail("", err)
	}
	emit(EventCrewStarted, "", "", spec.Topic)
	logger.Info("research run started", zap.String("topic", spec.Topic), zap.Int("tasks", len(spec.Tasks)))

	result, err := crew.Execute(ctx)
	if err != nil {
		var te *crews.TaskError
		if errors.As(err, &te) {
			return fail(te.TaskID, te.Err)
		}
		return fail("", err)
	}

	report := strings.TrimSpace(result.Final)
	if report == "" {
		return fail("", errors.New("crew produced an empty report"))
	}
	report = strings.ToValidUTF8(report, "�") + "\n"

	path := r.ReportPath()
	if err := writeReport(path, report); err != nil {
		return fail("", err)
	}
	emit(EventReportWritten, "", "", path)

	missing := ValidateReport(report)
	if len(missing) > 0 {
		logger.Warn("report is missing sections", zap.Strings("missing", missing))
	}

	out := &RunResult{
		RunID:           runID,
		Topic:           spec.Topic,
		Process:         spec.Process,
		Plan:            result.Plan,
		Report:          report,
		OutputPath:      path,
		TaskOutputs:     taskOutputs(spec, result),
		MissingSections: missing,
		TotalTokens:     result.TotalTokens,
		Duration:        time.Since(start),
	}
	span.SetAttributes(attribute.Int("run.tokens", out.TotalTokens))
	span.SetStatus(codes.Ok, "")
	r.record(ctx, spec.Process, "ok", out.Duration)
	logger.Info("research run completed", zap.String("output", path), zap.Duration("duration", out.Duration))
	return out, nil
}

func (r *Runner) record(ctx context.Context, process crews.ProcessType, status string, d time.Duration) {
	if r.cfg.Recorder != nil {
		r.cfg.Recorder.RecordRun(string(process), status, d)
	}
	attrs := metric.WithAttributes(attribute.String("process", string(process)), attribute.String("status", status))
	if r.runs != nil {
		r.runs.Add(ctx, 1, attrs)
	}
	if r.duration != nil {
		r.duration.Record(ctx, d.Seconds(), attrs)
	}
}

// buildCrew 为本次运行创建工具注册表与团队成员。每个成员只看到自己被授权的工具。
func (r *Runner) buildCrew(spec *CrewSpec, logger *zap.Logger, emit func(EventType, string, string, string)) (*crews.Crew, error) {
	registry, err := r.buildTools(spec.SearchKey, logger)
	if err != nil {
		return nil, err
	}

	var objective string
	if spec.Hierarchical() {
		objective = ReportContract().Render()
	}
	crew := crews.NewCrew(crews.CrewConfig{
		Name:        "research",
		Description: spec.Topic,
		Objective:   objective,
		Process:     spec.Process,
		Planning:    spec.Planning,
		FailFast:    true,
		Verbose:     r.cfg.Crew.Verbose,
		Observer: func(ev crews.Event) {
			if t, ok := crewEventTypes[ev.Type]; ok {
				emit(t, ev.TaskID, ev.MemberID, ev.Message)
			}
		},
	}, logger)

	onStep := func(agentID string, step tools.ReActStep) {
		for _, call := range step.Actions {
			emit(EventToolCall, "", agentID, call.Name)
		}
	}
	add := func(a *AgentSpec) {
		member := crews.NewLLMAgent(crews.LLMAgentConfig{
			ID:            a.ID,
			Role:          crewRole(a),
			Provider:      a.Model.Client,
			NewRequest:    a.Model.ChatRequest,
			Model:         a.Model.Model,
			Tools:         tools.NewScopedRegistry(registry, a.ToolNames()...),
			Recorder:      r.cfg.ToolRecorder,
			MaxIterations: r.cfg.Crew.MaxIterations,
			OnStep:        onStep,
		}, logger)
		crew.AddMember(member, crewRole(a))
	}

	if spec.Manager != nil {
		add(spec.Manager)
	}
	for _, a := range spec.Agents {
		add(a)
	}
	for _, t := range spec.Tasks {
		crew.AddTask(crews.CrewTask{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
			Expected:    t.Expected.Render(),
			AssignedTo:  t.AgentID(),
		})
	}
	return crew, nil
}

// buildTools 创建本次运行专用的注册表，搜索凭据来自会话而不是进程环境。
func (r *Runner) buildTools(searchKey string, logger *zap.Logger) (*tools.DefaultRegistry, error) {
	search := r.cfg.Search
	registry := tools.NewDefaultRegistry(logger)

	searchCfg := tools.DefaultWebSearchToolConfig()
	searchCfg.Provider = tools.NewSerperProvider(tools.SerperConfig{
		APIKey:  searchKey,
		BaseURL: search.SerperURL,
		Timeout: search.Timeout,
	}, r.cfg.HTTPClient, logger)
	if search.Timeout > 0 {
		searchCfg.Timeout = search.Timeout
	}
	if search.MaxResults > 0 {
		searchCfg.DefaultOpts.MaxResults = search.MaxResults
	}
	if search.CallsPerMinute > 0 {
		searchCfg.RateLimit = &tools.RateLimitConfig{MaxCalls: search.CallsPerMinute, Window: time.Minute}
	}
	if err := tools.RegisterWebSearchTool(registry, searchCfg, logger); err != nil {
		return nil, fmt.Errorf("register %s: %w", tools.WebSearchToolName, err)
	}

	scrapeCfg := tools.DefaultWebScrapeToolConfig()
	scrapeCfg.Provider = tools.NewHTTPScraper(r.cfg.HTTPClient, logger)
	if search.ScrapeTimeout > 0 {
		scrapeCfg.Timeout = search.ScrapeTimeout
	}
	if search.ScrapeMaxLength > 0 {
		scrapeCfg.DefaultOpts.MaxLength = search.ScrapeMaxLength
	}
	if err := tools.RegisterWebScrapeTool(registry, scrapeCfg, logger); err != nil {
		return nil, fmt.Errorf("register %s: %w", tools.WebScrapeToolName, err)
	}
	return registry, nil
}

var crewEventTypes = map[crews.EventType]EventType{
	crews.EventPlanReady:     EventPlanReady,
	crews.EventTaskStarted:   EventTaskStarted,
	crews.EventTaskDelegated: EventTaskDelegated,
	crews.EventTaskFallback:  EventTaskFallback,
	crews.EventTaskCompleted: EventTaskCompleted,
	crews.EventTaskFailed:    EventTaskFailed,
	crews.EventSynthesized:   EventSynthesized,
}

func crewRole(a *AgentSpec) crews.Role {
	return crews.Role{
		Name:            a.Role,
		Goal:            a.Goal,
		Backstory:       a.Backstory,
		Tools:           a.ToolNames(),
		AllowDelegation: a.AllowDelegation,
	}
}

func taskOutputs(spec *CrewSpec, result *crews.CrewResult) []TaskOutput {
	outputs := make([]TaskOutput, 0, len(spec.Tasks))
	for _, t := range spec.Tasks {
		tr, ok := result.TaskResults[t.ID]
		if !ok {
			continue
		}
		outputs = append(outputs, TaskOutput{
			TaskID:    t.ID,
			Name:      t.Name,
			Agent:     tr.MemberID,
			Output:    tr.Output,
			Error:     tr.Error,
			Delegated: tr.Delegated,
		})
	}
	return outputs
}

// writeReport 覆盖写入报告，目录不存在时创建。
func writeReport(path, report string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
