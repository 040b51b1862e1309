package crews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Role 定义成员在团队中的角色。
type Role struct {
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Goal            string   `json:"goal"`
	Backstory       string   `json:"backstory,omitempty"`
	Tools           []string `json:"tools,omitempty"`
	AllowDelegation bool     `json:"allow_delegation"`
}

// CrewMember 是团队中的一个成员。
type CrewMember struct {
	ID     string       `json:"id"`
	Role   Role         `json:"role"`
	Agent  CrewAgent    `json:"-"`
	Status MemberStatus `json:"status"`
}

// MemberStatus 表示成员状态。
type MemberStatus string

const (
	MemberStatusIdle    MemberStatus = "idle"
	MemberStatusWorking MemberStatus = "working"
)

// CrewAgent 是团队成员需要实现的接口。
type CrewAgent interface {
	ID() string
	Execute(ctx context.Context, task CrewTask) (*TaskResult, error)
	Negotiate(ctx context.Context, proposal Proposal) (*NegotiationResult, error)
}

// Planner 由能在执行前制定计划的管理者实现。
type Planner interface {
	Plan(ctx context.Context, tasks []CrewTask, roster []Role) (string, error)
}

// Synthesizer 由能汇总全部任务输出的管理者实现。
type Synthesizer interface {
	Synthesize(ctx context.Context, objective string, results []*TaskResult) (*TaskResult, error)
}

// CrewTask 是团队中的一个任务。
type CrewTask struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description"`
	Expected    string `json:"expected_output"`
	Context     string `json:"context,omitempty"`
	AssignedTo  string `json:"assigned_to,omitempty"`
}

// TaskResult 是单个任务的执行结果。
type TaskResult struct {
	TaskID     string `json:"task_id"`
	MemberID   string `json:"member_id,omitempty"`
	Output     string `json:"output"`
	Error      string `json:"error,omitempty"`
	Delegated  bool   `json:"delegated,omitempty"`
	TokensUsed int    `json:"tokens_used,omitempty"`
	Duration   int64  `json:"duration_ms"`
}

// Proposal 是管理者发给成员的委派提案。
type Proposal struct {
	Type       ProposalType `json:"type"`
	FromMember string       `json:"from_member"`
	ToMember   string       `json:"to_member,omitempty"`
	Task       *CrewTask    `json:"task,omitempty"`
	Message    string       `json:"message"`
}

// ProposalType 定义提案类型。
type ProposalType string

const ProposalTypeDelegate ProposalType = "delegate"

// NegotiationResult 是协商的应答。
type NegotiationResult struct {
	Accepted bool   `json:"accepted"`
	Response string `json:"response"`
}

// ProcessType 定义任务处理方式。
type ProcessType string

const (
	ProcessSequential   ProcessType = "sequential"
	ProcessHierarchical ProcessType = "hierarchical"
)

// EventType 标识执行过程中的事件。
type EventType string

const (
	EventPlanReady     EventType = "plan_ready"
	EventTaskStarted   EventType = "task_started"
	EventTaskDelegated EventType = "task_delegated"
	EventTaskFallback  EventType = "task_fallback"
	EventTaskCompleted EventType = "task_completed"
	EventTaskFailed    EventType = "task_failed"
	EventSynthesized   EventType = "synthesized"
)

// Event 在 Crew 执行期间同步发出。
type Event struct {
	Type     EventType `json:"type"`
	TaskID   string    `json:"task_id,omitempty"`
	MemberID string    `json:"member_id,omitempty"`
	Message  string    `json:"message,omitempty"`
	Time     time.Time `json:"time"`
}

var (
	ErrNoManager     = errors.New("hierarchical crew requires exactly one delegating member")
	ErrNoMembers     = errors.New("crew has no members")
	ErrNoTasks       = errors.New("crew has no tasks")
	ErrUnknownMember = errors.New("task assigned to unknown member")
)

// TaskError 表示某个任务执行失败。
type TaskError struct {
	TaskID   string
	MemberID string
	Err      error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s (member %s) failed: %v", e.TaskID, e.MemberID, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// Crew 是协同工作的一组成员。
type Crew struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Objective   string                 `json:"objective,omitempty"`
	Members     map[string]*CrewMember `json:"members"`
	Tasks       []*CrewTask            `json:"tasks"`
	Process     ProcessType            `json:"process"`
	Planning    bool                   `json:"planning"`
	FailFast    bool                   `json:"fail_fast"`
	Verbose     bool                   `json:"verbose"`

	order    []string // 成员加入顺序
	observer func(Event)
	logger   *zap.Logger
	mu       sync.RWMutex
}

// CrewConfig 配置一个团队。
type CrewConfig struct {
	Name        string
	Description string
	// Objective 是层级模式下管理者汇总时的最终交付要求
	Objective string
	Process   ProcessType
	Planning  bool
	// FailFast 为 true 时任一任务失败即中止并返回 *TaskError
	FailFast bool
	Verbose  bool
	Observer func(Event)
}

// NewCrew 创建新的团队。
func NewCrew(config CrewConfig, logger *zap.Logger) *Crew {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Process == "" {
		config.Process = ProcessSequential
	}
	return &Crew{
		ID:          "crew_" + uuid.NewString(),
		Name:        config.Name,
		Description: config.Description,
		Objective:   config.Objective,
		Members:     make(map[string]*CrewMember),
		Tasks:       make([]*CrewTask, 0),
		Process:     config.Process,
		Planning:    config.Planning,
		FailFast:    config.FailFast,
		Verbose:     config.Verbose,
		observer:    config.Observer,
		logger:      logger.With(zap.String("component", "crew"), zap.String("crew", config.Name)),
	}
}

// AddMember 向团队添加成员，重复 ID 会替换原成员。
func (c *Crew) AddMember(agent CrewAgent, role Role) *CrewMember {
	c.mu.Lock()
	defer c.mu.Unlock()

	member := &CrewMember{
		ID:     agent.ID(),
		Role:   role,
		Agent:  agent,
		Status: MemberStatusIdle,
	}
	if _, exists := c.Members[member.ID]; !exists {
		c.order = append(c.order, member.ID)
	}
	c.Members[member.ID] = member
	c.logger.Info("added crew member", zap.String("id", member.ID), zap.String("role", role.Name))
	return member
}

// AddTask 添加任务。
func (c *Crew) AddTask(task CrewTask) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if task.ID == "" {
		task.ID = fmt.Sprintf("task_%d", len(c.Tasks)+1)
	}
	c.Tasks = append(c.Tasks, &task)
}

// Manager 返回唯一允许委派的成员。
func (c *Crew) Manager() (*CrewMember, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.manager()
}

func (c *Crew) manager() (*CrewMember, error) {
	var manager *CrewMember
	for _, id := range c.order {
		m := c.Members[id]
		if !m.Role.AllowDelegation {
			continue
		}
		if manager != nil {
			return nil, fmt.Errorf("%w: found %s and %s", ErrNoManager, manager.ID, m.ID)
		}
		manager = m
	}
	if manager == nil {
		return nil, ErrNoManager
	}
	return manager, nil
}

// Validate 检查团队结构是否可执行。
func (c *Crew) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.Members) == 0 {
		return ErrNoMembers
	}
	if len(c.Tasks) == 0 {
		return ErrNoTasks
	}
	for _, t := range c.Tasks {
		if t.AssignedTo == "" {
			continue
		}
		if _, ok := c.Members[t.AssignedTo]; !ok {
			return fmt.Errorf("%w: task %s -> %s", ErrUnknownMember, t.ID, t.AssignedTo)
		}
	}
	if c.Process == ProcessHierarchical {
		if _, err := c.manager(); err != nil {
			return err
		}
	}
	return nil
}

// Execute 按 Process 执行全部任务。
func (c *Crew) Execute(ctx context.Context) (*CrewResult, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	c.logger.Info("starting crew execution", zap.Int("tasks", len(c.Tasks)), zap.String("process", string(c.Process)))
	start := time.Now()

	result := &CrewResult{
		CrewID:      c.ID,
		Process:     c.Process,
		TaskResults: make(map[string]*TaskResult),
		StartTime:   start,
	}

	var err error
	switch c.Process {
	case ProcessSequential:
		err = c.executeSequential(ctx, result)
	case ProcessHierarchical:
		err = c.executeHierarchical(ctx, result)
	default:
		err = fmt.Errorf("unknown process type %q", c.Process)
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(start)
	if err != nil {
		c.logger.Warn("crew execution failed", zap.Duration("duration", result.Duration), zap.Error(err))
		return result, err
	}
	if result.Final == "" && len(result.Order) > 0 {
		if last := result.TaskResults[result.Order[len(result.Order)-1]]; last != nil {
			result.Final = last.Output
		}
	}
	c.logger.Info("crew execution completed", zap.Duration("duration", result.Duration))
	return result, nil
}

func (c *Crew) emit(t EventType, taskID, memberID, msg string) {
	if c.Verbose {
		c.logger.Info("crew event", zap.String("type", string(t)), zap.String("task", taskID), zap.String("member", memberID))
	}
	if c.observer != nil {
		c.observer(Event{Type: t, TaskID: taskID, MemberID: memberID, Message: msg, Time: time.Now().UTC()})
	}
}

// runTask 让 member 执行 task 并记录结果。
func (c *Crew) runTask(ctx context.Context, member *CrewMember, task CrewTask) (*TaskResult, error) {
	c.emit(EventTaskStarted, task.ID, member.ID, task.Name)
	start := time.Now()

	c.setStatus(member, MemberStatusWorking)
	res, err := member.Agent.Execute(ctx, task)
	c.setStatus(member, MemberStatusIdle)

	if err == nil && res == nil {
		err = errors.New("agent returned no result")
	}
	if err != nil {
		c.emit(EventTaskFailed, task.ID, member.ID, err.Error())
		return &TaskResult{TaskID: task.ID, MemberID: member.ID, Error: err.Error(), Duration: time.Since(start).Milliseconds()}, err
	}
	if res.TaskID == "" {
		res.TaskID = task.ID
	}
	if res.MemberID == "" {
		res.MemberID = member.ID
	}
	if res.Duration == 0 {
		res.Duration = time.Since(start).Milliseconds()
	}
	c.emit(EventTaskCompleted, task.ID, member.ID, "")
	return res, nil
}

func (c *Crew) setStatus(m *CrewMember, s MemberStatus) {
	c.mu.Lock()
	m.Status = s
	c.mu.Unlock()
}

func (c *Crew) record(result *CrewResult, tr *TaskResult) {
	result.TaskResults[tr.TaskID] = tr
	result.Order = append(result.Order, tr.TaskID)
	result.TotalTokens += tr.TokensUsed
}

func (c *Crew) executeSequential(ctx context.Context, result *CrewResult) error {
	var prior []*TaskResult
	for _, task := range c.Tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		member := c.findBestMember(task)
		if member == nil {
			return fmt.Errorf("no member found for task: %s", task.ID)
		}

		t := *task
		t.Context = joinContext(t.Context, prior)
		taskResult, err := c.runTask(ctx, member, t)
		c.record(result, taskResult)
		if err != nil {
			if c.FailFast || ctx.Err() != nil {
				return &TaskError{TaskID: task.ID, MemberID: member.ID, Err: err}
			}
			continue
		}
		prior = append(prior, taskResult)
	}
	return nil
}

func (c *Crew) executeHierarchical(ctx context.Context, result *CrewResult) error {
	manager, err := c.Manager()
	if err != nil {
		return err
	}

	var plan string
	if c.Planning {
		if p, ok := manager.Agent.(Planner); ok {
			tasks := make([]CrewTask, len(c.Tasks))
			for i, t := range c.Tasks {
				tasks[i] = *t
			}
			plan, err = p.Plan(ctx, tasks, c.roster())
			if err != nil {
				c.logger.Warn("planning failed, continuing without plan", zap.Error(err))
				plan = ""
			} else {
				result.Plan = plan
				c.emit(EventPlanReady, "", manager.ID, plan)
			}
		}
	}

	var prior []*TaskResult
	for _, task := range c.Tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		t := *task
		t.Context = joinContext(t.Context, prior)
		if plan != "" {
			t.Context = strings.TrimSpace("Crew plan:\n" + plan + "\n\n" + t.Context)
		}

		delegatee := c.delegate(ctx, manager, &t)
		taskResult, err := c.runTask(ctx, delegatee, t)
		if err != nil && delegatee.ID != manager.ID && ctx.Err() == nil {
			c.logger.Warn("delegated task failed, manager takes over",
				zap.String("delegatee", delegatee.ID), zap.String("task", t.ID), zap.Error(err))
			c.emit(EventTaskFallback, t.ID, manager.ID, err.Error())
			taskResult, err = c.runTask(ctx, manager, t)
		}
		taskResult.Delegated = delegatee.ID != manager.ID && taskResult.MemberID == delegatee.ID
		c.record(result, taskResult)
		if err != nil {
			if c.FailFast || ctx.Err() != nil {
				return &TaskError{TaskID: t.ID, MemberID: taskResult.MemberID, Err: err}
			}
			continue
		}
		prior = append(prior, taskResult)
	}

	if s, ok := manager.Agent.(Synthesizer); ok && len(prior) > 0 {
		final, err := s.Synthesize(ctx, c.Objective, prior)
		if err != nil {
			return &TaskError{TaskID: "synthesis", MemberID: manager.ID, Err: err}
		}
		result.Final = final.Output
		result.TotalTokens += final.TokensUsed
		c.emit(EventSynthesized, "", manager.ID, "")
	}
	return nil
}

// delegate 与任务的指定成员协商，拒绝或失败时回退到管理者。
func (c *Crew) delegate(ctx context.Context, manager *CrewMember, task *CrewTask) *CrewMember {
	delegatee := c.findBestMember(task)
	if delegatee == nil || delegatee.ID == manager.ID {
		return manager
	}
	proposal := Proposal{
		Type:       ProposalTypeDelegate,
		FromMember: manager.ID,
		ToMember:   delegatee.ID,
		Task:       task,
		Message:    fmt.Sprintf("Please handle task: %s", task.Description),
	}
	negResult, negErr := delegatee.Agent.Negotiate(ctx, proposal)
	switch {
	case negErr != nil:
		c.logger.Warn("negotiation failed, falling back to manager",
			zap.String("delegatee", delegatee.ID),
			zap.String("task", task.ID),
			zap.Error(negErr))
		c.emit(EventTaskFallback, task.ID, manager.ID, negErr.Error())
		return manager
	case negResult == nil || !negResult.Accepted:
		c.emit(EventTaskFallback, task.ID, manager.ID, "delegation rejected")
		return manager
	}
	c.emit(EventTaskDelegated, task.ID, delegatee.ID, negResult.Response)
	return delegatee
}

// findBestMember 优先返回指定成员，否则按加入顺序返回首个空闲且不负责委派的成员。
func (c *Crew) findBestMember(task *CrewTask) *CrewMember {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if task.AssignedTo != "" {
		if member, ok := c.Members[task.AssignedTo]; ok {
			return member
		}
	}
	var fallback *CrewMember
	for _, id := range c.order {
		member := c.Members[id]
		if member.Status != MemberStatusIdle {
			continue
		}
		if !member.Role.AllowDelegation {
			return member
		}
		if fallback == nil {
			fallback = member
		}
	}
	return fallback
}

func (c *Crew) roster() []Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	roles := make([]Role, 0, len(c.order))
	for _, id := range c.order {
		roles = append(roles, c.Members[id].Role)
	}
	return roles
}

// joinContext 把已完成任务的输出拼接到任务上下文后面。
func joinContext(base string, prior []*TaskResult) string {
	if len(prior) == 0 {
		return base
	}
	var b strings.Builder
	b.WriteString(base)
	for _, r := range prior {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Output of task %s:\n%s", r.TaskID, r.Output)
	}
	return b.String()
}

// CrewResult 是一次团队执行的结果。
type CrewResult struct {
	CrewID      string                 `json:"crew_id"`
	Process     ProcessType            `json:"process"`
	Plan        string                 `json:"plan,omitempty"`
	TaskResults map[string]*TaskResult `json:"task_results"`
	Order       []string               `json:"order"`
	Final       string                 `json:"final"`
	TotalTokens int                    `json:"total_tokens,omitempty"`
	StartTime   time.Time              `json:"start_time"`
	EndTime     time.Time              `json:"end_time"`
	Duration    time.Duration          `json:"duration"`
}
