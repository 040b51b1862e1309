package research

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BaSui01/crewstudio/agent/crews"
	"github.com/BaSui01/crewstudio/config"
	"github.com/BaSui01/crewstudio/llm/catalog"
	"github.com/BaSui01/crewstudio/llm/credentials"
	"github.com/BaSui01/crewstudio/llm/factory"
)

// ErrEmptyTopic 在研究主题为空时返回，早于任何网络请求。
var ErrEmptyTopic = errors.New("research topic is required")

// ModelBuilder 为 (provider, model, role) 构建模型句柄，由 *factory.Factory 实现。
type ModelBuilder interface {
	Build(provider, model string, role credentials.Role, creds *credentials.Store) (*factory.Handle, error)
}

// Deps 是组装所需的外部依赖。
type Deps struct {
	Models ModelBuilder
	// Credentials 是当前会话的凭据，nil 视为空
	Credentials *credentials.Store
}

// CrewSpec 是可运行的执行拓扑。
type CrewSpec struct {
	Process  crews.ProcessType `json:"process"`
	Planning bool              `json:"planning"`
	Topic    string            `json:"topic"`
	Manager  *AgentSpec        `json:"manager,omitempty"`
	Agents   []*AgentSpec      `json:"agents"`
	Tasks    []*TaskSpec       `json:"tasks"`
	// SearchKey 是本次运行使用的搜索凭据
	SearchKey string `json:"-"`
}

// Hierarchical reports whether the crew runs with a delegating manager.
func (s *CrewSpec) Hierarchical() bool { return s.Process == crews.ProcessHierarchical }

// Validate 检查拓扑约束：顺序模式 1 个 Agent 1 个任务；层级模式 1 个管理者、3 名专家、3 个任务，
// 只有管理者可以委派。
func (s *CrewSpec) Validate() error {
	if strings.TrimSpace(s.Topic) == "" {
		return ErrEmptyTopic
	}
	members := make(map[string]bool, len(s.Agents))
	for _, a := range s.Agents {
		if a == nil || a.Model == nil {
			return errors.New("agent without model handle")
		}
		if a.AllowDelegation {
			return fmt.Errorf("agent %s must not delegate", a.ID)
		}
		members[a.ID] = true
	}
	for _, t := range s.Tasks {
		if t == nil || t.Agent == nil || !members[t.Agent.ID] {
			return fmt.Errorf("task %s is not bound to a crew agent", taskID(t))
		}
	}

	switch s.Process {
	case crews.ProcessSequential:
		if s.Manager != nil {
			return errors.New("sequential crew has no manager")
		}
		if len(s.Agents) != 1 || len(s.Tasks) != 1 {
			return fmt.Errorf("sequential crew needs 1 agent and 1 task, got %d and %d", len(s.Agents), len(s.Tasks))
		}
	case crews.ProcessHierarchical:
		if s.Manager == nil || !s.Manager.AllowDelegation || s.Manager.Model == nil {
			return crews.ErrNoManager
		}
		if len(s.Agents) != len(s.Tasks) {
			return fmt.Errorf("hierarchical crew needs one task per worker, got %d workers and %d tasks", len(s.Agents), len(s.Tasks))
		}
	default:
		return fmt.Errorf("unsupported process %q", s.Process)
	}
	return nil
}

func taskID(t *TaskSpec) string {
	if t == nil {
		return "<nil>"
	}
	return t.ID
}

// Assemble 根据选择构建 CrewSpec。每个 Agent 都拿到单独构建的模型句柄。
func Assemble(sel config.Selection, topic string, deps Deps) (*CrewSpec, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	if deps.Models == nil {
		return nil, errors.New("model builder is required")
	}
	creds := deps.Credentials
	if creds == nil {
		creds = credentials.NewStore()
	}
	sel, err := sel.Normalize()
	if err != nil {
		var unknown *catalog.UnknownProviderError
		if errors.As(err, &unknown) {
			return nil, &factory.UnsupportedProviderError{Provider: unknown.Name}
		}
		return nil, err
	}

	spec := &CrewSpec{Topic: topic, SearchKey: creds.SearchKey()}
	if !sel.UseHierarchical {
		h, err := deps.Models.Build(sel.ManagerProvider, sel.ManagerModel, credentials.RoleSingle, creds)
		if err != nil {
			return nil, err
		}
		agent := BuildSingle(h)
		spec.Process = crews.ProcessSequential
		spec.Agents = []*AgentSpec{agent}
		spec.Tasks = []*TaskSpec{BuildSingleTask(topic, agent)}
		return validated(spec)
	}

	mh, err := deps.Models.Build(sel.ManagerProvider, sel.ManagerModel, credentials.RoleManager, creds)
	if err != nil {
		return nil, err
	}
	workers := BuildWorkers(nil)
	for _, w := range workers {
		if w.Model, err = deps.Models.Build(sel.WorkerProvider, sel.WorkerModel, credentials.RoleWorker, creds); err != nil {
			return nil, err
		}
	}
	tasks := BuildHierarchicalTasks(topic, workers)

	spec.Process = crews.ProcessHierarchical
	spec.Planning = true
	spec.Manager = BuildManager(mh)
	spec.Agents = workers[:]
	spec.Tasks = tasks[:]
	return validated(spec)
}

func validated(spec *CrewSpec) (*CrewSpec, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}
