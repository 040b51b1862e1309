package research

import (
	"github.com/BaSui01/crewstudio/llm/factory"
	"github.com/BaSui01/crewstudio/llm/tools"
)

// ToolRef 引用 Agent 可以使用的工具。
type ToolRef string

const (
	ToolSearch ToolRef = tools.WebSearchToolName
	ToolScrape ToolRef = tools.WebScrapeToolName
)

// Agent IDs，同时作为任务分配的目标。
const (
	ManagerID       = "research_director"
	WebResearcherID = "web_researcher"
	DataAnalystID   = "data_analyst"
	FactCheckerID   = "fact_checker"
	SingleAgentID   = "research_analyst"
)

// ReportYear 是报告针对的年份。
const ReportYear = "2026"

// AgentSpec 描述一个 Agent：身份、目标、工具与委派权限。
type AgentSpec struct {
	ID              string          `json:"id"`
	Role            string          `json:"role"`
	Goal            string          `json:"goal"`
	Backstory       string          `json:"backstory"`
	Tools           []ToolRef       `json:"tools"`
	AllowDelegation bool            `json:"allow_delegation"`
	Model           *factory.Handle `json:"model,omitempty"`
}

// HasTool reports whether the agent may call t.
func (a *AgentSpec) HasTool(t ToolRef) bool {
	for _, ref := range a.Tools {
		if ref == t {
			return true
		}
	}
	return false
}

// ToolNames 返回工具名，顺序与 Tools 一致。
func (a *AgentSpec) ToolNames() []string {
	names := make([]string, len(a.Tools))
	for i, t := range a.Tools {
		names[i] = string(t)
	}
	return names
}

// 固定人设
const (
	managerGoal      = "Coordinate research team to produce comprehensive, accurate, and well-cited analysis"
	managerBackstory = `You are an expert research director with decades of experience managing complex research projects. You excel at:
- Breaking down complex topics into focused research tasks
- Delegating work strategically to specialist researchers
- Validating findings for accuracy and completeness
- Synthesizing insights into coherent, actionable reports
- Ensuring all claims are properly cited with authoritative sources

Your role is to coordinate the research team, not to do the research yourself. Delegate specific tasks to your specialized researchers and validate their work.`

	webResearcherGoal      = "Find and extract comprehensive information from authoritative web sources"
	webResearcherBackstory = `You are an expert web researcher skilled at:
- Locating authoritative sources through strategic search queries
- Extracting relevant information from websites and documents
- Identifying credible sources and cross-referencing information
- Gathering recent data, statistics, and expert opinions

Your research is thorough, well-sourced, and focused on current information.`

	dataAnalystGoal      = "Analyze research findings to identify patterns, trends, and actionable insights"
	dataAnalystBackstory = `You are an experienced data analyst skilled at:
- Identifying patterns and trends in research data
- Performing comparative analysis across multiple sources
- Extracting key metrics and statistical insights
- Translating complex data into clear, actionable findings

Your analysis is rigorous, data-driven, and highlights what matters most.`

	factCheckerGoal      = "Verify accuracy of claims and validate source credibility"
	factCheckerBackstory = `You are a meticulous fact-checker focused on:
- Cross-referencing claims across multiple authoritative sources
- Validating source credibility and publication dates
- Identifying and flagging unsubstantiated claims
- Ensuring all information is current and accurate

Your verification ensures research quality and trustworthiness.`

	singleGoal      = "Conduct thorough research on given topics for the current year " + ReportYear
	singleBackstory = "Expert at analyzing and summarizing complex information using web research"
)

// BuildManager 构建负责协调的 Research Director：允许委派，没有工具。
func BuildManager(h *factory.Handle) *AgentSpec {
	return &AgentSpec{
		ID:              ManagerID,
		Role:            "Research Director",
		Goal:            managerGoal,
		Backstory:       managerBackstory,
		AllowDelegation: true,
		Model:           h,
	}
}

// BuildWorkers 构建三名专家：网络研究、数据分析、事实核查。专家都不能委派。
func BuildWorkers(h *factory.Handle) [3]*AgentSpec {
	return [3]*AgentSpec{
		{
			ID:        WebResearcherID,
			Role:      "Web Research Specialist",
			Goal:      webResearcherGoal,
			Backstory: webResearcherBackstory,
			Tools:     []ToolRef{ToolSearch, ToolScrape},
			Model:     h,
		},
		{
			ID:        DataAnalystID,
			Role:      "Data Analysis Specialist",
			Goal:      dataAnalystGoal,
			Backstory: dataAnalystBackstory,
			Tools:     []ToolRef{ToolSearch},
			Model:     h,
		},
		{
			ID:        FactCheckerID,
			Role:      "Fact Verification Specialist",
			Goal:      factCheckerGoal,
			Backstory: factCheckerBackstory,
			Tools:     []ToolRef{ToolSearch, ToolScrape},
			Model:     h,
		},
	}
}

// BuildSingle 构建顺序模式下的通用研究员。
func BuildSingle(h *factory.Handle) *AgentSpec {
	return &AgentSpec{
		ID:        SingleAgentID,
		Role:      "Research Analyst",
		Goal:      singleGoal,
		Backstory: singleBackstory,
		Tools:     []ToolRef{ToolSearch, ToolScrape},
		Model:     h,
	}
}
