package research

import (
	"fmt"
	"strings"
)

// DefaultReportPath 是最终报告的相对路径，外部使用者依赖这一位置。
const DefaultReportPath = "output/research_report.md"

// Section 是预期输出中的一个必需章节。
type Section struct {
	Title        string   `json:"title" yaml:"title"`
	Requirements []string `json:"requirements,omitempty" yaml:"requirements,omitempty"`
}

// ExpectedOutput 是任务结果必须满足的结构约定。
type ExpectedOutput struct {
	Summary  string    `json:"summary" yaml:"summary"`
	Sections []Section `json:"sections" yaml:"sections"`
}

// Titles 按顺序返回章节标题。
func (e ExpectedOutput) Titles() []string {
	titles := make([]string, len(e.Sections))
	for i, s := range e.Sections {
		titles[i] = s.Title
	}
	return titles
}

// Render 把约定渲染为提示词中使用的 markdown 文本。
func (e ExpectedOutput) Render() string {
	var b strings.Builder
	b.WriteString(e.Summary)
	for _, s := range e.Sections {
		fmt.Fprintf(&b, "\n\n# %s", s.Title)
		for _, r := range s.Requirements {
			fmt.Fprintf(&b, "\n- %s", r)
		}
	}
	return b.String()
}

// TaskSpec 是构建完成后不再修改的任务。
type TaskSpec struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Expected    ExpectedOutput `json:"expected_output"`
	Agent       *AgentSpec     `json:"-"`
	OutputFile  string         `json:"output_file,omitempty"`
}

// AgentID 返回执行该任务的 Agent ID。
func (t *TaskSpec) AgentID() string {
	if t.Agent == nil {
		return ""
	}
	return t.Agent.ID
}

// ReportContract 返回最终研究报告的章节约定。
func ReportContract() ExpectedOutput {
	return ExpectedOutput{
		Summary: "A comprehensive research report for the year " + ReportYear + ". Format in clean markdown with:",
		Sections: []Section{
			{Title: "Executive Summary", Requirements: []string{"Brief overview and key findings"}},
			{Title: "Key Findings", Requirements: []string{"Major discoveries, trends, data points"}},
			{Title: "Analysis", Requirements: []string{"Detailed examination and implications"}},
			{Title: "Future Implications", Requirements: []string{"Short-term and long-term projections"}},
			{Title: "Recommendations", Requirements: []string{"Strategic suggestions and action items"}},
			{Title: "Citations", Requirements: []string{
				"All sources with URLs and dates",
				"For each source cite the title, URL and publication date when available",
			}},
		},
	}
}

func researchContract() ExpectedOutput {
	return ExpectedOutput{
		Summary: "Detailed research findings including:",
		Sections: []Section{
			{Title: "Key Facts and Developments"},
			{Title: "Recent Statistics and Data Points"},
			{Title: "Expert Opinions and Industry Insights"},
			{Title: "Sources", Requirements: []string{"List of authoritative sources with URLs and dates"}},
		},
	}
}

func analysisContract() ExpectedOutput {
	return ExpectedOutput{
		Summary: "Structured analysis including:",
		Sections: []Section{
			{Title: "Major Trends", Requirements: []string{"Major trends and their implications"}},
			{Title: "Comparative Insights", Requirements: []string{"Comparative insights with context"}},
			{Title: "Key Metrics", Requirements: []string{"Key metrics with interpretation"}},
			{Title: "Opportunities and Risks", Requirements: []string{"Strategic opportunities and risks"}},
		},
	}
}

func verificationContract() ExpectedOutput {
	return ExpectedOutput{
		Summary: "Verification report including:",
		Sections: []Section{
			{Title: "Confirmed Facts", Requirements: []string{"Confirmed facts with supporting sources"}},
			{Title: "Source Credibility", Requirements: []string{"Source credibility assessment"}},
			{Title: "Flagged Concerns", Requirements: []string{"Any flagged concerns or corrections"}},
			{Title: "Quality Rating", Requirements: []string{"Overall quality and reliability rating"}},
		},
	}
}

// BuildSingleTask 构建顺序模式的唯一任务，结果写入 DefaultReportPath。
func BuildSingleTask(topic string, agent *AgentSpec) *TaskSpec {
	return &TaskSpec{
		ID:          "research_report",
		Name:        "Research report",
		Description: strings.TrimSpace(topic),
		Expected:    ReportContract(),
		Agent:       agent,
		OutputFile:  DefaultReportPath,
	}
}

// BuildHierarchicalTasks 为三名专家各构建一个任务：研究、分析、核查。
func BuildHierarchicalTasks(topic string, workers [3]*AgentSpec) [3]*TaskSpec {
	topic = strings.TrimSpace(topic)
	return [3]*TaskSpec{
		{
			ID:   "web_research",
			Name: "Web research",
			Description: "Conduct comprehensive web research on: " + topic + `

Your objectives:
1. Find authoritative sources (academic, industry leaders, official reports)
2. Gather recent data, statistics, and developments (prioritize 2025-` + ReportYear + `)
3. Extract key facts, trends, and expert opinions
4. Document all sources with URLs and publication dates

Focus on breadth and quality of sources.`,
			Expected: researchContract(),
			Agent:    workers[0],
		},
		{
			ID:   "data_analysis",
			Name: "Data analysis",
			Description: `Analyze the research findings to identify:
1. Major patterns and trends
2. Comparative insights (changes over time, market positioning)
3. Key metrics and their significance
4. Emerging opportunities and challenges

Provide structured, data-driven analysis.`,
			Expected: analysisContract(),
			Agent:    workers[1],
		},
		{
			ID:   "fact_verification",
			Name: "Fact verification",
			Description: `Verify the accuracy and credibility of all research findings:
1. Cross-reference major claims across sources
2. Validate source credibility and recency
3. Flag any unsubstantiated or outdated claims
4. Confirm all statistics and data points

Ensure research meets high quality standards.`,
			Expected: verificationContract(),
			Agent:    workers[2],
		},
	}
}

// ValidateReport 返回 markdown 中缺失的报告章节，按约定顺序排列。
// 代码块内的 # 行不计为标题。
func ValidateReport(markdown string) []string {
	found := make(map[string]bool)
	inFence := false
	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence || !(strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "**")) {
			continue
		}
		found[normalizeHeading(trimmed)] = true
	}

	var missing []string
	for _, title := range ReportContract().Titles() {
		if !found[normalizeHeading(title)] {
			missing = append(missing, title)
		}
	}
	return missing
}

// normalizeHeading 去掉 #、编号、强调符号和结尾冒号，统一小写。
// 编号和强调可能互相嵌套（"1. **X**"、"**1. X:**"），所以剥两轮。
func normalizeHeading(h string) string {
	h = strings.TrimLeft(h, "#")
	for range 2 {
		h = strings.TrimLeft(h, "0123456789.) ")
		h = strings.Trim(h, "*_: ")
	}
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}
