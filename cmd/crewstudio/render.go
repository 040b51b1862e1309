package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/BaSui01/crewstudio/agent/research"
	"github.com/BaSui01/crewstudio/llm/catalog"
)

// =============================================================================
// 🎨 终端样式
// =============================================================================

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	selectStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

// isTTY 标准输出是否是终端
func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// termWidth 返回终端宽度（上限 120），非终端返回 80
func termWidth() int {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w - 4
		if width > 120 {
			width = 120
		}
	}
	return width
}

// statusStyle 按列表状态着色
func statusStyle(s catalog.ListStatus) lipgloss.Style {
	switch s {
	case catalog.StatusLive, catalog.StatusStatic:
		return okStyle
	case catalog.StatusFallback, catalog.StatusTimeout:
		return warnStyle
	default:
		return errStyle
	}
}

// =============================================================================
// 📋 表格
// =============================================================================

// renderTable 以固定列宽输出表格，列宽取每列最长单元格
func renderTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	line := func(cells []string, style *lipgloss.Style) string {
		parts := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			st := lipgloss.NewStyle().Width(widths[i] + 2)
			if style != nil {
				st = st.Inherit(*style)
			}
			parts[i] = st.Render(cell)
		}
		return strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, parts...), " ")
	}

	fmt.Fprintln(w, line(headers, &headerStyle))
	for _, row := range rows {
		fmt.Fprintln(w, line(row, nil))
	}
}

// =============================================================================
// 📝 Markdown 渲染
// =============================================================================

// reportRenderer 在终端中渲染报告，plain 模式原样输出
type reportRenderer struct {
	renderer *glamour.TermRenderer
}

func newReportRenderer(plain bool) (*reportRenderer, error) {
	if plain {
		return &reportRenderer{}, nil
	}
	style := glamour.WithStandardStyle("dark")
	if !isTTY() {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(
		style,
		glamour.WithWordWrap(termWidth()),
		glamour.WithEmoji(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return &reportRenderer{renderer: r}, nil
}

// Render 渲染失败时返回原文
func (r *reportRenderer) Render(markdown string) string {
	if r == nil || r.renderer == nil || strings.TrimSpace(markdown) == "" {
		return markdown
	}
	out, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}

// =============================================================================
// 📡 运行事件
// =============================================================================

// formatEvent 把运行事件格式化为一行进度
func formatEvent(ev research.RunEvent) string {
	label := string(ev.Type)
	switch ev.Type {
	case research.EventTaskFailed, research.EventCrewFailed:
		label = errStyle.Render(label)
	case research.EventTaskCompleted, research.EventReportWritten, research.EventSynthesized:
		label = okStyle.Render(label)
	case research.EventTaskFallback:
		label = warnStyle.Render(label)
	default:
		label = selectStyle.Render(label)
	}

	var b strings.Builder
	b.WriteString(dimStyle.Render(ev.Time.Format("15:04:05")))
	b.WriteString(" ")
	b.WriteString(label)
	if ev.TaskID != "" {
		b.WriteString(" task=" + ev.TaskID)
	}
	if ev.Agent != "" {
		b.WriteString(" agent=" + ev.Agent)
	}
	if msg := strings.TrimSpace(ev.Message); msg != "" {
		if r := []rune(msg); len(r) > 160 {
			msg = string(r[:160]) + "..."
		}
		b.WriteString(" " + dimStyle.Render(strings.ReplaceAll(msg, "\n", " ")))
	}
	return b.String()
}
