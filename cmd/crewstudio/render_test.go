package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/crewstudio/agent/research"
)

func TestFormatEvent(t *testing.T) {
	ev := research.RunEvent{
		Type:    research.EventTaskCompleted,
		TaskID:  "research",
		Agent:   "web_research_specialist",
		Message: "found\n12 sources",
		Time:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	line := formatEvent(ev)

	assert.Contains(t, line, "03:04:05")
	assert.Contains(t, line, "task_completed")
	assert.Contains(t, line, "task=research")
	assert.Contains(t, line, "agent=web_research_specialist")
	assert.Contains(t, line, "found 12 sources")
	assert.NotContains(t, line, "\n")
}

func TestFormatEvent_TruncatesLongMessages(t *testing.T) {
	ev := research.RunEvent{Type: research.EventToolCall, Message: strings.Repeat("研", 400), Time: time.Now()}
	line := formatEvent(ev)
	assert.Contains(t, line, "...")
	assert.Less(t, len([]rune(line)), 220)
}

func TestReportRenderer_Plain(t *testing.T) {
	r, err := newReportRenderer(true)
	require.NoError(t, err)

	md := "# Executive Summary\n\nSome **bold** text.\n"
	assert.Equal(t, md, r.Render(md))
}

func TestReportRenderer_Styled(t *testing.T) {
	r, err := newReportRenderer(false)
	require.NoError(t, err)

	out := r.Render("# Key Findings\n\n- one\n- two\n")
	assert.Contains(t, out, "Key Findings")
	assert.Contains(t, out, "one")
}

func TestRenderTable_AlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	renderTable(&buf, []string{"A", "B"}, [][]string{{"long-value", "x"}, {"s", "y"}})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Index(lines[1], "x"), strings.Index(lines[2], "y"))
}
