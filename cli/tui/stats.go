package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/canary/cli/reader"
)

type statsModel struct {
	data     *reader.StatsResponse
	cursor   int
	quitting bool
}

func newStatsModel(d *reader.StatsResponse) statsModel {
	return statsModel{data: d}
}

func (m statsModel) Init() tea.Cmd { return nil }

func (m statsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.data.Recent)-1 {
				m.cursor++
			}
		}
	}
	return m, nil
}

func statBox(label, value string, style lipgloss.Style) string {
	return StatBoxStyle.Render(MutedStyle.Render(label) + "\n" + StatValueStyle.Inherit(style).Render(value))
}

func (m statsModel) View() string {
	if m.quitting {
		return ""
	}
	d := m.data
	title := "Suite history"
	if d.Suite != "" {
		title += ": " + d.Suite
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		statBox("runs", fmt.Sprint(d.Runs), ValueStyle),
		statBox("succeeded", fmt.Sprint(d.Succeeded), SuccessStyle),
		statBox("failed", fmt.Sprint(d.Failed), ErrorStyle),
		statBox("aborted", fmt.Sprint(d.Aborted), WarningStyle),
		statBox("success rate", fmt.Sprintf("%.0f%%", d.SuccessRate*100), ValueStyle),
	))
	b.WriteString("\n\n")

	for i, r := range d.Recent {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		fmt.Fprintf(&b, "%s%-36s %s %s %d/%d  %s\n",
			cursor,
			r.SuiteRunID,
			StatusStyle(string(r.Status)).Width(10).Render(string(r.Status)),
			MutedStyle.Render(r.StartedAt),
			r.Passed, r.Scenarios,
			(time.Duration(r.DurationMS) * time.Millisecond).String(),
		)
	}

	return BoxStyle.Render(b.String()) + "\n" + HelpStyle.Render("↑/↓ select • q quit")
}
