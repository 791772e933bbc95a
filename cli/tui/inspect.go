package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/canary/cli/reader"
)

type inspectModel struct {
	data *reader.InspectResponse
	// offset is the first visible failure.
	offset   int
	height   int
	quitting bool
}

func newInspectModel(d *reader.InspectResponse) inspectModel {
	return inspectModel{data: d, height: 24}
}

func (m inspectModel) Init() tea.Cmd { return nil }

func (m inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.offset > 0 {
				m.offset--
			}
		case key.Matches(msg, keys.Down):
			if m.offset < len(m.data.Failures)-1 {
				m.offset++
			}
		}
	}
	return m, nil
}

func (m inspectModel) View() string {
	if m.quitting {
		return ""
	}
	d := m.data

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Suite run " + d.Run.SuiteRunID))
	b.WriteString("\n")
	for _, row := range [][2]string{
		{"Suite", d.Run.Suite},
		{"Started", d.Run.StartedAt},
		{"Scenarios", fmt.Sprintf("%d passed of %d", d.Run.Passed, d.Run.Scenarios)},
	} {
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render(row[0]+":"), ValueStyle.Render(row[1]))
	}
	fmt.Fprintf(&b, "%s %s\n\n", LabelStyle.Render("Status:"), StatusStyle(string(d.Run.Status)).Render(string(d.Run.Status)))

	for _, s := range d.Scenarios {
		fmt.Fprintf(&b, "%s %s\n", StatusStyle(string(s.Status)).Width(10).Render(string(s.Status)), s.Name)
	}

	if len(d.Failures) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render(fmt.Sprintf("Failures (%d)", len(d.Failures))))
		b.WriteString("\n")
		// Leave room for the header block and help line.
		visible := max(1, (m.height-len(d.Scenarios)-14)/3)
		end := min(len(d.Failures), m.offset+visible)
		for _, f := range d.Failures[m.offset:end] {
			fmt.Fprintf(&b, "%s %s\n", ErrorStyle.Render(f.ScenarioName+" › "+f.ContextLabel), MutedStyle.Render(f.RunLink))
			fmt.Fprintf(&b, "  %s\n", f.Message)
		}
	}

	return BoxStyle.Render(b.String()) + "\n" + HelpStyle.Render("↑/↓ scroll failures • q quit")
}
