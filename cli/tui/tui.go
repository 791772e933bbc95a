package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/canary/cli/reader"
)

// Supported views.
const (
	ViewStats   = "stats"
	ViewInspect = "inspect"
)

// IsTUISupported reports whether view has a TUI.
func IsTUISupported(view string) bool {
	return view == ViewStats || view == ViewInspect
}

type keyMap struct {
	Quit key.Binding
	Up   key.Binding
	Down key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	Up:   key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down: key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
}

// NewModel returns the model for view. data must be the matching reader
// response.
func NewModel(view string, data any) (tea.Model, error) {
	switch d := data.(type) {
	case *reader.StatsResponse:
		if view == ViewStats {
			return newStatsModel(d), nil
		}
	case *reader.InspectResponse:
		if view == ViewInspect {
			return newInspectModel(d), nil
		}
	}
	if !IsTUISupported(view) {
		return nil, fmt.Errorf("TUI mode is not supported for %s", view)
	}
	return nil, fmt.Errorf("invalid data %T for %s view", data, view)
}

// Run starts the TUI for view in the alternate screen.
func Run(view string, data any) error {
	model, err := NewModel(view, data)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}
