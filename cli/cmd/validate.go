package cmd

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/canary/cli/config"
	"github.com/pithecene-io/canary/types"
)

// ValidateResponse lists the scenarios a suite input registers.
type ValidateResponse struct {
	Suite     string            `json:"suite"`
	Scenarios []ScenarioSummary `json:"scenarios"`
}

// ScenarioSummary describes one registered scenario.
type ScenarioSummary struct {
	Index   int      `json:"index"`
	Name    string   `json:"name"`
	Target  string   `json:"target"`
	Build   string   `json:"build,omitempty"`
	Timeout string   `json:"timeout"`
	Checks  int      `json:"checks"`
	Views   []string `json:"views"`
}

// ValidateCommand returns the validate command. It loads the suite input
// and lists its scenarios without contacting the platform.
func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:   "validate",
		Usage:  "Load a suite input and list its scenarios",
		Flags:  append([]cli.Flag{InputFlag}, ReadOnlyFlags()...),
		Action: validateAction,
	}
}

func validateAction(c *cli.Context) error {
	if err := rejectTUI(c, "validate"); err != nil {
		return err
	}
	r, err := newRenderer(c)
	if err != nil {
		return err
	}
	suite, err := config.LoadSuite(c.String("input"))
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	return r.Render(summarize(suite))
}

func summarize(s *config.Suite) *ValidateResponse {
	resp := &ValidateResponse{Suite: s.Config.Name, Scenarios: make([]ScenarioSummary, 0, len(s.Scenarios))}
	for _, sc := range s.Scenarios {
		timeout := sc.Timeout
		if timeout <= 0 {
			timeout = s.Config.DefaultTimeout
		}
		var views []string
		seen := map[types.View]bool{}
		for _, ch := range sc.Checks {
			if v := ch.View(); !seen[v] {
				seen[v] = true
				views = append(views, string(v))
			}
		}
		resp.Scenarios = append(resp.Scenarios, ScenarioSummary{
			Index:   sc.Index,
			Name:    sc.Name,
			Target:  sc.Job.Target(),
			Build:   sc.Job.Options.Build,
			Timeout: timeout.Round(time.Second).String(),
			Checks:  len(sc.Checks),
			Views:   views,
		})
	}
	return resp
}
