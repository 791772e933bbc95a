package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/canary/cli/reader"
	"github.com/pithecene-io/canary/cli/tui"
)

// queryTimeout bounds history reads.
const queryTimeout = 30 * time.Second

// StatsCommand returns the stats command.
// Stats summarizes recent suite executions from history.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Summarize recent suite executions",
		Flags: append(append(ReadOnlyFlags(), ConfigFlag,
			&cli.StringFlag{Name: "suite", Aliases: []string{"s"}, Usage: "Suite name (default: all suites)"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Number of runs to include", Value: reader.DefaultLimit},
		), historyFlags()...),
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	if c.Int("limit") <= 0 {
		return cli.Exit(fmt.Sprintf("--limit must be > 0, got %d", c.Int("limit")), exitConfigError)
	}
	cfg, err := loadToolConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	r, err := newRenderer(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, queryTimeout)
	defer cancel()

	store, err := openHistory(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize history reader: %w", err)
	}
	resp, err := reader.Stats(ctx, store, c.String("suite"), c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	if c.Bool("tui") {
		return tui.Run(tui.ViewStats, resp)
	}
	return r.Render(resp)
}
