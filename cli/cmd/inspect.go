package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/canary/cli/reader"
	"github.com/pithecene-io/canary/cli/tui"
)

// InspectCommand returns the inspect command.
// Inspect shows the scenarios and failures of one stored suite execution.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show one suite execution from history",
		ArgsUsage: "[suite-run-id]",
		Flags: append(append(ReadOnlyFlags(), ConfigFlag,
			&cli.StringFlag{Name: "suite-run-id", Usage: "Suite run ID to inspect"},
		), historyFlags()...),
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	id := c.String("suite-run-id")
	if id == "" {
		id = c.Args().First()
	}
	if id == "" {
		return cli.Exit("suite run ID required (--suite-run-id or argument)", exitConfigError)
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
	resp, err := reader.Inspect(ctx, store, id)
	if err != nil {
		return fmt.Errorf("failed to read suite run %s: %w", id, err)
	}

	if c.Bool("tui") {
		return tui.Run(tui.ViewInspect, resp)
	}
	return r.Render(resp)
}
