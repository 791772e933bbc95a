// Package cmd provides CLI commands for the canary binary.
package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/canary/cli/config"
	"github.com/pithecene-io/canary/cli/render"
)

// Shared flags.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for stats and inspect.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (stats, inspect only)",
	}

	// ConfigFlag points at the tool configuration file. A missing default
	// file is not an error.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to tool config",
		Value:   config.DefaultPath,
		EnvVars: []string{"CANARY_CONFIG"},
	}

	// InputFlag points at the suite input document.
	InputFlag = &cli.StringFlag{
		Name:     "input",
		Aliases:  []string{"i"},
		Usage:    "Path to suite input (YAML or JSON)",
		Required: true,
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// historyFlags override the history section of the tool config.
func historyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "history-backend", Usage: "History backend: fs or s3"},
		&cli.StringFlag{Name: "history-path", Usage: "History path (fs: directory, s3: bucket/prefix)"},
		&cli.StringFlag{Name: "history-region", Usage: "AWS region for the S3 backend"},
	}
}

func newRenderer(c *cli.Context) (*render.Renderer, error) {
	r, err := render.New(c.String("format"), c.Bool("no-color"))
	if err != nil {
		return nil, cli.Exit(err.Error(), exitConfigError)
	}
	return r, nil
}

func rejectTUI(c *cli.Context, command string) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for "+command+" command", exitConfigError)
	}
	return nil
}
