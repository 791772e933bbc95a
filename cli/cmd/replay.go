package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/canary/archive"
	"github.com/pithecene-io/canary/log"
)

// ReplayCommand returns the replay command. It re-evaluates a suite against
// an archive recorded by run, without network access. History, delivery
// and metrics push are skipped.
func ReplayCommand() *cli.Command {
	return &cli.Command{
		Name:  "replay",
		Usage: "Re-evaluate a suite against a recorded archive",
		Flags: []cli.Flag{
			InputFlag,
			ConfigFlag,
			FormatFlag,
			NoColorFlag,
			&cli.StringFlag{
				Name:     "archive",
				Aliases:  []string{"a"},
				Usage:    "Path to a " + archive.Extension + " archive",
				Required: true,
			},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Suppress result output"},
		},
		Action: replayAction,
	}
}

func replayAction(c *cli.Context) error {
	suite, cfg, err := loadInputs(c)
	if err != nil {
		return err
	}
	r, err := newRenderer(c)
	if err != nil {
		return err
	}

	a, err := archive.Open(c.String("archive"))
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	client := archive.NewReplayClient(a)
	ex := execution{
		suite:      suite,
		cfg:        cfg,
		suiteRunID: a.Header.SuiteRunID,
		client:     client,
		platform:   "replay",
		logger:     log.NewLogger(suite.Config.Name, a.Header.SuiteRunID, suite.Config.VerboseLogs),
	}
	sugar := ex.logger.Sugar().With("archive", c.String("archive"))
	if a.Truncated {
		sugar.Warnf("archive ends in a partial frame; later views are missing")
	}
	if a.Header.Suite != suite.Config.Name {
		sugar.Warnf("archive was recorded for suite %q, replaying %q", a.Header.Suite, suite.Config.Name)
	}

	result := ex.run(c.Context)
	if n := len(client.Canceled()); n > 0 {
		sugar.Warnf("%d archived run(s) had no terminal status", n)
	}
	ex.logger.Sync()

	if !c.Bool("quiet") {
		if err := r.Render(result); err != nil {
			return err
		}
	}
	return cli.Exit("", statusToExitCode(result.Status))
}
