package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/canary/adapter"
	"github.com/pithecene-io/canary/archive"
	"github.com/pithecene-io/canary/cli/config"
	"github.com/pithecene-io/canary/log"
	"github.com/pithecene-io/canary/metrics"
	"github.com/pithecene-io/canary/platform"
	"github.com/pithecene-io/canary/report"
	"github.com/pithecene-io/canary/runtime"
	"github.com/pithecene-io/canary/types"
)

// finalizeTimeout bounds history, delivery and metrics push after the suite.
// These run even when the suite was interrupted.
const finalizeTimeout = 30 * time.Second

// RunCommand returns the run command.
// This is the only command that submits jobs.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Execute a suite against the platform",
		Flags: append([]cli.Flag{
			InputFlag,
			ConfigFlag,
			FormatFlag,
			NoColorFlag,
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Platform API token",
				EnvVars: []string{"CANARY_TOKEN", "APIFY_TOKEN"},
			},
			&cli.StringFlag{Name: "base-url", Usage: "Platform API base URL"},
			&cli.StringFlag{Name: "console-url", Usage: "Console base URL or {actorId}/{runId} template for run links"},
			&cli.StringFlag{Name: "suite-run-id", Usage: "Suite run ID (default: random UUID)"},
			&cli.StringFlag{Name: "archive-dir", Usage: "Record every submission and fetched view under this directory"},
			&cli.StringFlag{Name: "pushgateway-url", Usage: "Push suite metrics to this Pushgateway"},
			&cli.BoolFlag{Name: "notify-success", Usage: "Deliver the report even when the suite succeeded"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Suppress result output"},
		}, historyFlags()...),
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	suite, cfg, err := loadInputs(c)
	if err != nil {
		return err
	}
	r, err := newRenderer(c)
	if err != nil {
		return err
	}
	if cfg.Platform.Token == "" {
		fmt.Fprintln(os.Stderr, "Warning: no platform token configured; requests are unauthenticated")
	}

	client, err := platform.NewHTTPClient(cfg.Platform.ClientConfig())
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	suiteRunID := c.String("suite-run-id")
	if suiteRunID == "" {
		suiteRunID = uuid.NewString()
	}

	var recorder runtime.Recorder
	if cfg.Archive.Dir != "" {
		w, err := archive.Create(cfg.Archive.Dir, suite.Config.Name, suiteRunID)
		if err != nil {
			return cli.Exit(err.Error(), exitConfigError)
		}
		defer func() { _ = w.Close() }()
		recorder = w
	}

	ex := execution{
		suite:      suite,
		cfg:        cfg,
		suiteRunID: suiteRunID,
		client:     client,
		platform:   "http",
		recorder:   recorder,
	}
	result := ex.run(c.Context)

	if !c.Bool("quiet") {
		if err := r.Render(result); err != nil {
			return err
		}
	}

	ex.finalize(c.Context, result, c.Bool("notify-success"))
	return cli.Exit("", statusToExitCode(result.Status))
}

// loadInputs loads the suite input and tool config. Any error is a config
// error (exit 2).
func loadInputs(c *cli.Context) (*config.Suite, *config.Config, error) {
	suite, err := config.LoadSuite(c.String("input"))
	if err != nil {
		return nil, nil, cli.Exit(err.Error(), exitConfigError)
	}
	cfg, err := loadToolConfig(c)
	if err != nil {
		return nil, nil, cli.Exit(err.Error(), exitConfigError)
	}
	return suite, cfg, nil
}

// execution is one suite execution against a platform client.
type execution struct {
	suite      *config.Suite
	cfg        *config.Config
	suiteRunID string
	client     platform.Client
	// platform labels metrics: "http" or "replay".
	platform string
	recorder runtime.Recorder

	logger  *log.Logger
	metrics *metrics.Collector
}

func (e *execution) run(parent context.Context) *types.SuiteResult {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend := ""
	if e.cfg.History.Enabled() {
		backend = e.cfg.History.Backend
	}
	if e.logger == nil {
		e.logger = log.NewLogger(e.suite.Config.Name, e.suiteRunID, e.suite.Config.VerboseLogs)
	}
	e.metrics = metrics.NewCollector(e.suite.Config.Name, e.suiteRunID, e.platform, backend)

	consoleURL := e.cfg.Platform.ConsoleURL
	coord := runtime.NewCoordinator(runtime.CoordinatorConfig{
		Suite:         e.suite.Config,
		SuiteRunID:    e.suiteRunID,
		Client:        e.client,
		Logger:        e.logger,
		Metrics:       e.metrics,
		Recorder:      e.recorder,
		RunLink:       func(h *types.JobHandle) string { return report.RunLink(h, consoleURL) },
		SubmitRetries: submitRetries(e.cfg.Platform.SubmitRetries),
	})
	result := coord.Run(ctx, e.suite.Scenarios)
	e.logger.Info(report.Headline(result), map[string]any{
		"status":   string(result.Status),
		"failures": len(result.Failures),
		"duration": result.Duration.String(),
	})
	return result
}

// submitRetries maps the config value onto the executor's convention:
// unset uses the default and an explicit zero disables retries.
func submitRetries(v *int) int {
	switch {
	case v == nil:
		return 0
	case *v == 0:
		return -1
	default:
		return *v
	}
}

// finalize writes history, delivers the report and pushes metrics. Failures
// are logged and never change the suite outcome.
func (e *execution) finalize(parent context.Context, result *types.SuiteResult, notifySuccess bool) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), finalizeTimeout)
	defer cancel()
	defer e.logger.Sync()

	if e.cfg.History.Enabled() {
		if err := e.writeHistory(ctx, result); err != nil {
			e.metrics.IncHistoryWriteFailure()
			e.logger.Error("history write failed", map[string]any{"error": err.Error()})
		} else {
			e.metrics.IncHistoryWriteSuccess()
		}
	}

	if result.Status != types.SuiteSucceeded || notifySuccess {
		if err := e.notify(ctx, result); err != nil {
			e.logger.Error("report delivery failed", map[string]any{"error": err.Error()})
		}
	}

	if url := e.cfg.Metrics.PushgatewayURL; url != "" {
		if err := metrics.Push(ctx, url, e.cfg.Metrics.Job, e.metrics.Snapshot()); err != nil {
			e.logger.Warn("metrics push failed", map[string]any{"error": err.Error()})
		}
	}
}

func (e *execution) writeHistory(ctx context.Context, result *types.SuiteResult) error {
	store, err := openHistory(ctx, e.cfg)
	if err != nil {
		return err
	}
	return store.Write(ctx, result)
}

func (e *execution) notify(ctx context.Context, result *types.SuiteResult) error {
	a, err := newAdapter(&e.cfg.Notify)
	if err != nil || a == nil {
		return err
	}
	defer func() { _ = a.Close() }()

	event := adapter.NewSuiteCompletedEvent(result, report.Text(result), time.Now())
	if err := a.Publish(ctx, event); err != nil {
		return err
	}
	e.logger.Info("report delivered", map[string]any{"type": e.cfg.Notify.Type})
	return nil
}

func statusToExitCode(status types.SuiteStatus) int {
	switch status {
	case types.SuiteSucceeded:
		return exitSucceeded
	case types.SuiteAborted:
		return exitAborted
	default:
		return exitFailed
	}
}
