package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/canary/adapter"
	"github.com/pithecene-io/canary/adapter/redis"
	"github.com/pithecene-io/canary/adapter/webhook"
	"github.com/pithecene-io/canary/cli/config"
	"github.com/pithecene-io/canary/history"
)

// Exit codes of run and replay.
const (
	exitSucceeded   = 0
	exitFailed      = 1
	exitConfigError = 2
	exitAborted     = 3
)

// loadToolConfig reads --config and applies flag overrides. The default path
// may be absent; an explicit path must exist.
func loadToolConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if c.IsSet("config") {
		cfg, err = config.Load(c.String("config"))
	} else {
		cfg, err = config.LoadOptional(c.String("config"))
	}
	if err != nil {
		return nil, err
	}

	override := func(flag string, dst *string) {
		if c.IsSet(flag) {
			*dst = c.String(flag)
		}
	}
	override("token", &cfg.Platform.Token)
	override("base-url", &cfg.Platform.BaseURL)
	override("console-url", &cfg.Platform.ConsoleURL)
	override("archive-dir", &cfg.Archive.Dir)
	override("history-backend", &cfg.History.Backend)
	override("history-path", &cfg.History.Path)
	override("history-region", &cfg.History.Region)
	override("pushgateway-url", &cfg.Metrics.PushgatewayURL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openHistory(ctx context.Context, cfg *config.Config) (*history.Store, error) {
	if !cfg.History.Enabled() {
		return nil, fmt.Errorf("no history configured (set history.path in %s or pass --history-path)", config.DefaultPath)
	}
	return history.Open(ctx, cfg.History.StoreConfig())
}

// newAdapter returns nil when delivery is disabled.
func newAdapter(cfg *config.NotifyConfig) (adapter.Adapter, error) {
	switch cfg.Type {
	case config.NotifyWebhook:
		return webhook.New(cfg.WebhookConfig())
	case config.NotifyRedis:
		return redis.New(cfg.RedisConfig())
	default:
		return nil, nil
	}
}
