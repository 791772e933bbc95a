package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/canary/adapter/redis"
	"github.com/pithecene-io/canary/adapter/webhook"
	"github.com/pithecene-io/canary/history"
	"github.com/pithecene-io/canary/platform"
)

// Config is a canary.yaml tool configuration file.
// All values are optional; CLI flags override them.
type Config struct {
	Platform PlatformConfig `yaml:"platform"`
	Archive  ArchiveConfig  `yaml:"archive"`
	History  HistoryConfig  `yaml:"history"`
	Notify   NotifyConfig   `yaml:"notify"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// PlatformConfig configures the execution API client.
type PlatformConfig struct {
	BaseURL           string   `yaml:"base_url"`
	Token             string   `yaml:"token"`
	ConsoleURL        string   `yaml:"console_url"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	RequestTimeout    Duration `yaml:"request_timeout"`
	SubmitRetries     *int     `yaml:"submit_retries,omitempty"`
}

// ArchiveConfig enables the result archive when Dir is set.
type ArchiveConfig struct {
	Dir string `yaml:"dir"`
}

// HistoryConfig enables suite history when Path is set.
type HistoryConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// NotifyConfig selects the report delivery adapter.
type NotifyConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// MetricsConfig enables the Pushgateway push when PushgatewayURL is set.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// Duration is a time.Duration written as a Go duration string ("10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Value == "" {
		return nil
	}
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, node.Value, err)
	}
	d.Duration = parsed
	return nil
}

// ClientConfig converts to the REST client configuration.
func (p *PlatformConfig) ClientConfig() platform.Config {
	return platform.Config{
		BaseURL:           p.BaseURL,
		Token:             p.Token,
		RequestsPerSecond: p.RequestsPerSecond,
		Timeout:           p.RequestTimeout.Duration,
	}
}

// Enabled reports whether history is configured.
func (h *HistoryConfig) Enabled() bool { return h.Path != "" }

// StoreConfig converts to the history store configuration.
func (h *HistoryConfig) StoreConfig() history.Config {
	return history.Config{
		Dataset:      h.Dataset,
		Backend:      h.Backend,
		Path:         h.Path,
		Region:       h.Region,
		Endpoint:     h.Endpoint,
		UsePathStyle: h.S3PathStyle,
	}
}

// Notify types.
const (
	NotifyWebhook = "webhook"
	NotifyRedis   = "redis"
)

// Validate checks the notify section. An empty type disables delivery.
func (n *NotifyConfig) Validate() error {
	switch n.Type {
	case "":
		return nil
	case NotifyWebhook, NotifyRedis:
		if n.URL == "" {
			return fmt.Errorf("notify.url is required for type %s", n.Type)
		}
		if n.Retries != nil && *n.Retries < 0 {
			return fmt.Errorf("notify.retries must be >= 0, got %d", *n.Retries)
		}
		return nil
	default:
		return fmt.Errorf("unknown notify type %q (want webhook or redis)", n.Type)
	}
}

func (n *NotifyConfig) retries(def int) int {
	if n.Retries != nil {
		return *n.Retries
	}
	return def
}

// WebhookConfig converts to the webhook adapter configuration.
func (n *NotifyConfig) WebhookConfig() webhook.Config {
	return webhook.Config{
		URL:     n.URL,
		Headers: n.Headers,
		Timeout: n.Timeout.Duration,
		Retries: n.retries(webhook.DefaultRetries),
	}
}

// RedisConfig converts to the Redis adapter configuration.
func (n *NotifyConfig) RedisConfig() redis.Config {
	return redis.Config{
		URL:     n.URL,
		Channel: n.Channel,
		Timeout: n.Timeout.Duration,
		Retries: n.retries(redis.DefaultRetries),
	}
}

// Validate checks cross-field constraints of the whole file.
func (c *Config) Validate() error {
	if c.Platform.SubmitRetries != nil && *c.Platform.SubmitRetries < 0 {
		return fmt.Errorf("platform.submit_retries must be >= 0, got %d", *c.Platform.SubmitRetries)
	}
	switch c.History.Backend {
	case "", history.BackendFS, history.BackendS3:
	default:
		return fmt.Errorf("unknown history.backend %q (want fs or s3)", c.History.Backend)
	}
	return c.Notify.Validate()
}
