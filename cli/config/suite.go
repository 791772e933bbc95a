package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/canary/spec"
	"github.com/pithecene-io/canary/types"
)

// SuiteInput is the suite input document. Keys are camelCase; timeouts
// and intervals are integer milliseconds.
type SuiteInput struct {
	SuiteName        string `yaml:"suiteName"`
	AbortRuns        bool   `yaml:"abortRuns"`
	RetryFailedTests bool   `yaml:"retryFailedTests"`
	DefaultTimeout   int64  `yaml:"defaultTimeout"`
	// DefaultTimeoutMs is accepted as an alias of DefaultTimeout.
	DefaultTimeoutMs int64 `yaml:"defaultTimeoutMs"`
	VerboseLogs      bool  `yaml:"verboseLogs"`
	Concurrency      int   `yaml:"concurrency"`
	SuiteTimeout     int64 `yaml:"suiteTimeout"`
	PollInterval     int64 `yaml:"pollInterval"`
	// TestSpec is an inline scenario document or a path to one. Relative
	// paths resolve against the input file's directory.
	TestSpec yaml.Node `yaml:"testSpec"`

	dir string
}

// Suite is a loaded suite input: configuration plus registered scenarios.
type Suite struct {
	Config    types.SuiteConfig
	Scenarios []spec.Scenario
}

// LoadSuite reads a suite input file and its scenarios. Scenario errors are
// returned as *spec.MalformedSpecError.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read suite input %q: %w", path, err)
	}
	in, err := ParseSuiteInput(data)
	if err != nil {
		return nil, fmt.Errorf("invalid suite input %s: %w", path, err)
	}
	in.dir = filepath.Dir(path)
	return in.Suite()
}

// ParseSuiteInput decodes a suite input document after env expansion.
func ParseSuiteInput(data []byte) (*SuiteInput, error) {
	var in SuiteInput
	if err := yaml.Unmarshal([]byte(ExpandEnv(string(data))), &in); err != nil {
		return nil, err
	}
	return &in, nil
}

// SuiteConfig converts the recognized options. Unset values take defaults.
func (in *SuiteInput) SuiteConfig() (types.SuiteConfig, error) {
	timeout := in.DefaultTimeout
	if timeout == 0 {
		timeout = in.DefaultTimeoutMs
	}
	for _, f := range []struct {
		name string
		v    int64
	}{
		{"defaultTimeout", timeout},
		{"suiteTimeout", in.SuiteTimeout},
		{"pollInterval", in.PollInterval},
		{"concurrency", int64(in.Concurrency)},
	} {
		if f.v < 0 {
			return types.SuiteConfig{}, fmt.Errorf("%s must be >= 0, got %d", f.name, f.v)
		}
	}

	cfg := types.SuiteConfig{
		Name:             in.SuiteName,
		AbortRuns:        in.AbortRuns,
		RetryFailedTests: in.RetryFailedTests,
		DefaultTimeout:   time.Duration(timeout) * time.Millisecond,
		VerboseLogs:      in.VerboseLogs,
		Concurrency:      in.Concurrency,
		SuiteTimeout:     time.Duration(in.SuiteTimeout) * time.Millisecond,
		PollInterval:     time.Duration(in.PollInterval) * time.Millisecond,
	}
	return cfg.WithDefaults(), nil
}

// Scenarios parses the test spec, inline or from its path.
func (in *SuiteInput) Scenarios() ([]spec.Scenario, error) {
	switch in.TestSpec.Kind {
	case 0:
		return nil, &spec.MalformedSpecError{Reason: "testSpec is required"}
	case yaml.ScalarNode:
		path := in.TestSpec.Value
		if !filepath.IsAbs(path) && in.dir != "" {
			path = filepath.Join(in.dir, path)
		}
		return spec.Load(path)
	default:
		return spec.ParseNode(&in.TestSpec)
	}
}

// Suite converts the whole input.
func (in *SuiteInput) Suite() (*Suite, error) {
	cfg, err := in.SuiteConfig()
	if err != nil {
		return nil, err
	}
	scenarios, err := in.Scenarios()
	if err != nil {
		return nil, err
	}
	return &Suite{Config: cfg, Scenarios: scenarios}, nil
}

// IsMalformed reports whether err is a scenario specification error.
func IsMalformed(err error) bool {
	var m *spec.MalformedSpecError
	return errors.As(err, &m)
}
