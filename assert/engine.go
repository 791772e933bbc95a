package assert

import (
	"context"
	"strings"

	"github.com/pithecene-io/canary/log"
)

// Engine evaluates a scenario's checks against its bundle.
type Engine struct {
	logger *log.Logger
}

// NewEngine creates an engine. A nil logger discards output.
func NewEngine(logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Engine{logger: logger}
}

// Evaluate runs every check in declaration order and returns all failures.
// A failing check never stops evaluation. A fetch error does: the failures
// gathered so far are returned together with the error, and the remaining
// checks are skipped since their data is unavailable.
func (e *Engine) Evaluate(ctx context.Context, b Bundle, checks []Check) ([]Failure, error) {
	var failures []Failure
	for i, c := range checks {
		fs, err := c.Evaluate(ctx, b)
		if err != nil {
			e.logger.Warn("check skipped, view unavailable", map[string]any{
				"check":   c.Label(),
				"view":    string(c.View()),
				"skipped": len(checks) - i,
				"error":   err.Error(),
			})
			return failures, err
		}
		if len(fs) == 0 {
			e.logger.Debug("check passed", map[string]any{"check": c.Label(), "view": string(c.View())})
			continue
		}
		e.logger.Debug("check failed", map[string]any{
			"check":    c.Label(),
			"view":     string(c.View()),
			"failures": len(fs),
		})
		failures = append(failures, fs...)
	}
	return failures, nil
}

// Describe returns a short summary of a check for listings,
// e.g. "dataset_items[comment,post]".
func Describe(c Check) string {
	desc := string(c.View())
	switch v := c.(type) {
	case *valueCheck:
		if v.field != "" {
			desc += "." + v.field
		}
	case *itemShapeCheck:
		desc += "[" + strings.Join(v.DataTypes(), ",") + "]"
	}
	return desc
}
