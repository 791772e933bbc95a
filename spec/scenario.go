// Package spec loads test specifications into ordered scenario lists.
//
// A specification is either a declarative document (YAML or JSON) or a
// registration function run against a Registrar. Loading performs no network
// activity.
package spec

import (
	"fmt"
	"time"

	"github.com/pithecene-io/canary/assert"
	"github.com/pithecene-io/canary/types"
)

// NameSeparator joins group and scenario names.
const NameSeparator = " › "

// Scenario is one independently executable test unit. Immutable after load.
type Scenario struct {
	// Index is the registration order, starting at 0.
	Index int
	Name  string
	Job   types.JobDescriptor
	// Timeout overrides the suite default wait for a terminal status. Zero uses the default.
	Timeout time.Duration
	Checks  []assert.Check
}

// MalformedSpecError reports a specification that cannot be run.
// It is fatal: the suite aborts before any job is submitted.
type MalformedSpecError struct {
	// Scenario is the offending scenario name, empty for document-level problems.
	Scenario string
	Reason   string
}

func (e *MalformedSpecError) Error() string {
	if e.Scenario == "" {
		return "malformed spec: " + e.Reason
	}
	return fmt.Sprintf("malformed spec: scenario %q: %s", e.Scenario, e.Reason)
}

func malformed(scenario, format string, args ...any) error {
	return &MalformedSpecError{Scenario: scenario, Reason: fmt.Sprintf(format, args...)}
}

// validate enforces per-scenario and cross-scenario rules and assigns indexes.
func validate(scenarios []Scenario) ([]Scenario, error) {
	if len(scenarios) == 0 {
		return nil, malformed("", "no scenarios")
	}
	seen := make(map[string]bool, len(scenarios))
	for i := range scenarios {
		s := &scenarios[i]
		s.Index = i
		if s.Name == "" {
			return nil, malformed("", "scenario %d has no name", i)
		}
		if seen[s.Name] {
			return nil, malformed(s.Name, "duplicate scenario name")
		}
		seen[s.Name] = true
		if err := s.Job.Validate(); err != nil {
			return nil, malformed(s.Name, "%v", err)
		}
		if len(s.Checks) == 0 {
			return nil, malformed(s.Name, "no assertions")
		}
		if s.Timeout < 0 {
			return nil, malformed(s.Name, "negative timeout")
		}
	}
	return scenarios, nil
}
