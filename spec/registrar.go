package spec

import (
	"strings"
	"time"

	"github.com/pithecene-io/canary/assert"
	"github.com/pithecene-io/canary/types"
)

// Registrar collects scenarios registered programmatically.
// Describe blocks nest and prefix scenario names. Not safe for concurrent use.
type Registrar struct {
	prefix    []string
	scenarios []Scenario
}

// Describe groups the scenarios registered by body under name.
func (r *Registrar) Describe(name string, body func()) {
	r.prefix = append(r.prefix, name)
	defer func() { r.prefix = r.prefix[:len(r.prefix)-1] }()
	body()
}

// It registers a scenario under the current Describe path.
func (r *Registrar) It(name string, job types.JobDescriptor, checks ...assert.Check) {
	r.RegisterScenario(Scenario{Name: name, Job: job, Checks: checks})
}

// ItWithTimeout is It with a scenario-specific timeout.
func (r *Registrar) ItWithTimeout(name string, timeout time.Duration, job types.JobDescriptor, checks ...assert.Check) {
	r.RegisterScenario(Scenario{Name: name, Job: job, Timeout: timeout, Checks: checks})
}

// RegisterScenario registers a fully built scenario. Its name is prefixed
// with the current Describe path.
func (r *Registrar) RegisterScenario(s Scenario) {
	if len(r.prefix) > 0 {
		s.Name = strings.Join(append(append([]string(nil), r.prefix...), s.Name), NameSeparator)
	}
	r.scenarios = append(r.scenarios, s)
}

// FromFunc runs register synchronously and returns the registered scenarios
// in registration order.
func FromFunc(register func(r *Registrar)) ([]Scenario, error) {
	r := &Registrar{}
	register(r)
	return validate(r.scenarios)
}
