package spec

import (
	"fmt"
	"maps"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/canary/types"
)

// Document is the declarative specification format. JSON documents are accepted
// since JSON is valid YAML.
//
//	scenarios:
//	  - name: smoke
//	    actorId: apify/hello-world
//	    assertions:
//	      status: SUCCEEDED
//	groups:
//	  - name: Reddit scraper
//	    actorId: oAuCIx3ItNrs2okjQ
//	    builds: [beta, latest]
//	    scenarios:
//	      - name: posts
//	        input: {maxItems: 10}
//	        assertions:
//	          dataset_info:
//	            cleanItemCount: {equals: 10}
type Document struct {
	Scenarios []ScenarioDoc `yaml:"scenarios"`
	Groups    []GroupDoc    `yaml:"groups"`
}

// GroupDoc is a named group of scenarios. Job fields set on the group are
// defaults for its scenarios. When Builds is set, every scenario runs once per build.
type GroupDoc struct {
	Name      string           `yaml:"name"`
	Builds    []string         `yaml:"builds"`
	ActorID   string           `yaml:"actorId"`
	TaskID    string           `yaml:"taskId"`
	Input     map[string]any   `yaml:"input"`
	Options   types.RunOptions `yaml:"options"`
	Timeout   int64            `yaml:"timeout"` // ms
	Scenarios []ScenarioDoc    `yaml:"scenarios"`
}

// ScenarioDoc is one declared scenario.
type ScenarioDoc struct {
	Name       string           `yaml:"name"`
	ActorID    string           `yaml:"actorId"`
	TaskID     string           `yaml:"taskId"`
	Input      map[string]any   `yaml:"input"`
	Options    types.RunOptions `yaml:"options"`
	Timeout    int64            `yaml:"timeout"` // ms
	Assertions yaml.Node        `yaml:"assertions"`
}

// Load reads and parses a specification file.
func Load(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec file: %w", err)
	}
	return Parse(data)
}

// Parse parses a YAML or JSON specification.
func Parse(data []byte) ([]Scenario, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, malformed("", "parse: %v", err)
	}
	return doc.Expand()
}

// ParseNode parses a specification embedded in another YAML document.
func ParseNode(node *yaml.Node) ([]Scenario, error) {
	var doc Document
	if err := node.Decode(&doc); err != nil {
		return nil, malformed("", "parse: %v", err)
	}
	return doc.Expand()
}

// Expand flattens the document into validated scenarios. Ungrouped scenarios
// come first, then each group in order, build by build.
func (d *Document) Expand() ([]Scenario, error) {
	var out []Scenario
	for _, sd := range d.Scenarios {
		s, err := sd.build(sd.Name, nil, "")
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	for gi := range d.Groups {
		g := &d.Groups[gi]
		if g.Name == "" {
			return nil, malformed("", "group %d has no name", gi)
		}
		builds := g.Builds
		if len(builds) == 0 {
			builds = []string{""}
		}
		for _, build := range builds {
			for _, sd := range g.Scenarios {
				name := g.Name + NameSeparator + sd.Name
				if build != "" {
					name = fmt.Sprintf("%s (%s version)%s%s", g.Name, build, NameSeparator, sd.Name)
				}
				s, err := sd.build(name, g, build)
				if err != nil {
					return nil, err
				}
				out = append(out, s)
			}
		}
	}
	return validate(out)
}

// build resolves one scenario against its group defaults.
func (sd *ScenarioDoc) build(name string, g *GroupDoc, build string) (Scenario, error) {
	if sd.Name == "" {
		return Scenario{}, malformed(name, "scenario has no name")
	}
	job := types.JobDescriptor{
		ActorID: sd.ActorID,
		TaskID:  sd.TaskID,
		Options: sd.Options,
		RunName: name,
	}
	timeout := sd.Timeout
	input := map[string]any{}

	if g != nil {
		if job.ActorID == "" && job.TaskID == "" {
			job.ActorID, job.TaskID = g.ActorID, g.TaskID
		}
		if job.Options.Build == "" {
			job.Options.Build = g.Options.Build
		}
		if job.Options.MemoryMbytes == 0 {
			job.Options.MemoryMbytes = g.Options.MemoryMbytes
		}
		if job.Options.TimeoutSecs == 0 {
			job.Options.TimeoutSecs = g.Options.TimeoutSecs
		}
		if timeout == 0 {
			timeout = g.Timeout
		}
		maps.Copy(input, g.Input)
	}
	maps.Copy(input, sd.Input)
	if len(input) > 0 {
		job.Input = input
	}
	if build != "" {
		job.Options.Build = build
	}

	checks, err := parseAssertions(&sd.Assertions)
	if err != nil {
		return Scenario{}, malformed(name, "%v", err)
	}
	return Scenario{
		Name:    name,
		Job:     job,
		Timeout: time.Duration(timeout) * time.Millisecond,
		Checks:  checks,
	}, nil
}
