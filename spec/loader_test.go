package spec

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/canary/assert"
	"github.com/pithecene-io/canary/types"
)

const redditSpec = `
groups:
  - name: Reddit scraper
    actorId: oAuCIx3ItNrs2okjQ
    builds: [beta, latest]
    timeout: 600000
    input:
      proxy: {useApifyProxy: true}
    scenarios:
      - name: posts
        input:
          maxItems: 10
          startUrls: [{url: "https://www.reddit.com/r/pizza/"}]
        assertions:
          status: SUCCEEDED
          log:
            - not_contains: ReferenceError
            - not_contains: TypeError
            - contains: DEBUG
          statistics:
            requestsRetries: {less_than: 5}
            crawlerRuntimeMillis: {within: [6000, 600000]}
          dataset_info:
            cleanItemCount: {equals: 10}
          items: non_empty_array
          item_shapes:
            post:
              title: non_empty_string
              url: {starts_with: "https://www.reddit.com/r/"}
              dataType: {equals: post}
`

func TestParse_BuildMatrix(t *testing.T) {
	scenarios, err := Parse([]byte(redditSpec))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(scenarios) != 2 {
		t.Fatalf("expected one scenario per build, got %d", len(scenarios))
	}

	want := []struct {
		name  string
		build string
	}{
		{"Reddit scraper (beta version) › posts", "beta"},
		{"Reddit scraper (latest version) › posts", "latest"},
	}
	for i, w := range want {
		s := scenarios[i]
		if s.Index != i {
			t.Errorf("scenario %d index = %d", i, s.Index)
		}
		if s.Name != w.name {
			t.Errorf("scenario %d name = %q, want %q", i, s.Name, w.name)
		}
		if s.Job.Options.Build != w.build {
			t.Errorf("scenario %d build = %q, want %q", i, s.Job.Options.Build, w.build)
		}
		if s.Job.ActorID != "oAuCIx3ItNrs2okjQ" {
			t.Errorf("scenario %d should inherit the group actor, got %q", i, s.Job.ActorID)
		}
		if s.Timeout != 10*time.Minute {
			t.Errorf("scenario %d timeout = %v", i, s.Timeout)
		}
		if s.Job.Input["maxItems"] != 10 {
			t.Errorf("scenario %d input = %v", i, s.Job.Input)
		}
		if _, ok := s.Job.Input["proxy"]; !ok {
			t.Errorf("scenario %d should merge group input, got %v", i, s.Job.Input)
		}
	}
}

func TestParse_AssertionOrderAndLabels(t *testing.T) {
	scenarios, err := Parse([]byte(redditSpec))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	checks := scenarios[0].Checks

	wantLabels := []string{
		"status equals SUCCEEDED",
		"log not_contains ReferenceError",
		"log not_contains TypeError",
		"log contains DEBUG",
		"statistics.requestsRetries less_than 5",
		"statistics.crawlerRuntimeMillis within [6000, 600000]",
		"dataset_info.cleanItemCount equals 10",
		"items non_empty_array",
		"item shapes post",
	}
	if len(checks) != len(wantLabels) {
		t.Fatalf("got %d checks, want %d", len(checks), len(wantLabels))
	}
	for i, want := range wantLabels {
		if checks[i].Label() != want {
			t.Errorf("check %d label = %q, want %q", i, checks[i].Label(), want)
		}
	}
	if got := assert.Describe(checks[8]); got != "dataset_items[post]" {
		t.Errorf("item shape check = %q", got)
	}
}

func TestParse_JSON(t *testing.T) {
	doc := `{"scenarios": [{"name": "hello", "taskId": "task-1", "timeout": 5000,
		"assertions": {"status": "succeeded", "dataset_info": {"cleanItemCount": {"greater_than": 0}}}}]}`

	scenarios, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s := scenarios[0]
	if s.Name != "hello" || s.Job.TaskID != "task-1" || s.Timeout != 5*time.Second {
		t.Errorf("unexpected scenario %+v", s)
	}
	if len(s.Checks) != 2 {
		t.Errorf("expected 2 checks, got %d", len(s.Checks))
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", `scenarios: []`},
		{"no job", `
scenarios:
  - name: a
    assertions: {status: SUCCEEDED}`},
		{"both actor and task", `
scenarios:
  - name: a
    actorId: x
    taskId: y
    assertions: {status: SUCCEEDED}`},
		{"no assertions", `
scenarios:
  - name: a
    actorId: x`},
		{"unknown block", `
scenarios:
  - name: a
    actorId: x
    assertions: {screenshots: non_empty_array}`},
		{"unknown matcher", `
scenarios:
  - name: a
    actorId: x
    assertions: {log: to_be_pizza}`},
		{"duplicate name", `
scenarios:
  - {name: a, actorId: x, assertions: {status: SUCCEEDED}}
  - {name: a, actorId: y, assertions: {status: SUCCEEDED}}`},
		{"unnamed group scenario", `
groups:
  - name: g
    actorId: x
    scenarios:
      - assertions: {status: SUCCEEDED}`},
		{"not yaml", `scenarios: [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			var malformedErr *MalformedSpecError
			if !errors.As(err, &malformedErr) {
				t.Fatalf("expected MalformedSpecError, got %v", err)
			}
		})
	}
}

func TestParse_MalformedNamesScenario(t *testing.T) {
	_, err := Parse([]byte(`
groups:
  - name: G
    builds: [beta]
    scenarios:
      - name: s
        assertions: {status: SUCCEEDED}`))
	var malformedErr *MalformedSpecError
	if !errors.As(err, &malformedErr) {
		t.Fatalf("expected MalformedSpecError, got %v", err)
	}
	if malformedErr.Scenario != "G (beta version) › s" {
		t.Errorf("scenario = %q", malformedErr.Scenario)
	}
	if !strings.Contains(err.Error(), "actorId or taskId") {
		t.Errorf("error should explain the missing descriptor: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	if err := os.WriteFile(path, []byte(redditSpec), 0o600); err != nil {
		t.Fatal(err)
	}
	scenarios, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(scenarios) != 2 {
		t.Errorf("expected 2 scenarios, got %d", len(scenarios))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseNode_Embedded(t *testing.T) {
	var wrapper struct {
		TestSpec yaml.Node `yaml:"testSpec"`
	}
	input := `
testSpec:
  scenarios:
    - name: embedded
      actorId: x
      assertions: {status: SUCCEEDED}
`
	if err := yaml.Unmarshal([]byte(input), &wrapper); err != nil {
		t.Fatal(err)
	}
	scenarios, err := ParseNode(&wrapper.TestSpec)
	if err != nil {
		t.Fatalf("parse node: %v", err)
	}
	if scenarios[0].Name != "embedded" {
		t.Errorf("name = %q", scenarios[0].Name)
	}
}

func TestFromFunc(t *testing.T) {
	job := func(build string) types.JobDescriptor {
		return types.JobDescriptor{ActorID: "oAuCIx3ItNrs2okjQ", Options: types.RunOptions{Build: build}}
	}

	scenarios, err := FromFunc(func(r *Registrar) {
		for _, build := range []string{"beta", "latest"} {
			r.Describe("Reddit scraper ("+build+" version)", func() {
				r.It("posts", job(build), assert.Status("status", assert.Equals("SUCCEEDED")))
				r.ItWithTimeout("comments", time.Minute, job(build), assert.Log("log", assert.Contains("DEBUG")))
			})
		}
	})
	if err != nil {
		t.Fatalf("from func: %v", err)
	}

	wantNames := []string{
		"Reddit scraper (beta version) › posts",
		"Reddit scraper (beta version) › comments",
		"Reddit scraper (latest version) › posts",
		"Reddit scraper (latest version) › comments",
	}
	if len(scenarios) != len(wantNames) {
		t.Fatalf("got %d scenarios", len(scenarios))
	}
	for i, want := range wantNames {
		if scenarios[i].Name != want || scenarios[i].Index != i {
			t.Errorf("scenario %d = (%d, %q), want (%d, %q)", i, scenarios[i].Index, scenarios[i].Name, i, want)
		}
	}
	if scenarios[1].Timeout != time.Minute {
		t.Errorf("timeout = %v", scenarios[1].Timeout)
	}
}

func TestFromFunc_ZeroAssertions(t *testing.T) {
	_, err := FromFunc(func(r *Registrar) {
		r.It("bare", types.JobDescriptor{ActorID: "x"})
	})
	var malformedErr *MalformedSpecError
	if !errors.As(err, &malformedErr) {
		t.Fatalf("expected MalformedSpecError, got %v", err)
	}
}
