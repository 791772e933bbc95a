package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Namespace prefixes every exported metric name.
const Namespace = "canary"

// DefaultJob is the Pushgateway job name used when none is configured.
const DefaultJob = "canary"

// Registry builds a Prometheus registry holding the snapshot as gauges.
// Gauges rather than counters: each suite run pushes a fresh absolute snapshot.
func (s Snapshot) Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()

	scenarios := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "scenarios",
		Help:      "Scenarios by reported status",
	}, []string{"status"})
	scenarios.WithLabelValues("started").Set(float64(s.ScenariosStarted))
	scenarios.WithLabelValues("passed").Set(float64(s.ScenariosPassed))
	scenarios.WithLabelValues("failed").Set(float64(s.ScenariosFailed))
	scenarios.WithLabelValues("timed_out").Set(float64(s.ScenariosTimedOut))
	scenarios.WithLabelValues("errored").Set(float64(s.ScenariosErrored))
	scenarios.WithLabelValues("aborted").Set(float64(s.ScenariosAborted))

	fetches := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "fetches",
		Help:      "Result view fetches by view and outcome",
	}, []string{"view", "outcome"})
	for view, n := range s.Fetches {
		fetches.WithLabelValues(view, "ok").Set(float64(n - s.FetchFailures[view]))
	}
	for view, n := range s.FetchFailures {
		fetches.WithLabelValues(view, "error").Set(float64(n))
	}

	reg.MustRegister(scenarios, fetches)
	for name, v := range map[string]struct {
		help  string
		value int64
	}{
		"scenario_retries":      {"Whole-scenario retries", s.ScenarioRetries},
		"submissions":           {"Job submission attempts", s.Submissions},
		"submission_retries":    {"Retries after transient submission errors", s.SubmissionRetries},
		"submission_failures":   {"Submissions failed after all retries", s.SubmissionFailures},
		"status_polls":          {"Job status polls", s.StatusPolls},
		"cancellations":         {"Cancel requests sent", s.Cancellations},
		"failure_records":       {"Reported failure records", s.FailureRecords},
		"history_write_success": {"Successful history writes", s.HistoryWriteSuccess},
		"history_write_failure": {"Failed history writes", s.HistoryWriteFailure},
	} {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: Namespace, Name: name, Help: v.help})
		g.Set(float64(v.value))
		reg.MustRegister(g)
	}
	return reg
}

// Push sends the snapshot to a Prometheus Pushgateway, grouped by suite.
// The grouping replaces the previous push of the same suite.
func Push(ctx context.Context, url, job string, s Snapshot) error {
	if job == "" {
		job = DefaultJob
	}
	pusher := push.New(url, job).Gatherer(s.Registry()).Grouping("suite", s.Suite)
	if s.Platform != "" {
		pusher = pusher.Grouping("platform", s.Platform)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
