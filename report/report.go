// Package report turns suite failures into link-annotated text for humans.
//
// Each failure becomes one fenced block whose bare URLs are rewritten into
// chat links labelled with their last path segment. Blocks are ordered by
// scenario registration order, so reports are stable and diffable.
package report

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/pithecene-io/canary/types"
)

// DefaultConsoleURL is the web console base used for run links.
const DefaultConsoleURL = "https://console.apify.com"

// Fence delimits each failure block.
const Fence = "```"

// RunLink returns the console deep link to a run. consoleURL is either a base
// URL ("https://console.apify.com" gives <base>/actors/<actor>/runs/<run>) or a
// template containing {actorId} and {runId}, e.g.
// "https://my.apify.com/actors/{actorId}#/runs/{runId}".
func RunLink(h *types.JobHandle, consoleURL string) string {
	if h.IsZero() {
		return ""
	}
	if consoleURL == "" {
		consoleURL = DefaultConsoleURL
	}
	if strings.Contains(consoleURL, "{runId}") {
		return strings.NewReplacer("{actorId}", h.ActorID, "{runId}", h.RunID).Replace(consoleURL)
	}
	return fmt.Sprintf("%s/actors/%s/runs/%s", strings.TrimRight(consoleURL, "/"), h.ActorID, h.RunID)
}

// RunMessageFormatter returns a formatter closing over the run's identity.
// The formatter suffixes a context label with the run link:
//
//	<label>
//	<link> :
func RunMessageFormatter(h *types.JobHandle, consoleURL string) func(label string) string {
	link := RunLink(h, consoleURL)
	return func(label string) string {
		if link == "" {
			return label + " :"
		}
		return label + "\n" + link + " :"
	}
}

var urlPattern = regexp.MustCompile(`https://\S+`)

// LinkToMarkdown rewrites every bare https URL into a chat link whose display
// text is the URL's final path segment: <url|segment>. Trailing slashes are
// ignored when picking the segment, so https://x/a/ displays as "a" rather
// than an empty label. All other text is unchanged.
func LinkToMarkdown(body string) string {
	return urlPattern.ReplaceAllStringFunc(body, func(url string) string {
		return "<" + url + "|" + lastSegment(url) + ">"
	})
}

func lastSegment(url string) string {
	trimmed := strings.TrimRight(url, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// FormatFailure renders one failure as a fenced, link-rewritten block.
func FormatFailure(f types.FailureRecord) string {
	label := f.ScenarioName
	if f.ContextLabel != "" {
		label += " › " + f.ContextLabel
	}
	var b strings.Builder
	b.WriteString(label)
	if f.RunLink != "" {
		b.WriteString("\n" + f.RunLink)
	}
	b.WriteString(" : " + f.Message)
	return Fence + LinkToMarkdown(b.String()) + Fence
}

// CollectFailures flattens the failures into one ordered sequence of blocks,
// sorted by scenario registration order. Within a scenario, declaration order
// is kept.
func CollectFailures(failures []types.FailureRecord) []string {
	sorted := slices.Clone(failures)
	slices.SortStableFunc(sorted, func(a, b types.FailureRecord) int {
		return a.ScenarioIndex - b.ScenarioIndex
	})
	out := make([]string, len(sorted))
	for i, f := range sorted {
		out[i] = FormatFailure(f)
	}
	return out
}

// Headline is the one-line summary of a suite result.
func Headline(r *types.SuiteResult) string {
	return fmt.Sprintf("Suite %s %s: %d/%d scenarios passed (%s)",
		r.SuiteName, r.Status, r.Count(types.ScenarioPassed), len(r.Scenarios), r.SuiteRunID)
}

// Text is the full chat message: the headline followed by every failure block.
func Text(r *types.SuiteResult) string {
	blocks := CollectFailures(r.Failures)
	if len(blocks) == 0 {
		return Headline(r)
	}
	return Headline(r) + "\n" + strings.Join(blocks, "\n")
}
