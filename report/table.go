package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/pithecene-io/canary/types"
)

// SummaryTable renders the suite result as a table, one row per scenario.
func SummaryTable(w io.Writer, r *types.SuiteResult, colored bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("%s (%s)", r.SuiteName, r.SuiteRunID))
	t.AppendHeader(table.Row{"#", "SCENARIO", "STATUS", "JOB STATUS", "ATTEMPTS", "FAILURES", "DURATION"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight},
		{Name: "SCENARIO", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
		{Name: "ATTEMPTS", Align: text.AlignRight},
		{Name: "FAILURES", Align: text.AlignRight},
		{Name: "DURATION", Align: text.AlignRight},
	})

	for _, s := range r.Scenarios {
		t.AppendRow(table.Row{
			s.Index + 1,
			s.Name,
			string(s.Status),
			string(s.JobStatus),
			s.Attempts,
			len(s.Failures),
			s.Duration.Round(time.Millisecond).String(),
		})
	}
	t.AppendFooter(table.Row{"", "TOTAL", string(r.Status), "", "", len(r.Failures), r.Duration.Round(time.Millisecond).String()})

	switch {
	case !colored:
		t.SetStyle(table.StyleLight)
	case r.Status == types.SuiteSucceeded:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	case r.Status == types.SuiteAborted:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}
	t.Render()
}
