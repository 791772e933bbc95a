// Package render formats CLI output.
//
// Format selection:
//   - --format always wins; invalid formats are errors
//   - otherwise table on a TTY and json elsewhere
//
// --no-color affects table output only.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/canary/cli/reader"
	"github.com/pithecene-io/canary/report"
	"github.com/pithecene-io/canary/types"
)

// Format is an output format.
type Format string

const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format name. The empty string is returned unchanged
// so the caller can apply the TTY default.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatTable, FormatYAML, "":
		return f, nil
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer writes values in one format.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// New creates a renderer writing to stdout. An empty format selects table
// on a TTY and json otherwise.
func New(format string, noColor bool) (*Renderer, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	if f == "" {
		f = FormatJSON
		if isTTY(os.Stdout) {
			f = FormatTable
		}
	}
	return &Renderer{format: f, noColor: noColor, out: os.Stdout}, nil
}

// NewWithWriter creates a renderer with a fixed format and writer.
func NewWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{format: format, noColor: noColor, out: out}
}

// Format returns the selected format.
func (r *Renderer) Format() Format { return r.format }

// Render writes data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		return r.renderYAML(data)
	case FormatTable:
		return r.renderTable(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// renderYAML goes through JSON so YAML keys match the json tags.
func (r *Renderer) renderYAML(data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

func (r *Renderer) newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	if title != "" {
		t.SetTitle(title)
	}
	t.SetStyle(table.StyleLight)
	if !r.noColor {
		t.Style().Color.Header = text.Colors{text.Bold}
		t.Style().Color.Footer = text.Colors{text.Bold}
	}
	return t
}

func (r *Renderer) renderTable(data any) error {
	switch d := data.(type) {
	case *types.SuiteResult:
		report.SummaryTable(r.out, d, !r.noColor)
		r.failureTable(d.Failures)
	case *reader.StatsResponse:
		r.statsTable(d)
	case *reader.InspectResponse:
		r.inspectTable(d)
	default:
		r.fieldTable(data)
	}
	return nil
}

func (r *Renderer) failureTable(failures []types.FailureRecord) {
	if len(failures) == 0 {
		return
	}
	t := r.newTable("Failures")
	t.AppendHeader(table.Row{"SCENARIO", "ASSERTION", "KIND", "MESSAGE", "RUN"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "MESSAGE", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})
	for _, f := range failures {
		t.AppendRow(table.Row{f.ScenarioName, f.ContextLabel, string(f.Kind), f.Message, f.RunLink})
	}
	t.Render()
}

func ms(v int64) string {
	return (time.Duration(v) * time.Millisecond).String()
}

func (r *Renderer) statsTable(d *reader.StatsResponse) {
	title := "Suite history"
	if d.Suite != "" {
		title += ": " + d.Suite
	}
	t := r.newTable(title)
	t.AppendHeader(table.Row{"SUITE RUN", "SUITE", "STATUS", "STARTED", "PASSED", "FAILURES", "DURATION"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "PASSED", Align: text.AlignRight},
		{Name: "FAILURES", Align: text.AlignRight},
		{Name: "DURATION", Align: text.AlignRight},
	})
	for _, run := range d.Recent {
		t.AppendRow(table.Row{
			run.SuiteRunID, run.Suite, string(run.Status), run.StartedAt,
			fmt.Sprintf("%d/%d", run.Passed, run.Scenarios), run.Failures, ms(run.DurationMS),
		})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d runs", d.Runs), "",
		fmt.Sprintf("%d ok / %d failed / %d aborted", d.Succeeded, d.Failed, d.Aborted),
		fmt.Sprintf("%.0f%% success", d.SuccessRate*100), "", "", "",
	})
	t.Render()
}

func (r *Renderer) inspectTable(d *reader.InspectResponse) {
	t := r.newTable(fmt.Sprintf("%s (%s)", d.Run.Suite, d.Run.SuiteRunID))
	t.AppendHeader(table.Row{"#", "SCENARIO", "STATUS", "JOB STATUS", "RUN", "ATTEMPTS", "DURATION"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight},
		{Name: "ATTEMPTS", Align: text.AlignRight},
		{Name: "DURATION", Align: text.AlignRight},
	})
	for _, s := range d.Scenarios {
		t.AppendRow(table.Row{s.Index + 1, s.Name, string(s.Status), string(s.JobStatus), s.RunID, s.Attempts, ms(s.DurationMS)})
	}
	t.AppendFooter(table.Row{"", d.Run.StartedAt, string(d.Run.Status), "", "", "", ms(d.Run.DurationMS)})
	t.Render()
	r.failureTable(d.Failures)
}

// fieldTable renders a struct or map as FIELD/VALUE rows, and a slice of
// them as one row per element.
func (r *Renderer) fieldTable(data any) {
	v := reflect.Indirect(reflect.ValueOf(data))
	t := r.newTable("")

	switch v.Kind() {
	case reflect.Struct:
		t.AppendHeader(table.Row{"FIELD", "VALUE"})
		typ := v.Type()
		for i := range typ.NumField() {
			if !typ.Field(i).IsExported() {
				continue
			}
			t.AppendRow(table.Row{fieldName(typ.Field(i)), formatValue(v.Field(i))})
		}
	case reflect.Map:
		t.AppendHeader(table.Row{"KEY", "VALUE"})
		t.SortBy([]table.SortBy{{Name: "KEY", Mode: table.Asc}})
		iter := v.MapRange()
		for iter.Next() {
			t.AppendRow(table.Row{fmt.Sprint(iter.Key().Interface()), formatValue(iter.Value())})
		}
	case reflect.Slice:
		if v.Len() == 0 {
			fmt.Fprintln(r.out, "(no results)")
			return
		}
		elem := reflect.Indirect(v.Index(0))
		if elem.Kind() != reflect.Struct {
			for i := range v.Len() {
				t.AppendRow(table.Row{formatValue(v.Index(i))})
			}
			break
		}
		fields := reflect.VisibleFields(elem.Type())
		var header table.Row
		for _, f := range fields {
			if f.IsExported() && !f.Anonymous {
				header = append(header, strings.ToUpper(fieldName(f)))
			}
		}
		t.AppendHeader(header)
		for i := range v.Len() {
			e := reflect.Indirect(v.Index(i))
			var row table.Row
			for _, f := range fields {
				if f.IsExported() && !f.Anonymous {
					row = append(row, formatValue(e.FieldByIndex(f.Index)))
				}
			}
			t.AppendRow(row)
		}
	default:
		fmt.Fprintf(r.out, "%v\n", data)
		return
	}
	t.Render()
}

func fieldName(f reflect.StructField) string {
	if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" && name != "-" {
		return name
	}
	return strings.ToLower(f.Name)
}

func formatValue(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	if v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "[]"
		}
		if v.Type().Elem().Kind() == reflect.String {
			parts := make([]string, v.Len())
			for i := range parts {
				parts[i] = v.Index(i).String()
			}
			return strings.Join(parts, ", ")
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		return "{...}"
	default:
		return fmt.Sprint(v.Interface())
	}
}

func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
