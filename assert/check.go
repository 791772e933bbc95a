package assert

import (
	"context"
	"fmt"
	"sort"

	"github.com/pithecene-io/canary/types"
)

// Bundle is the lazily fetched result bundle of one run.
// Each view is fetched at most once; fetch failures are returned as errors.
type Bundle interface {
	Status() types.JobStatus
	Log(ctx context.Context) (string, error)
	DatasetInfo(ctx context.Context) (*types.DatasetInfo, error)
	DatasetItems(ctx context.Context) ([]types.Record, error)
	Statistics(ctx context.Context) (*types.Statistics, error)
}

// Failure is one failed predicate.
type Failure struct {
	Label   string
	Message string
}

// Check is one assertion over a view of the bundle.
type Check interface {
	// Label is the human-readable context of the check.
	Label() string
	// View is the bundle view the check reads.
	View() types.View
	// Evaluate returns one Failure per failing predicate. A non-nil error means
	// the view could not be fetched.
	Evaluate(ctx context.Context, b Bundle) ([]Failure, error)
}

// valueCheck applies one matcher to one value of a view.
type valueCheck struct {
	label   string
	view    types.View
	field   string
	matcher Matcher
}

// Status checks the run's terminal status.
func Status(label string, m Matcher) Check {
	return &valueCheck{label: label, view: types.ViewStatus, matcher: m}
}

// Log checks the full run log text.
func Log(label string, m Matcher) Check {
	return &valueCheck{label: label, view: types.ViewLog, matcher: m}
}

// Info checks a dotted field of the dataset info (e.g. "cleanItemCount").
func Info(label, field string, m Matcher) Check {
	return &valueCheck{label: label, view: types.ViewDatasetInfo, field: field, matcher: m}
}

// Stats checks a dotted field of the run statistics (e.g. "requestsRetries").
func Stats(label, field string, m Matcher) Check {
	return &valueCheck{label: label, view: types.ViewStatistics, field: field, matcher: m}
}

// Items checks the dataset items as a whole (e.g. NonEmptyArray).
func Items(label string, m Matcher) Check {
	return &valueCheck{label: label, view: types.ViewDatasetItems, matcher: m}
}

func (c *valueCheck) Label() string    { return c.label }
func (c *valueCheck) View() types.View { return c.view }

func (c *valueCheck) Evaluate(ctx context.Context, b Bundle) ([]Failure, error) {
	actual, err := c.value(ctx, b)
	if err != nil {
		return nil, err
	}
	if ok, msg := c.matcher.Match(actual); !ok {
		if c.field != "" {
			msg = c.field + ": " + msg
		}
		return []Failure{{Label: c.label, Message: msg}}, nil
	}
	return nil, nil
}

func (c *valueCheck) value(ctx context.Context, b Bundle) (any, error) {
	switch c.view {
	case types.ViewStatus:
		return string(b.Status()), nil
	case types.ViewLog:
		return b.Log(ctx)
	case types.ViewDatasetItems:
		items, err := b.DatasetItems(ctx)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []types.Record{}
		}
		return items, nil
	case types.ViewDatasetInfo:
		info, err := b.DatasetInfo(ctx)
		if err != nil {
			return nil, err
		}
		v, _ := info.AsRecord().Field(c.field)
		return v, nil
	case types.ViewStatistics:
		stats, err := b.Statistics(ctx)
		if err != nil {
			return nil, err
		}
		v, _ := stats.AsRecord().Field(c.field)
		return v, nil
	default:
		return nil, fmt.Errorf("unknown view %q", c.view)
	}
}

// AnyDataType is the shape table key applied to every item regardless of its tag.
const AnyDataType = "*"

// FieldCheck is one matcher applied to a dotted field of an item.
type FieldCheck struct {
	Field   string
	Matcher Matcher
}

// ShapeTable maps a dataType tag to the field checks for items of that kind.
type ShapeTable map[string][]FieldCheck

// itemShapeCheck applies the checker selected by each item's dataType.
type itemShapeCheck struct {
	label  string
	shapes ShapeTable
}

// ItemShapes checks each dataset item independently. The item's dataType tag
// selects the field checks from shapes; items with no matching entry are skipped.
// Checks under AnyDataType apply to every item.
func ItemShapes(label string, shapes ShapeTable) Check {
	return &itemShapeCheck{label: label, shapes: shapes}
}

func (c *itemShapeCheck) Label() string    { return c.label }
func (c *itemShapeCheck) View() types.View { return types.ViewDatasetItems }

// DataTypes returns the tags with registered checkers, sorted.
func (c *itemShapeCheck) DataTypes() []string {
	tags := make([]string, 0, len(c.shapes))
	for tag := range c.shapes {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func (c *itemShapeCheck) Evaluate(ctx context.Context, b Bundle) ([]Failure, error) {
	items, err := b.DatasetItems(ctx)
	if err != nil {
		return nil, err
	}
	var failures []Failure
	for i, item := range items {
		tag := item.DataType()
		checks := c.shapes[AnyDataType]
		if tag != "" {
			checks = append(checks[:len(checks):len(checks)], c.shapes[tag]...)
		}
		for _, fc := range checks {
			v, _ := item.Field(fc.Field)
			if ok, msg := fc.Matcher.Match(v); !ok {
				failures = append(failures, Failure{
					Label:   c.label,
					Message: fmt.Sprintf("item %d (%s) %s: %s", i, displayTag(tag), fc.Field, msg),
				})
			}
		}
	}
	return failures, nil
}

func displayTag(tag string) string {
	if tag == "" {
		return "untagged"
	}
	return tag
}
