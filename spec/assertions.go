package spec

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/canary/assert"
)

// Assertion block keys.
const (
	keyStatus      = "status"
	keyLog         = "log"
	keyStatistics  = "statistics"
	keyDatasetInfo = "dataset_info"
	keyItems       = "items"
	keyItemShapes  = "item_shapes"
)

// namedMatcher is a parsed matcher plus the text used in its context label.
type namedMatcher struct {
	label   string
	matcher assert.Matcher
}

// parseAssertions converts an assertion block into checks, preserving
// declaration order.
//
//	status: SUCCEEDED
//	log: [{not_contains: ReferenceError}, {contains: DEBUG}]
//	statistics: {requestsRetries: {less_than: 5}}
//	dataset_info: {cleanItemCount: {equals: 10}}
//	items: non_empty_array
//	item_shapes: {post: {url: {starts_with: "https://www.reddit.com/r/"}}}
func parseAssertions(n *yaml.Node) ([]assert.Check, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: assertions must be a mapping", n.Line)
	}

	var checks []assert.Check
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i].Value, n.Content[i+1]
		switch key {
		case keyStatus:
			ms, err := parseStatus(val)
			if err != nil {
				return nil, err
			}
			for _, m := range ms {
				checks = append(checks, assert.Status("status "+m.label, m.matcher))
			}
		case keyLog:
			ms, err := parseMatchers(val)
			if err != nil {
				return nil, err
			}
			for _, m := range ms {
				checks = append(checks, assert.Log("log "+m.label, m.matcher))
			}
		case keyItems:
			ms, err := parseMatchers(val)
			if err != nil {
				return nil, err
			}
			for _, m := range ms {
				checks = append(checks, assert.Items("items "+m.label, m.matcher))
			}
		case keyStatistics, keyDatasetInfo:
			err := eachField(val, func(field string, ms []namedMatcher) {
				for _, m := range ms {
					label := key + "." + field + " " + m.label
					if key == keyStatistics {
						checks = append(checks, assert.Stats(label, field, m.matcher))
					} else {
						checks = append(checks, assert.Info(label, field, m.matcher))
					}
				}
			})
			if err != nil {
				return nil, err
			}
		case keyItemShapes:
			c, err := parseItemShapes(val)
			if err != nil {
				return nil, err
			}
			checks = append(checks, c)
		default:
			return nil, fmt.Errorf("line %d: unknown assertion block %q", n.Content[i].Line, key)
		}
	}
	return checks, nil
}

// parseStatus accepts a bare status as shorthand for equals.
func parseStatus(n *yaml.Node) ([]namedMatcher, error) {
	if n.Kind == yaml.ScalarNode {
		return []namedMatcher{{label: "equals " + n.Value, matcher: assert.Equals(strings.ToUpper(n.Value))}}, nil
	}
	return parseMatchers(n)
}

// parseItemShapes reads {tag: {field: matchers}}.
func parseItemShapes(n *yaml.Node) (assert.Check, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: item_shapes must map dataType to field checks", n.Line)
	}
	shapes := assert.ShapeTable{}
	tags := make([]string, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		tag := n.Content[i].Value
		tags = append(tags, tag)
		err := eachField(n.Content[i+1], func(field string, ms []namedMatcher) {
			for _, m := range ms {
				shapes[tag] = append(shapes[tag], assert.FieldCheck{Field: field, Matcher: m.matcher})
			}
		})
		if err != nil {
			return nil, err
		}
	}
	return assert.ItemShapes("item shapes "+strings.Join(tags, ","), shapes), nil
}

// eachField walks {field: matchers} in declaration order.
func eachField(n *yaml.Node, fn func(field string, ms []namedMatcher)) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of field to matchers", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		ms, err := parseMatchers(n.Content[i+1])
		if err != nil {
			return err
		}
		fn(n.Content[i].Value, ms)
	}
	return nil
}

// parseMatchers reads one matcher expression or a list of them:
// a bare name ("non_empty_string"), or {name: arg} pairs.
func parseMatchers(n *yaml.Node) ([]namedMatcher, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		m, err := assert.ParseMatcher(n.Value, nil)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return []namedMatcher{{label: n.Value, matcher: m}}, nil
	case yaml.MappingNode:
		var out []namedMatcher
		for i := 0; i+1 < len(n.Content); i += 2 {
			name, argNode := n.Content[i].Value, n.Content[i+1]
			var arg any
			if err := argNode.Decode(&arg); err != nil {
				return nil, fmt.Errorf("line %d: %w", argNode.Line, err)
			}
			m, err := assert.ParseMatcher(name, arg)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", n.Content[i].Line, err)
			}
			out = append(out, namedMatcher{label: name + " " + argText(argNode), matcher: m})
		}
		return out, nil
	case yaml.SequenceNode:
		var out []namedMatcher
		for _, item := range n.Content {
			ms, err := parseMatchers(item)
			if err != nil {
				return nil, err
			}
			out = append(out, ms...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("line %d: invalid matcher expression", n.Line)
	}
}

// argText renders a matcher argument for labels.
func argText(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Value
	case yaml.SequenceNode:
		parts := make([]string, len(n.Content))
		for i, c := range n.Content {
			parts[i] = argText(c)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		out, err := yaml.Marshal(n)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(out))
	}
}
