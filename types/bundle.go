package types

import (
	"strconv"
	"strings"
)

// View names one lazily fetched part of a result bundle.
type View string

// Result bundle views.
const (
	ViewStatus       View = "status"
	ViewLog          View = "log"
	ViewDatasetInfo  View = "dataset_info"
	ViewDatasetItems View = "dataset_items"
	ViewStatistics   View = "statistics"
)

// Record is one schemaless JSON object: a dataset item, dataset info, or statistics.
type Record map[string]any

// Field looks up a dotted path ("a.b.c") through nested objects.
// Returns false if any segment is missing or not an object.
func (r Record) Field(path string) (any, bool) {
	if r == nil {
		return nil, false
	}
	var cur any = map[string]any(r)
	for _, seg := range strings.Split(path, ".") {
		switch m := cur.(type) {
		case map[string]any:
			v, ok := m[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case Record:
			v, ok := m[seg]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

// DataTypeField is the discriminator field of heterogeneous dataset items.
const DataTypeField = "dataType"

// DataType returns the item's discriminator tag, or "" if absent.
func (r Record) DataType() string {
	s, _ := r[DataTypeField].(string)
	return s
}

// DatasetInfo is the aggregate info of a run's dataset.
type DatasetInfo struct {
	ID             string `json:"id" msgpack:"id"`
	CleanItemCount int64  `json:"clean_item_count" msgpack:"clean_item_count"`
	ItemCount      int64  `json:"item_count" msgpack:"item_count"`
	// Raw is the full info object as returned by the platform.
	Raw Record `json:"raw,omitempty" msgpack:"raw,omitempty"`
}

// AsRecord exposes the info to field matchers. Typed fields win over Raw.
func (i *DatasetInfo) AsRecord() Record {
	r := Record{}
	for k, v := range i.Raw {
		r[k] = v
	}
	r["id"] = i.ID
	r["cleanItemCount"] = i.CleanItemCount
	r["itemCount"] = i.ItemCount
	return r
}

// Statistics are a run's crawler execution statistics.
type Statistics struct {
	RequestsRetries      int64  `json:"requests_retries" msgpack:"requests_retries"`
	CrawlerRuntimeMillis int64  `json:"crawler_runtime_millis" msgpack:"crawler_runtime_millis"`
	Raw                  Record `json:"raw,omitempty" msgpack:"raw,omitempty"`
}

// AsRecord exposes the statistics to field matchers. Typed fields win over Raw.
func (s *Statistics) AsRecord() Record {
	r := Record{}
	for k, v := range s.Raw {
		r[k] = v
	}
	r["requestsRetries"] = s.RequestsRetries
	r["crawlerRuntimeMillis"] = s.CrawlerRuntimeMillis
	return r
}

// ToInt64 converts a decoded JSON/YAML/msgpack number to int64.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float32:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// ToFloat64 converts a numeric value to float64. Strings are not numbers.
func ToFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case string, nil, bool:
		return 0, false
	default:
		i, ok := ToInt64(v)
		return float64(i), ok
	}
}
