// Package normalize turns raw App Store responses into flat, tabular values.
//
// Three helpers live here:
//
//   - [Flatten] collapses list and map fields of a detail record into strings
//   - [ArrayExtractor] pulls an embedded JSON array out of an HTML page
//   - [RatingTotals] reads the per-star totals from a customer reviews page
//
// All of them are pure functions of their input.
package normalize

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// pairLister is implemented by values that render as "label: value" pairs,
// such as a star histogram.
type pairLister interface {
	Pairs() []string
}

// Flatten returns a copy of record in which every list value is joined with
// "," and every map value is rendered as "key: value" pairs joined with ", "
// in ascending key order. Scalars are kept as they are, so flattening an
// already flat record returns an equal record.
func Flatten(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for k, v := range record {
		out[k] = flattenValue(v)
	}
	return out
}

func flattenValue(v any) any {
	switch val := v.(type) {
	case []any:
		return strings.Join(lo.Map(val, func(x any, _ int) string { return scalarString(x) }), ",")
	case []string:
		return strings.Join(val, ",")
	case map[string]any:
		keys := lo.Keys(val)
		slices.Sort(keys)
		return strings.Join(lo.Map(keys, func(k string, _ int) string {
			return k + ": " + scalarString(val[k])
		}), ", ")
	case pairLister:
		return strings.Join(val.Pairs(), ", ")
	default:
		return v
	}
}

// scalarString renders a decoded JSON scalar. Whole floats print without a
// fraction so that IDs such as 6014 do not come out as 6014.000000.
func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprint(val)
	default:
		return fmt.Sprint(val)
	}
}
