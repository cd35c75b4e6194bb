package itunes

import (
	"fmt"
	"math"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/normalize"
)

// RatingsField is the record key that holds the rating histogram.
const RatingsField = "user_ratings"

// RatingsUnavailable replaces the histogram when the rating lookup failed.
const RatingsUnavailable = "Error; unable to find app rating"

// AppRecord is one result of the lookup endpoint, keyed by field name.
// Values are what the JSON decoder produced until the record is flattened.
type AppRecord map[string]any

// TrackID returns the numeric "trackId" field, or 0 when it is missing.
func (r AppRecord) TrackID() int64 {
	n, _ := toInt64(r["trackId"])
	return n
}

// Flatten returns the record with list and map values collapsed to strings.
func (r AppRecord) Flatten() AppRecord {
	return normalize.Flatten(r)
}

// Histogram maps a star value (1 to 5) to a review count.
type Histogram map[int]int

// NewHistogram returns a histogram holding all five buckets at zero.
func NewHistogram() Histogram {
	h := make(Histogram, normalize.StarCount)
	for star := 1; star <= normalize.StarCount; star++ {
		h[star] = 0
	}
	return h
}

// AddTotals adds per-star totals listed from five stars down to one.
func (h Histogram) AddTotals(totals []int) {
	for i, n := range totals {
		star := normalize.StarCount - i
		if star < 1 || n < 0 {
			continue
		}
		h[star] += n
	}
}

// Add sums other into h.
func (h Histogram) Add(other Histogram) {
	for star, n := range other {
		h[star] += n
	}
}

// Total returns the number of ratings over all buckets.
func (h Histogram) Total() int {
	var sum int
	for _, n := range h {
		sum += n
	}
	return sum
}

// Pairs renders the histogram as "star: count" pairs, one star to five.
func (h Histogram) Pairs() []string {
	pairs := make([]string, 0, normalize.StarCount)
	for star := 1; star <= normalize.StarCount; star++ {
		pairs = append(pairs, fmt.Sprintf("%d: %d", star, h[star]))
	}
	return pairs
}

// toInt64 converts a decoded JSON ID (number or numeric string).
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// resultID converts a gjson value (number or numeric string) to an ID.
func resultID(r gjson.Result) (int64, bool) {
	switch r.Type {
	case gjson.Number:
		if r.Num != math.Trunc(r.Num) {
			return 0, false
		}
		return r.Int(), true
	case gjson.String:
		i, err := strconv.ParseInt(r.Str, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}
