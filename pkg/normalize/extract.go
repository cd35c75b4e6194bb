package normalize

import (
	"regexp"
	"strings"
)

// ArrayExtractor finds a JSON array embedded in raw page text.
// ok is false when the page holds no such array.
type ArrayExtractor interface {
	ExtractArray(text string) (array string, ok bool)
}

// RegexpExtractor locates the array with a pattern whose first capture group
// is the array text. Marker is a literal that must appear in the page before
// the pattern is tried.
type RegexpExtractor struct {
	Marker  string
	Pattern *regexp.Regexp
}

// AlsoBoughtExtractor extracts the "customers also bought" app IDs from a
// store page.
var AlsoBoughtExtractor = RegexpExtractor{
	Marker:  "customersAlsoBoughtApps",
	Pattern: regexp.MustCompile(`customersAlsoBoughtApps":\s*(\[[^\]]+\])`),
}

// ExtractArray implements [ArrayExtractor].
func (e RegexpExtractor) ExtractArray(text string) (string, bool) {
	if e.Marker != "" && !strings.Contains(text, e.Marker) {
		return "", false
	}
	m := e.Pattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}
