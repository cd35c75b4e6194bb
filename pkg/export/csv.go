package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/samber/lo"

	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/normalize"
)

// leadingColumns come first in the header when present.
var leadingColumns = []string{"trackId", "trackName", "bundleId", "artistName"}

// CSVWriter buffers records until Close, because the header has to cover
// every field that any record carries. Records are flattened before they
// are written.
type CSVWriter struct {
	w       io.Writer
	records []Record
	columns map[string]struct{}
}

// NewCSVWriter returns a CSVWriter writing to w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: w, columns: make(map[string]struct{})}
}

func (c *CSVWriter) Write(_ context.Context, rec Record) error {
	flat := normalize.Flatten(rec)
	for k := range flat {
		c.columns[k] = struct{}{}
	}
	c.records = append(c.records, flat)
	return nil
}

// Header returns the columns in output order: the well-known identifying
// fields first, then the rest alphabetically.
func (c *CSVWriter) Header() []string {
	lead := lo.Filter(leadingColumns, func(col string, _ int) bool {
		_, ok := c.columns[col]
		return ok
	})
	rest := lo.Filter(lo.Keys(c.columns), func(col string, _ int) bool {
		return !lo.Contains(leadingColumns, col)
	})
	slices.Sort(rest)
	return append(lead, rest...)
}

func (c *CSVWriter) Close() error {
	if len(c.records) == 0 {
		return nil
	}
	header := c.Header()
	cw := csv.NewWriter(c.w)
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for _, rec := range c.records {
		for i, col := range header {
			row[i] = cell(rec[col])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func cell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	default:
		if b, err := json.Marshal(val); err == nil {
			return string(b)
		}
		return fmt.Sprint(val)
	}
}
