// Package export writes app records to files and databases.
//
// Records arrive one at a time, typically straight from a batch lookup, and
// are written by a [Writer]:
//
//   - [CSVWriter]: one row per record; the header is the union of all fields
//   - [JSONLWriter]: one JSON object per line
//   - [MongoWriter]: one document per app, upserted on trackId
//
// Writers are not safe for concurrent use.
package export

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Record is one app record as produced by the lookup operations.
type Record = map[string]any

// Writer receives records in order. Close flushes whatever is buffered.
type Writer interface {
	Write(ctx context.Context, rec Record) error
	Close() error
}

// Format names an output format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSONL Format = "jsonl"
)

// Formats lists the file formats accepted by [NewFileWriter].
func Formats() []string { return []string{string(FormatCSV), string(FormatJSONL)} }

// NewFileWriter returns a writer for a file format.
func NewFileWriter(format string, w io.Writer) (Writer, error) {
	switch Format(strings.ToLower(format)) {
	case FormatCSV:
		return NewCSVWriter(w), nil
	case FormatJSONL:
		return NewJSONLWriter(w), nil
	default:
		return nil, fmt.Errorf("unknown export format %q (want one of %s)", format, strings.Join(Formats(), ", "))
	}
}
