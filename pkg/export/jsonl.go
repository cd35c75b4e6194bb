package export

import (
	"context"
	"encoding/json"
	"io"
)

// JSONLWriter writes each record as one line of JSON as soon as it arrives.
type JSONLWriter struct {
	enc *json.Encoder
}

// NewJSONLWriter returns a JSONLWriter writing to w.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{enc: enc}
}

func (j *JSONLWriter) Write(_ context.Context, rec Record) error {
	return j.enc.Encode(rec)
}

func (j *JSONLWriter) Close() error { return nil }
