package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSV renders tables as RFC 4180 CSV.
type CSV struct{}

// NewCSV builds a CSV renderer.
func NewCSV() *CSV {
	return &CSV{}
}

func (CSV) ContentType() string { return "text/csv" }
func (CSV) Extension() string   { return "csv" }

// Render writes a header row followed by every table row. The title is not emitted.
func (CSV) Render(t Table) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(t.Columns); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	if err := writer.WriteAll(t.Rows); err != nil {
		return nil, fmt.Errorf("write csv rows: %w", err)
	}
	return buf.Bytes(), nil
}
