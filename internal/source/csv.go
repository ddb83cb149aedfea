package source

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVReader handles comma- and tab-separated files.
type CSVReader struct {
	Comma rune // field delimiter, ',' if zero
}

func (p *CSVReader) ReadRecords(r io.Reader, filename string) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	if p.Comma != 0 {
		reader.Comma = p.Comma
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	return fromRows(rows)
}
