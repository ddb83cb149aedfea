package source

import (
	"fmt"
	"io"
	"os"

	pdflib "github.com/ledongthuc/pdf"
)

// PDFReader extracts records from row-oriented PDF pages. Each visual row
// becomes one grid row; each text run within the row becomes one cell. This
// works for PDFs produced from spreadsheet exports, where cells map to
// distinct text runs.
type PDFReader struct{}

func (p *PDFReader) ReadRecords(r io.Reader, filename string) ([]Record, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "formforge-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	rows, err := extractPDFRows(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("extract pdf rows: %w", err)
	}

	return fromRows(rows)
}

func extractPDFRows(path string) ([][]string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var grid [][]string
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		for _, row := range rows {
			var cells []string
			for _, t := range row.Content {
				cells = append(cells, t.S)
			}
			if len(cells) > 0 {
				grid = append(grid, cells)
			}
		}
	}
	return grid, nil
}
