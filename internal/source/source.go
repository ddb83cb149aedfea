package source

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Record is one normalized row of tabular input. Columns preserves the
// header order; Fields maps column name to cell value. Records are not
// modified after they are read.
type Record struct {
	Columns []string
	Fields  map[string]string
}

// Get returns the value of the named column, or "" if absent.
func (r Record) Get(column string) string {
	return r.Fields[column]
}

// ErrNoHeader is returned when a source has no header row defining field
// names. It is raised before any records are produced.
var ErrNoHeader = errors.New("tabular source: no header row")

// Reader converts raw tabular bytes into Records. The first row of the
// underlying grid is a header defining field names for all subsequent rows.
type Reader interface {
	ReadRecords(r io.Reader, filename string) ([]Record, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".csv":  true,
	".tsv":  true,
	".md":   true,
	".html": true,
	".htm":  true,
	".pdf":  true,
}

// ForFile returns the appropriate reader for a filename.
func ForFile(filename string) (Reader, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".csv":
		return &CSVReader{}, nil
	case ".tsv":
		return &CSVReader{Comma: '\t'}, nil
	case ".md", ".markdown":
		return &MarkdownReader{}, nil
	case ".html", ".htm":
		return &HTMLReader{}, nil
	case ".pdf":
		return &PDFReader{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// fromRows converts a raw grid into Records. The first row is the header.
// A missing or all-blank header row fails with ErrNoHeader; this happens
// before any record is produced, so a failed read never leaves partial state.
func fromRows(rows [][]string) ([]Record, error) {
	if len(rows) == 0 {
		return nil, ErrNoHeader
	}

	header := rows[0]
	columns := make([]string, len(header))
	blank := true
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
		if columns[i] != "" {
			blank = false
		}
	}
	if blank {
		return nil, ErrNoHeader
	}

	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		fields := make(map[string]string, len(columns))
		for i, name := range columns {
			if name == "" {
				continue
			}
			if i < len(row) {
				fields[name] = strings.TrimSpace(row[i])
			} else {
				fields[name] = ""
			}
		}
		records = append(records, Record{Columns: columns, Fields: fields})
	}
	return records, nil
}
