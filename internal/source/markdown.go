package source

import (
	"fmt"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownReader extracts records from the first pipe table in a Markdown
// file using goldmark's table extension.
type MarkdownReader struct{}

func (p *MarkdownReader) ReadRecords(r io.Reader, filename string) ([]Record, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(src))

	table := findTable(doc)
	if table == nil {
		return nil, fmt.Errorf("markdown: %w", ErrNoHeader)
	}

	// Table children are the header row followed by data rows.
	var rows [][]string
	for n := table.FirstChild(); n != nil; n = n.NextSibling() {
		switch n.(type) {
		case *east.TableHeader, *east.TableRow:
			var row []string
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				row = append(row, string(c.Text(src)))
			}
			rows = append(rows, row)
		}
	}

	return fromRows(rows)
}

// findTable returns the first table node in the document, or nil.
func findTable(doc ast.Node) ast.Node {
	var table ast.Node
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if _, ok := n.(*east.Table); ok {
			table = n
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return table
}
