package source

import (
	"errors"
	"strings"
	"testing"
)

func TestCSVReader_HeaderContract(t *testing.T) {
	input := "Borough,Park\nBronx,A\nBronx,B\nQueens,C\n"
	records, err := (&CSVReader{}).ReadRecords(strings.NewReader(input), "parks.csv")
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if got := records[0].Get("Borough"); got != "Bronx" {
		t.Errorf("record 0 Borough = %q", got)
	}
	if got := records[2].Get("Park"); got != "C" {
		t.Errorf("record 2 Park = %q", got)
	}
	want := []string{"Borough", "Park"}
	for i, col := range records[0].Columns {
		if col != want[i] {
			t.Errorf("column %d = %q, want %q", i, col, want[i])
		}
	}
}

func TestCSVReader_NoHeader(t *testing.T) {
	for name, input := range map[string]string{
		"empty":        "",
		"blank header": " , \nBronx,A\n",
	} {
		_, err := (&CSVReader{}).ReadRecords(strings.NewReader(input), "parks.csv")
		if !errors.Is(err, ErrNoHeader) {
			t.Errorf("%s: error = %v, want ErrNoHeader", name, err)
		}
	}
}

func TestCSVReader_ShortRowsPadded(t *testing.T) {
	input := "Borough,Park\nBronx\n"
	records, err := (&CSVReader{}).ReadRecords(strings.NewReader(input), "parks.csv")
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if got := records[0].Get("Park"); got != "" {
		t.Errorf("missing cell = %q, want empty", got)
	}
}

func TestCSVReader_TabDelimited(t *testing.T) {
	input := "Borough\tPark\nBronx\tA\n"
	records, err := (&CSVReader{Comma: '\t'}).ReadRecords(strings.NewReader(input), "parks.tsv")
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if got := records[0].Get("Park"); got != "A" {
		t.Errorf("Park = %q, want A", got)
	}
}

func TestMarkdownReader_PipeTable(t *testing.T) {
	input := `# Parks

Some intro text.

| Borough | Park |
| ------- | ---- |
| Bronx   | A    |
| Queens  | C    |
`
	records, err := (&MarkdownReader{}).ReadRecords(strings.NewReader(input), "parks.md")
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if got := records[1].Get("Borough"); got != "Queens" {
		t.Errorf("record 1 Borough = %q", got)
	}
}

func TestMarkdownReader_NoTable(t *testing.T) {
	_, err := (&MarkdownReader{}).ReadRecords(strings.NewReader("just prose\n"), "x.md")
	if !errors.Is(err, ErrNoHeader) {
		t.Errorf("error = %v, want ErrNoHeader", err)
	}
}

func TestHTMLReader_Table(t *testing.T) {
	input := `<html><body>
<h1>Parks</h1>
<table>
  <tr><th>Borough</th><th>Park</th></tr>
  <tr><td>Bronx</td><td>A</td></tr>
  <tr><td>Queens</td><td>C</td></tr>
</table>
</body></html>`
	records, err := (&HTMLReader{}).ReadRecords(strings.NewReader(input), "parks.html")
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if got := records[0].Get("Park"); got != "A" {
		t.Errorf("record 0 Park = %q", got)
	}
}

func TestHTMLReader_NoTable(t *testing.T) {
	_, err := (&HTMLReader{}).ReadRecords(strings.NewReader("<p>no table</p>"), "x.html")
	if !errors.Is(err, ErrNoHeader) {
		t.Errorf("error = %v, want ErrNoHeader", err)
	}
}

func TestForFile(t *testing.T) {
	for _, name := range []string{"a.csv", "a.tsv", "a.md", "a.html", "a.pdf"} {
		if _, err := ForFile(name); err != nil {
			t.Errorf("ForFile(%q): %v", name, err)
		}
	}
	if _, err := ForFile("a.xlsx"); err == nil {
		t.Error("ForFile(a.xlsx): expected error")
	}
}
