package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/pdfrag/internal/chunker"
	"github.com/dgallion1/pdfrag/internal/doctree"
)

// CSVParser handles CSV files. The file becomes one page holding one table;
// the first record is the header row.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	doc := newDocument(filename)
	if len(records) == 0 {
		return doc, nil
	}

	table := doctree.TableData{Headers: records[0], Rows: records[1:], Page: 1}
	var raw strings.Builder
	for _, rec := range records {
		raw.WriteString(strings.Join(rec, ", "))
		raw.WriteByte('\n')
	}

	doc.Pages = []doctree.PageResult{{
		PageNumber: 1,
		Markdown:   chunker.TableToMarkdown(table),
		RawText:    raw.String(),
		Tables:     []doctree.TableData{table},
	}}
	return doc, nil
}
