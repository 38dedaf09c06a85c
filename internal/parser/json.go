package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dgallion1/pdfrag/internal/doctree"
)

// JSONParser reads pages already extracted by another tool. The input is
// either an array of pages or a document object with a "pages" array.
type JSONParser struct {
	opts Options
}

func (p *JSONParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc := newDocument(filename)
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		return doc, nil
	case trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &doc.Pages); err != nil {
			return nil, fmt.Errorf("parse json pages: %w", err)
		}
	default:
		var in doctree.Document
		if err := json.Unmarshal(trimmed, &in); err != nil {
			return nil, fmt.Errorf("parse json document: %w", err)
		}
		doc.Pages = in.Pages
		if in.Title != "" {
			doc.Title = in.Title
		}
		if in.Source != "" {
			doc.Source = in.Source
		}
	}

	for i := range doc.Pages {
		pg := &doc.Pages[i]
		if pg.PageNumber == 0 {
			pg.PageNumber = i + 1
		}
		applyMarkdownFallback(pg, p.opts.MarkdownMinRatio)
	}
	return doc, nil
}
