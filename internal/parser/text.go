package parser

import (
	"io"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/dgallion1/pdfrag/internal/doctree"
)

// TextParser handles plain text files. Form feeds separate pages, as in
// pdftotext output. Plain text has no font information, so structure
// detection falls back to one section per page.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc := newDocument(filename)
	text := norm.NFC.String(strings.ReplaceAll(string(data), "\r\n", "\n"))
	if strings.TrimSpace(text) == "" {
		return doc, nil
	}
	doc.Pages = splitFormFeedPages(text)
	return doc, nil
}
