package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/pdfrag/internal/doctree"
)

// Parser converts raw document bytes into per-page extraction results.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Document, error)
}

// Options tune the parsers that support them.
type Options struct {
	// FallbackPdftotext retries with the pdftotext binary when the Go PDF
	// reader fails.
	FallbackPdftotext bool
	// MarkdownMinRatio rebuilds a page's markdown from raw text when the
	// markdown is shorter than this fraction of it. Zero disables the check.
	MarkdownMinRatio float64
	// OnPage, if set, is called after each page is extracted.
	OnPage func(page, total int)
}

// DefaultOptions returns the options used by the service and CLI.
func DefaultOptions() Options {
	return Options{FallbackPdftotext: true, MarkdownMinRatio: 0.3}
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".pdf":      true,
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".docx":     true,
	".json":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return &PDFParser{opts: opts}, nil
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	case ".json":
		return &JSONParser{opts: opts}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Stem returns the base filename without its extension. It names the
// document source used in chunk IDs.
func Stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func newDocument(filename string) *doctree.Document {
	stem := Stem(filename)
	return &doctree.Document{Title: stem, Source: stem}
}
