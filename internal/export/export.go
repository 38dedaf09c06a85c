// Package export renders processed documents for files and HTTP responses.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"github.com/dgallion1/pdfrag/internal/doctree"
)

// PageSeparator joins pages in exported markdown. The markdown parser reads
// it back as a page break.
const PageSeparator = "\n\n---\n\n"

// WriteJSON writes v as indented JSON without HTML escaping.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// WriteYAML writes v as YAML with two-space indentation.
func WriteYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close yaml: %w", err)
	}
	return nil
}

// OutlineMarkdown renders sections as an indented list, one line each:
//
//	- [L1] Introduction (p.1)
//	  - [L2] Scope (p.2-4)
func OutlineMarkdown(sections []doctree.Section) string {
	var sb strings.Builder
	for _, s := range sections {
		indent := 0
		if s.Level > 1 {
			indent = s.Level - 1
		}
		sb.WriteString(strings.Repeat("  ", indent))
		fmt.Fprintf(&sb, "- [L%d] %s (%s)\n", s.Level, s.Title, pageRange(s.StartPage, s.EndPage))
	}
	return sb.String()
}

func pageRange(start, end int) string {
	if end <= start {
		return fmt.Sprintf("p.%d", start)
	}
	return fmt.Sprintf("p.%d-%d", start, end)
}

// DocumentMarkdown joins the pages' markdown with PageSeparator.
func DocumentMarkdown(pages []doctree.PageResult) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		parts = append(parts, p.Markdown)
	}
	return strings.Join(parts, PageSeparator)
}

var previewMarkdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderHTML converts markdown to an HTML fragment, tables included.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := previewMarkdown.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// PreviewPage wraps a rendered fragment in a minimal standalone page.
func PreviewPage(title, body string) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	sb.WriteString(html.EscapeString(title))
	sb.WriteString("</title></head><body>\n")
	sb.WriteString(body)
	sb.WriteString("</body></html>\n")
	return sb.String()
}
