package parser

import (
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/pdfrag/internal/chunker"
	"github.com/dgallion1/pdfrag/internal/doctree"
)

// Synthetic span sizes for formats that carry explicit heading levels. Body
// text is smaller than every heading, and h1 is the largest.
const bodyFontSize = 10.0

func headingFontSize(level int) float64 {
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	return bodyFontSize + 2*float64(7-level)
}

// markdownTooThin reports whether markdown lost too much of the raw text.
func markdownTooThin(markdown, raw string, ratio float64) bool {
	if ratio <= 0 {
		return false
	}
	rawLen := utf8.RuneCountInString(strings.TrimSpace(raw))
	if rawLen == 0 {
		return false
	}
	return float64(utf8.RuneCountInString(strings.TrimSpace(markdown))) < float64(rawLen)*ratio
}

// fallbackMarkdown rebuilds page markdown from raw text lines, collapsing
// runs of blank lines, followed by the page's tables.
func fallbackMarkdown(raw string, tables []doctree.TableData) string {
	var cleaned []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if len(cleaned) > 0 && cleaned[len(cleaned)-1] != "" {
				cleaned = append(cleaned, "")
			}
			continue
		}
		cleaned = append(cleaned, line)
	}

	parts := []string{strings.Join(cleaned, "\n")}
	for _, t := range tables {
		if len(t.Headers) == 0 {
			continue
		}
		parts = append(parts, "\n\n"+chunker.TableToMarkdown(t))
	}
	return strings.Join(parts, "\n")
}

// applyMarkdownFallback swaps in fallback markdown for pages whose markdown
// is too thin compared to their raw text.
func applyMarkdownFallback(page *doctree.PageResult, ratio float64) bool {
	if !markdownTooThin(page.Markdown, page.RawText, ratio) {
		return false
	}
	page.Markdown = fallbackMarkdown(page.RawText, page.Tables)
	return true
}
