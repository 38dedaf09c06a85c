package chunker

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/pdfrag/internal/doctree"
)

// EstimateTokens gives a rough token count of half the character count.
// It is language-agnostic and not a tokenizer; treat it as a hint.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text) / 2
	if n < 1 {
		return 1
	}
	return n
}

// MakeID derives a 12-hex-character chunk ID from the chunk's structural
// position. 48 bits keeps IDs readable; collisions become plausible only
// across very large corpora. Section chunks key on the section's index, so a
// preamble section shifts the IDs of every section after it.
func MakeID(source string, key any, index int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s_%v_%d", source, key, index)))
	return hex.EncodeToString(sum[:])[:12]
}

// TableToMarkdown serializes a table as a pipe table. Tables without headers
// serialize to the empty string.
func TableToMarkdown(table doctree.TableData) string {
	if len(table.Headers) == 0 {
		return ""
	}
	lines := make([]string, 0, len(table.Rows)+2)
	lines = append(lines, markdownRow(table.Headers))

	sep := make([]string, len(table.Headers))
	for i := range sep {
		sep[i] = "---"
	}
	lines = append(lines, markdownRow(sep))

	for _, row := range table.Rows {
		lines = append(lines, markdownRow(row))
	}
	return strings.Join(lines, "\n")
}

func markdownRow(cells []string) string {
	return "| " + strings.Join(cells, " | ") + " |"
}
