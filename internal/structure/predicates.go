package structure

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxFallbackTitle = 80
	minTitleRunes    = 2
)

// roundSize rounds a font size to one decimal so that sizes differing only
// by float noise land in the same bucket.
func roundSize(size float64) float64 {
	return math.Round(size*10) / 10
}

// isNumeric reports whether s is non-empty and made only of digits. Page and
// figure numbers set in a large font match this.
func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// isImageEmbed reports whether a markdown line is an image reference.
func isImageEmbed(line string) bool {
	return strings.HasPrefix(line, "![")
}

// fallbackTitle picks the first meaningful line of text as a title, or
// "Page {n}" when there is none.
func fallbackTitle(text string, page int) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isImageEmbed(line) || utf8.RuneCountInString(line) <= minTitleRunes {
			continue
		}
		return truncateRunes(line, maxFallbackTitle)
	}
	return fmt.Sprintf("Page %d", page)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// headingLineStart moves idx back to the start of its line when only ATX
// heading markers ("#", "##", ...) precede it there. The line start must
// lie after floor.
func headingLineStart(full string, idx, floor int) int {
	ls := strings.LastIndexByte(full[:idx], '\n') + 1
	if ls <= floor {
		return idx
	}
	prefix := strings.TrimSpace(full[ls:idx])
	if prefix == "" || strings.Trim(prefix, "#") != "" {
		return idx
	}
	return ls
}
