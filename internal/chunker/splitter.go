package chunker

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators are tried in order, from paragraph breaks down to a raw
// character split. The CJK entries let Korean, Chinese and Japanese text
// segment even without Latin-style spacing.
var DefaultSeparators = []string{
	"\n\n",
	"\n",
	" ",
	".",
	",",
	"\u200b", // zero-width space
	"\uff0c", // fullwidth comma
	"\u3001", // ideographic comma
	"\uff0e", // fullwidth full stop
	"\u3002", // ideographic full stop
	"",
}

// SplitWithFallbackSeparators breaks text into pieces of at most size
// characters. It splits on the first separator present in the text, merges
// the resulting pieces back into windows no larger than size, and recurses
// with the remaining separators into any piece that is still too large.
// Consecutive windows share up to overlap characters of trailing context.
//
// Separators stay attached to the start of the piece that follows them, and
// every returned piece is whitespace-trimmed and non-empty. Lengths are
// counted in runes.
func SplitWithFallbackSeparators(text string, size, overlap int, separators []string) []string {
	if size <= 0 {
		size = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	if len(separators) == 0 {
		separators = []string{""}
	}
	s := splitter{size: size, overlap: overlap}
	return s.split(text, separators)
}

type splitter struct {
	size    int
	overlap int
}

func (s splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var remaining []string
	for i, sep := range separators {
		if sep == "" {
			separator = ""
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			remaining = separators[i+1:]
			break
		}
	}

	var out []string
	var fitting []string
	for _, piece := range splitKeepSeparator(text, separator) {
		if utf8.RuneCountInString(piece) < s.size {
			fitting = append(fitting, piece)
			continue
		}
		if len(fitting) > 0 {
			out = append(out, s.merge(fitting)...)
			fitting = nil
		}
		if len(remaining) == 0 {
			// Nothing left to split on; keep the piece whole.
			if p := strings.TrimSpace(piece); p != "" {
				out = append(out, p)
			}
			continue
		}
		out = append(out, s.split(piece, remaining)...)
	}
	if len(fitting) > 0 {
		out = append(out, s.merge(fitting)...)
	}
	return out
}

// merge packs small pieces into windows of at most s.size characters. When a
// window is emitted, pieces are dropped from its front until what remains is
// no longer than s.overlap; the remainder seeds the next window.
func (s splitter) merge(pieces []string) []string {
	var out []string
	var window []string
	var lengths []int
	total := 0

	emit := func() {
		if doc := strings.TrimSpace(strings.Join(window, "")); doc != "" {
			out = append(out, doc)
		}
	}

	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if total+n > s.size && len(window) > 0 {
			emit()
			for len(window) > 0 && (total > s.overlap || total+n > s.size) {
				total -= lengths[0]
				window = window[1:]
				lengths = lengths[1:]
			}
		}
		window = append(window, p)
		lengths = append(lengths, n)
		total += n
	}
	if len(window) > 0 {
		emit()
	}
	return out
}

// splitKeepSeparator splits text on sep, prefixing each piece after the
// first with the separator. An empty separator splits into runes.
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, p := range parts[1:] {
		out = append(out, sep+p)
	}
	return out
}
