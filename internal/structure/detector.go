// Package structure infers a document's heading hierarchy from font sizes
// and cuts the page text into sections.
package structure

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/pdfrag/internal/doctree"
)

// ErrInvalidConfig is returned by New for unusable settings.
var ErrInvalidConfig = errors.New("invalid structure config")

const (
	defaultHeadingLevels = 2
	// Fragments keep merging into a wrapped heading while it is shorter than this.
	mergeTitleLimit = 50
)

// Config controls heading detection.
type Config struct {
	// MaxHeadingLevels caps how many distinct font sizes above the body size
	// become section boundaries. Zero means 2.
	MaxHeadingLevels int
	// DropPreamble discards text that precedes the first heading instead of
	// emitting it as a leading section.
	DropPreamble bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxHeadingLevels: defaultHeadingLevels}
}

// Detector turns per-page extraction results into sections. It holds no
// state between calls and is safe for concurrent use.
type Detector struct {
	cfg Config
}

// New validates cfg and returns a Detector.
func New(cfg Config) (*Detector, error) {
	if cfg.MaxHeadingLevels < 0 {
		return nil, fmt.Errorf("%w: max heading levels must not be negative, got %d", ErrInvalidConfig, cfg.MaxHeadingLevels)
	}
	if cfg.MaxHeadingLevels == 0 {
		cfg.MaxHeadingLevels = defaultHeadingLevels
	}
	return &Detector{cfg: cfg}, nil
}

// Config returns the detector's settings.
func (d *Detector) Config() Config {
	return d.cfg
}

// Typography summarizes the font sizes found in a document.
type Typography struct {
	BodySize     float64         `json:"body_size"`
	HeadingSizes []float64       `json:"heading_sizes"` // Descending; index+1 is the level.
	CharsBySize  map[float64]int `json:"-"`
}

// Level returns the heading level for a rounded size, or 0 if the size is
// not a heading size.
func (t Typography) Level(size float64) int {
	for i, s := range t.HeadingSizes {
		if s == size {
			return i + 1
		}
	}
	return 0
}

type pageRange struct {
	start, end int // Byte offsets into the buffer, half-open.
	page       int
}

type candidate struct {
	title string
	page  int
	size  float64
}

type heading struct {
	title  string
	level  int
	page   int
	offset int
}

// Analyze buckets the document's spans by rounded font size and picks the
// body and heading sizes. Pages with blank markdown are ignored.
func (d *Detector) Analyze(pages []doctree.PageResult) Typography {
	t := Typography{CharsBySize: map[float64]int{}}
	var order []float64

	for _, p := range pages {
		if strings.TrimSpace(p.Markdown) == "" {
			continue
		}
		for _, sp := range p.Spans {
			text := strings.TrimSpace(sp.Text)
			n := utf8.RuneCountInString(text)
			if n < minTitleRunes {
				continue
			}
			size := roundSize(sp.FontSize)
			if _, seen := t.CharsBySize[size]; !seen {
				order = append(order, size)
			}
			t.CharsBySize[size] += n
		}
	}
	if len(order) == 0 {
		return t
	}

	// Ties go to the size seen first in reading order.
	best := -1
	for _, size := range order {
		if t.CharsBySize[size] > best {
			best = t.CharsBySize[size]
			t.BodySize = size
		}
	}

	for _, size := range order {
		if size > t.BodySize {
			t.HeadingSizes = append(t.HeadingSizes, size)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(t.HeadingSizes)))
	if len(t.HeadingSizes) > d.cfg.MaxHeadingLevels {
		t.HeadingSizes = t.HeadingSizes[:d.cfg.MaxHeadingLevels]
	}
	return t
}

// Parse returns the document's sections in reading order. When no heading
// can be inferred it returns one section per non-blank page instead. An
// empty page list yields no sections.
func (d *Detector) Parse(pages []doctree.PageResult) []doctree.Section {
	if len(pages) == 0 {
		return nil
	}

	var buf strings.Builder
	ranges := make([]pageRange, 0, len(pages))
	for _, p := range pages {
		start := buf.Len()
		buf.WriteString(p.Markdown)
		buf.WriteString("\n\n")
		ranges = append(ranges, pageRange{start: start, end: buf.Len(), page: p.PageNumber})
	}
	full := buf.String()

	typo := d.Analyze(pages)
	if len(typo.HeadingSizes) == 0 {
		return fallbackSections(pages)
	}

	headings := resolveOffsets(full, ranges, mergeCandidates(collectCandidates(pages, typo)), typo)
	if len(headings) == 0 {
		return fallbackSections(pages)
	}

	var sections []doctree.Section
	if !d.cfg.DropPreamble {
		if sec, ok := preamble(full, ranges, headings[0].offset); ok {
			sections = append(sections, sec)
		}
	}
	for i, h := range headings {
		end := len(full)
		if i+1 < len(headings) {
			end = headings[i+1].offset
		}
		sections = append(sections, doctree.Section{
			Title:     h.title,
			Level:     h.level,
			Content:   strings.TrimSpace(full[h.offset:end]),
			StartPage: h.page,
			EndPage:   pageAt(ranges, end-1),
		})
	}
	return sections
}

func collectCandidates(pages []doctree.PageResult, typo Typography) []candidate {
	var out []candidate
	for _, p := range pages {
		if strings.TrimSpace(p.Markdown) == "" {
			continue
		}
		for _, sp := range p.Spans {
			text := strings.TrimSpace(sp.Text)
			if utf8.RuneCountInString(text) < minTitleRunes || isNumeric(text) {
				continue
			}
			size := roundSize(sp.FontSize)
			if typo.Level(size) == 0 {
				continue
			}
			out = append(out, candidate{title: text, page: p.PageNumber, size: size})
		}
	}
	return out
}

// mergeCandidates joins consecutive fragments of a heading that wrapped
// across lines or spans.
func mergeCandidates(cands []candidate) []candidate {
	var out []candidate
	for _, c := range cands {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.page == c.page && last.size == c.size && utf8.RuneCountInString(last.title) < mergeTitleLimit {
				last.title += " " + c.title
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// resolveOffsets locates each heading title in the buffer. Titles that cannot
// be found are dropped; the returned offsets strictly increase. A leading
// markdown heading marker belongs to the heading it introduces.
func resolveOffsets(full string, ranges []pageRange, cands []candidate, typo Typography) []heading {
	var out []heading
	cursor := 0
	prev := -1

	for _, c := range cands {
		pr := pageRange{start: 0, end: len(full), page: c.page}
		for _, r := range ranges {
			if r.page == c.page {
				pr = r
				break
			}
		}

		idx := indexFrom(full, c.title, max(cursor, pr.start))
		if idx < 0 {
			idx = indexFrom(full, c.title, pr.start)
			if idx >= pr.end || idx <= prev {
				idx = -1
			}
		}
		if idx < 0 {
			continue
		}

		cursor = idx + len(c.title)
		idx = headingLineStart(full, idx, prev)
		out = append(out, heading{title: c.title, level: typo.Level(c.size), page: c.page, offset: idx})
		prev = idx
	}
	return out
}

func indexFrom(s, sub string, from int) int {
	if from > len(s) {
		return -1
	}
	i := strings.Index(s[from:], sub)
	if i < 0 {
		return -1
	}
	return from + i
}

// pageAt maps a buffer offset to its page number, defaulting to the last page.
func pageAt(ranges []pageRange, offset int) int {
	for _, r := range ranges {
		if offset >= r.start && offset < r.end {
			return r.page
		}
	}
	if len(ranges) == 0 {
		return 1
	}
	return ranges[len(ranges)-1].page
}

// preamble wraps the text ahead of the first heading as a level-1 section.
func preamble(full string, ranges []pageRange, end int) (doctree.Section, bool) {
	head := full[:end]
	text := strings.TrimSpace(head)
	if text == "" {
		return doctree.Section{}, false
	}
	first := len(head) - len(strings.TrimLeftFunc(head, unicode.IsSpace))
	startPage := pageAt(ranges, first)
	return doctree.Section{
		Title:     fallbackTitle(text, startPage),
		Level:     1,
		Content:   text,
		StartPage: startPage,
		EndPage:   pageAt(ranges, end-1),
	}, true
}

func fallbackSections(pages []doctree.PageResult) []doctree.Section {
	var out []doctree.Section
	for _, p := range pages {
		text := strings.TrimSpace(p.Markdown)
		if text == "" {
			continue
		}
		out = append(out, doctree.Section{
			Title:     fallbackTitle(text, p.PageNumber),
			Level:     1,
			Content:   text,
			StartPage: p.PageNumber,
			EndPage:   p.PageNumber,
		})
	}
	return out
}
