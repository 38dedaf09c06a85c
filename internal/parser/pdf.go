package parser

import (
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strings"
	"unicode"
	"unicode/utf8"

	pdflib "github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"

	"github.com/dgallion1/pdfrag/internal/chunker"
	"github.com/dgallion1/pdfrag/internal/doctree"
)

// Layout thresholds, relative to the font size of the glyphs involved.
const (
	rowTolerance = 0.4 // Max baseline drift for glyphs on one row.
	wordGap      = 0.2 // Horizontal gap that implies a missing space.
	paragraphGap = 1.8 // Vertical gap between rows that starts a paragraph.
	cellGap      = 1.0 // Horizontal gap that separates table cells.
)

// PDFParser handles PDF files. It tries the Go library first, then falls
// back to pdftotext if enabled and available.
type PDFParser struct {
	opts Options
}

// NewPDFParser returns a PDF parser with the given options.
func NewPDFParser(opts Options) *PDFParser {
	return &PDFParser{opts: opts}
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "pdfrag-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	doc := newDocument(filename)
	title, pages, err := p.extractPages(tmpPath)
	if err != nil && p.opts.FallbackPdftotext {
		pages, err = extractPdftotext(tmpPath)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}
	if title != "" {
		doc.Title = title
	}

	for i := range pages {
		applyMarkdownFallback(&pages[i], p.opts.MarkdownMinRatio)
	}
	doc.Pages = pages
	return doc, nil
}

func (p *PDFParser) extractPages(path string) (title string, pages []doctree.PageResult, err error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	// The library panics on some malformed objects.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()

	title = strings.TrimSpace(norm.NFC.String(reader.Trailer().Key("Info").Key("Title").Text()))

	total := reader.NumPage()
	pages = make([]doctree.PageResult, 0, total)
	for i := 1; i <= total; i++ {
		pages = append(pages, extractPage(reader.Page(i), i))
		if p.opts.OnPage != nil {
			p.opts.OnPage(i, total)
		}
	}
	return title, pages, nil
}

func extractPage(page pdflib.Page, n int) doctree.PageResult {
	result := doctree.PageResult{PageNumber: n}
	if page.V.IsNull() {
		return result
	}

	rows := groupRows(page.Content().Text)
	tables := detectTables(rows, n)
	for _, tr := range tables {
		result.Tables = append(result.Tables, tr.table)
	}
	result.Markdown, result.Elements = layoutRows(rows, n, tables)
	for _, row := range rows {
		for _, sp := range row.spans {
			text := strings.TrimSpace(norm.NFC.String(sp.text.String()))
			if text == "" {
				continue
			}
			result.Spans = append(result.Spans, doctree.Span{Text: text, FontSize: sp.size, Page: n})
		}
	}

	if raw, err := page.GetPlainText(nil); err == nil {
		result.RawText = norm.NFC.String(raw)
	} else {
		result.RawText = result.Markdown
	}

	result.Images = extractImages(page, n)
	for _, img := range result.Images {
		result.Elements = append(result.Elements, doctree.PageElement{Type: doctree.ElementImage, Content: img.Filename, Page: n, BBox: img.BBox})
	}
	return result
}

type glyphSpan struct {
	text strings.Builder
	size float64
}

// rowFragment is a run of glyphs on one row with no cell-sized gap inside.
type rowFragment struct {
	text   strings.Builder
	x0, x1 float64
}

type glyphRow struct {
	y      float64
	size   float64 // Largest font size on the row.
	x0, x1 float64
	line   strings.Builder
	spans  []*glyphSpan
	frags  []*rowFragment
}

// groupRows assembles glyphs into rows by baseline, splitting each row into
// spans wherever the font size changes and into fragments at cell-sized gaps.
func groupRows(texts []pdflib.Text) []*glyphRow {
	var rows []*glyphRow
	var row *glyphRow
	var lastEnd float64

	for _, t := range texts {
		if t.S == "" {
			continue
		}
		size := t.FontSize
		if size <= 0 {
			size = bodyFontSize
		}

		if row == nil || math.Abs(t.Y-row.y) > rowTolerance*math.Max(size, row.size) {
			row = &glyphRow{y: t.Y, x0: t.X, x1: t.X + t.W}
			rows = append(rows, row)
			lastEnd = t.X
		}

		gap := t.X - lastEnd
		needSpace := row.line.Len() > 0 && gap > wordGap*size &&
			!endsWithSpace(row.line.String()) && !startsWithSpace(t.S)
		if needSpace {
			row.line.WriteByte(' ')
		}

		var sp *glyphSpan
		if n := len(row.spans); n > 0 && sameSize(row.spans[n-1].size, size) {
			sp = row.spans[n-1]
			if needSpace {
				sp.text.WriteByte(' ')
			}
		} else {
			sp = &glyphSpan{size: size}
			row.spans = append(row.spans, sp)
		}
		sp.text.WriteString(t.S)
		row.line.WriteString(t.S)

		var fr *rowFragment
		if n := len(row.frags); n > 0 && gap <= cellGap*size {
			fr = row.frags[n-1]
			if needSpace {
				fr.text.WriteByte(' ')
			}
			fr.x1 = math.Max(fr.x1, t.X+t.W)
		} else {
			fr = &rowFragment{x0: t.X, x1: t.X + t.W}
			row.frags = append(row.frags, fr)
		}
		fr.text.WriteString(t.S)

		row.size = math.Max(row.size, size)
		row.x0 = math.Min(row.x0, t.X)
		row.x1 = math.Max(row.x1, t.X+t.W)
		lastEnd = t.X + t.W
	}
	return rows
}

// layoutRows renders rows as markdown, separating paragraphs with a blank
// line on large vertical gaps or font size changes. Rows claimed by a table
// are replaced by the table's markdown. A paragraph set larger than the
// page's body size is a wrapped heading and its rows share one line, so the
// heading reads the same as its merged spans. Each paragraph also becomes a
// text or heading element.
func layoutRows(rows []*glyphRow, page int, tables []tableRun) (string, []doctree.PageElement) {
	body := rowBodySize(rows)
	var paras []string
	var elements []doctree.PageElement
	var para []string
	var paraSize float64
	var box doctree.BBox

	flush := func() {
		if len(para) == 0 {
			return
		}
		sep, typ := "\n", doctree.ElementText
		if math.Round(paraSize*10) > math.Round(body*10) {
			sep, typ = " ", doctree.ElementHeading
		}
		content := strings.Join(para, sep)
		paras = append(paras, content)
		b := box
		elements = append(elements, doctree.PageElement{Type: typ, Content: content, Page: page, BBox: &b})
		para = nil
	}

	var prev *glyphRow
	for i := 0; i < len(rows); i++ {
		if len(tables) > 0 && tables[0].first == i {
			flush()
			tr := tables[0]
			tables = tables[1:]
			md := chunker.TableToMarkdown(tr.table)
			paras = append(paras, md)
			elements = append(elements, doctree.PageElement{Type: doctree.ElementTable, Content: md, Page: page, BBox: tr.table.BBox})
			i = tr.last
			prev = nil
			continue
		}
		row := rows[i]
		line := strings.TrimSpace(norm.NFC.String(row.line.String()))
		if line == "" {
			continue
		}
		if prev != nil {
			drift := math.Abs(prev.y - row.y)
			if drift > paragraphGap*math.Max(prev.size, row.size) || !sameSize(prev.size, row.size) {
				flush()
			}
		}
		if len(para) == 0 {
			paraSize = row.size
			box = doctree.BBox{row.x0, row.y, row.x1, row.y + row.size}
		} else {
			box[0] = math.Min(box[0], row.x0)
			box[1] = math.Min(box[1], row.y)
			box[2] = math.Max(box[2], row.x1)
			box[3] = math.Max(box[3], row.y+row.size)
		}
		para = append(para, line)
		prev = row
	}
	flush()
	return strings.Join(paras, "\n\n"), elements
}

// rowBodySize returns the row font size carrying the most characters. Ties
// go to the size seen first.
func rowBodySize(rows []*glyphRow) float64 {
	chars := map[float64]int{}
	var order []float64
	for _, row := range rows {
		size := math.Round(row.size*10) / 10
		if _, seen := chars[size]; !seen {
			order = append(order, size)
		}
		chars[size] += utf8.RuneCountInString(strings.TrimSpace(row.line.String()))
	}
	var body float64
	best := -1
	for _, size := range order {
		if chars[size] > best {
			best, body = chars[size], size
		}
	}
	return body
}

func sameSize(a, b float64) bool {
	return math.Round(a*10) == math.Round(b*10)
}

func endsWithSpace(s string) bool {
	return s != "" && unicode.IsSpace(rune(s[len(s)-1]))
}

func startsWithSpace(s string) bool {
	return s != "" && unicode.IsSpace(rune(s[0]))
}

func extractPdftotext(path string) ([]doctree.PageResult, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	return splitFormFeedPages(norm.NFC.String(string(out))), nil
}

// splitFormFeedPages turns form-feed separated text into pages without
// spans. A trailing form feed does not start an extra page.
func splitFormFeedPages(text string) []doctree.PageResult {
	parts := strings.Split(text, "\f")
	if len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	pages := make([]doctree.PageResult, 0, len(parts))
	for i, part := range parts {
		pages = append(pages, doctree.PageResult{
			PageNumber: i + 1,
			Markdown:   fallbackMarkdown(part, nil),
			RawText:    part,
		})
	}
	return pages
}
