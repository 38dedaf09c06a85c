package parser

import (
	"bytes"
	"io"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/pdfrag/internal/doctree"
)

var (
	thematicBreakLine = regexp.MustCompile(`^ {0,3}(?:(?:-[ \t]*){3,}|(?:\*[ \t]*){3,}|(?:_[ \t]*){3,})$`)
	setextUnderline   = regexp.MustCompile(`^ {0,3}(?:=+|-+)[ \t]*$`)
)

// MarkdownParser handles Markdown files using goldmark. Thematic breaks
// separate pages, which is how exported documents are written. Headings
// become spans sized by level so structure detection can use them.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	root := md.Parser().Parse(text.NewReader(src))

	// Group top-level blocks into pages and find the source line of each break.
	var groups [][]ast.Node
	var cuts [][2]int
	var current []ast.Node
	prevEnd := 0
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if _, ok := n.(*ast.ThematicBreak); ok {
			nextStart := len(src)
			for m := n.NextSibling(); m != nil; m = m.NextSibling() {
				if _, brk := m.(*ast.ThematicBreak); brk {
					continue
				}
				if s, _, ok := blockRange(m, src); ok {
					nextStart = s
					break
				}
			}
			cut := findBreakLine(src, prevEnd, nextStart)
			cuts = append(cuts, cut)
			groups = append(groups, current)
			current = nil
			prevEnd = cut[1]
			continue
		}
		current = append(current, n)
		if _, e, ok := blockRange(n, src); ok && e > prevEnd {
			prevEnd = e
		}
	}
	groups = append(groups, current)

	doc := newDocument(filename)
	start := 0
	for i, group := range groups {
		end := len(src)
		if i < len(cuts) {
			end = cuts[i][0]
		}
		pageText := strings.TrimSpace(string(src[start:end]))
		if i < len(cuts) {
			start = cuts[i][1]
		}

		page := doctree.PageResult{PageNumber: i + 1, Markdown: pageText, RawText: pageText}
		for _, n := range group {
			collectMarkdownBlock(n, src, &page)
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc, nil
}

func collectMarkdownBlock(n ast.Node, src []byte, page *doctree.PageResult) {
	addSpan := func(t string, size float64) {
		if t == "" {
			return
		}
		page.Spans = append(page.Spans, doctree.Span{Text: t, FontSize: size, Page: page.PageNumber})
	}

	switch node := n.(type) {
	case *ast.Heading:
		addSpan(headingTitle(node, src), headingFontSize(node.Level))
	case *east.Table:
		table := markdownTable(node, src, page.PageNumber)
		page.Tables = append(page.Tables, table)
		for _, row := range table.Rows {
			addSpan(strings.Join(row, " "), bodyFontSize)
		}
	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
		addSpan(linesText(node, src), bodyFontSize)
	case *ast.Paragraph, *ast.TextBlock:
		addSpan(inlineText(node, src), bodyFontSize)
	default:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			collectMarkdownBlock(c, src, page)
		}
	}
}

// headingTitle returns the first source line of a heading, markup included,
// so the title can be found verbatim in the page markdown.
func headingTitle(h *ast.Heading, src []byte) string {
	lines := h.Lines()
	if lines.Len() == 0 {
		return ""
	}
	seg := lines.At(0)
	return strings.TrimSpace(string(seg.Value(src)))
}

func markdownTable(t *east.Table, src []byte, page int) doctree.TableData {
	table := doctree.TableData{Page: page}
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, inlineText(cell, src))
		}
		if _, ok := row.(*east.TableHeader); ok {
			table.Headers = cells
			continue
		}
		table.Rows = append(table.Rows, cells)
	}
	return table
}

func linesText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return strings.TrimSpace(buf.String())
}

// inlineText flattens the inline text under n, collapsing whitespace.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(buf.String()), " ")
}

// blockRange returns the source byte range covered by a top-level block.
// Setext headings are extended over their underline.
func blockRange(n ast.Node, src []byte) (start, stop int, ok bool) {
	start, stop = len(src), 0
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if c.Type() == ast.TypeBlock {
			lines := c.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				start, stop, ok = min(start, seg.Start), max(stop, seg.Stop), true
			}
		} else if t, isText := c.(*ast.Text); isText {
			start, stop, ok = min(start, t.Segment.Start), max(stop, t.Segment.Stop), true
		}
		return ast.WalkContinue, nil
	})
	if !ok {
		return 0, 0, false
	}

	if _, isHeading := n.(*ast.Heading); isHeading {
		ls := bytes.LastIndexByte(src[:start], '\n') + 1
		if !strings.HasPrefix(strings.TrimLeft(string(src[ls:start]), " "), "#") {
			next, nextEnd := lineAfter(src, stop)
			if next < len(src) && setextUnderline.Match(bytes.TrimRight(src[next:nextEnd], "\r\n")) {
				stop = nextEnd
			}
		}
	}
	return start, stop, true
}

// lineAfter returns the bounds of the line following the one containing pos.
// The end includes the newline.
func lineAfter(src []byte, pos int) (int, int) {
	i := bytes.IndexByte(src[pos:], '\n')
	if i < 0 {
		return len(src), len(src)
	}
	next := pos + i + 1
	j := bytes.IndexByte(src[next:], '\n')
	if j < 0 {
		return next, len(src)
	}
	return next, next + j + 1
}

// findBreakLine locates the first thematic break line in src[from:to] and
// returns its bounds, newline included.
func findBreakLine(src []byte, from, to int) [2]int {
	if to > len(src) {
		to = len(src)
	}
	pos := from
	for pos < to {
		end := bytes.IndexByte(src[pos:to], '\n')
		lineEnd := to
		if end >= 0 {
			lineEnd = pos + end + 1
		}
		if thematicBreakLine.Match(bytes.TrimRight(src[pos:lineEnd], "\r\n")) {
			return [2]int{pos, lineEnd}
		}
		pos = lineEnd
	}
	return [2]int{from, from}
}
