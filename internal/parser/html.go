package parser

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/dgallion1/pdfrag/internal/chunker"
	"github.com/dgallion1/pdfrag/internal/doctree"
)

// HTMLParser handles HTML files. The document becomes a single page whose
// markdown is rebuilt from headings, text blocks and tables.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	doc := newDocument(filename)
	if title := findTitle(root); title != "" {
		doc.Title = title
	}

	page := doctree.PageResult{PageNumber: 1}
	var blocks []string
	addBlock := func(md, spanText string, size float64) {
		blocks = append(blocks, md)
		if spanText != "" {
			page.Spans = append(page.Spans, doctree.Span{Text: spanText, FontSize: size, Page: 1})
		}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				if title := textContent(n); title != "" {
					addBlock(strings.Repeat("#", level)+" "+title, title, headingFontSize(level))
				}
				return
			}

			switch n.Data {
			case "script", "style", "nav", "footer", "header", "noscript":
				return
			case "table":
				table := htmlTable(n)
				if len(table.Headers) == 0 {
					return
				}
				page.Tables = append(page.Tables, table)
				addBlock(chunker.TableToMarkdown(table), "", 0)
				for _, row := range table.Rows {
					page.Spans = append(page.Spans, doctree.Span{Text: strings.Join(row, " "), FontSize: bodyFontSize, Page: 1})
				}
				return
			case "pre":
				if t := rawTextContent(n); strings.TrimSpace(t) != "" {
					addBlock("```\n"+strings.Trim(t, "\n")+"\n```", strings.TrimSpace(t), bodyFontSize)
				}
				return
			case "p", "li", "blockquote", "dd", "dt", "figcaption":
				if t := textContent(n); t != "" {
					md := t
					switch n.Data {
					case "li":
						md = "- " + t
					case "blockquote":
						md = "> " + t
					}
					addBlock(md, t, bodyFontSize)
				}
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	// Find <body> or use whole document.
	if body := findBody(root); body != nil {
		walk(body)
	} else {
		walk(root)
	}

	page.Markdown = strings.Join(blocks, "\n\n")
	page.RawText = textContent(root)
	doc.Pages = []doctree.PageResult{page}
	return doc, nil
}

// htmlTable reads rows of th/td cells. The first row is the header.
func htmlTable(n *html.Node) doctree.TableData {
	table := doctree.TableData{Page: 1}
	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					cells = append(cells, strings.Join(strings.Fields(textContent(c)), " "))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	if len(rows) > 0 {
		table.Headers = rows[0]
		table.Rows = rows[1:]
	}
	return table
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

// textContent returns the element's text with whitespace collapsed.
func textContent(n *html.Node) string {
	return strings.Join(strings.Fields(rawTextContent(n)), " ")
}

func rawTextContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
