package parser

import (
	"reflect"
	"strings"
	"testing"
)

func TestMarkdownParser_PagesSplitOnThematicBreak(t *testing.T) {
	input := `# Title

Intro text.

| A | B |
| --- | --- |
| 1 | 2 |

---

## Second

Body two.
`
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "notes/doc.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "doc" || doc.Source != "doc" {
		t.Errorf("expected title and source %q, got %q / %q", "doc", doc.Title, doc.Source)
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(doc.Pages))
	}

	first := doc.Pages[0]
	wantMD := "# Title\n\nIntro text.\n\n| A | B |\n| --- | --- |\n| 1 | 2 |"
	if first.Markdown != wantMD {
		t.Errorf("page 1 markdown:\n got %q\nwant %q", first.Markdown, wantMD)
	}
	if len(first.Tables) != 1 {
		t.Fatalf("expected 1 table on page 1, got %d", len(first.Tables))
	}
	if !reflect.DeepEqual(first.Tables[0].Headers, []string{"A", "B"}) {
		t.Errorf("unexpected headers %v", first.Tables[0].Headers)
	}
	if !reflect.DeepEqual(first.Tables[0].Rows, [][]string{{"1", "2"}}) {
		t.Errorf("unexpected rows %v", first.Tables[0].Rows)
	}
	if len(first.Spans) == 0 || first.Spans[0].Text != "Title" || first.Spans[0].FontSize != headingFontSize(1) {
		t.Errorf("expected leading h1 span, got %+v", first.Spans)
	}

	second := doc.Pages[1]
	if second.PageNumber != 2 {
		t.Errorf("expected page number 2, got %d", second.PageNumber)
	}
	if second.Markdown != "## Second\n\nBody two." {
		t.Errorf("page 2 markdown: got %q", second.Markdown)
	}
	if second.Spans[0].Text != "Second" || second.Spans[0].FontSize != headingFontSize(2) {
		t.Errorf("expected h2 span, got %+v", second.Spans[0])
	}
	if second.Spans[1].Text != "Body two." || second.Spans[1].FontSize != bodyFontSize {
		t.Errorf("expected body span, got %+v", second.Spans[1])
	}
}

func TestMarkdownParser_SetextUnderlineIsNotAPageBreak(t *testing.T) {
	input := "Heading\n-------\n\nText under it.\n\n---\n\nNext page."
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "setext.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(doc.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(doc.Pages))
	}
	if doc.Pages[0].Markdown != "Heading\n-------\n\nText under it." {
		t.Errorf("page 1 markdown: got %q", doc.Pages[0].Markdown)
	}
	if doc.Pages[0].Spans[0].FontSize != headingFontSize(2) {
		t.Errorf("expected setext h2 span, got %+v", doc.Pages[0].Spans[0])
	}
	if doc.Pages[1].Markdown != "Next page." {
		t.Errorf("page 2 markdown: got %q", doc.Pages[1].Markdown)
	}
}

func TestMarkdownParser_NoBreaksIsOnePage(t *testing.T) {
	input := `Just some plain text.

Another paragraph here.
`
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "plain.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(doc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(doc.Pages))
	}
	if len(doc.Pages[0].Spans) != 2 {
		t.Errorf("expected 2 body spans, got %d", len(doc.Pages[0].Spans))
	}
	for _, sp := range doc.Pages[0].Spans {
		if sp.FontSize != bodyFontSize {
			t.Errorf("expected body size, got %v", sp.FontSize)
		}
	}
}

func TestMarkdownParser_Lists(t *testing.T) {
	input := "# List\n\n- one\n- two\n"
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "list.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var texts []string
	for _, sp := range doc.Pages[0].Spans {
		texts = append(texts, sp.Text)
	}
	want := []string{"List", "one", "two"}
	if !reflect.DeepEqual(texts, want) {
		t.Errorf("expected spans %v, got %v", want, texts)
	}
}

func TestMarkdownParser_Empty(t *testing.T) {
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(""), "empty.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 1 || doc.Pages[0].Markdown != "" {
		t.Errorf("expected one blank page, got %+v", doc.Pages)
	}
}

func TestFindBreakLine(t *testing.T) {
	src := []byte("para\n\n***\n\nnext")
	got := findBreakLine(src, 4, len(src))
	if got != [2]int{6, 10} {
		t.Errorf("expected [6 10], got %v", got)
	}

	if got := findBreakLine([]byte("no break here"), 0, 13); got != [2]int{0, 0} {
		t.Errorf("expected empty cut, got %v", got)
	}
}
