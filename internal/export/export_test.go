package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dgallion1/pdfrag/internal/doctree"
)

var sampleSections = []doctree.Section{
	{Title: "Introduction", Level: 1, Content: "Intro text", StartPage: 1, EndPage: 1},
	{Title: "Scope", Level: 2, Content: "A <b> & c", StartPage: 2, EndPage: 4},
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleSections))
	out := buf.String()
	assert.Contains(t, out, "\n  {\n    \"title\": \"Introduction\"")
	assert.Contains(t, out, `"content": "A <b> & c"`, "html stays unescaped")
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, sampleSections))

	var back []doctree.Section
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, sampleSections, back)
	assert.True(t, strings.HasPrefix(buf.String(), "- title: Introduction\n  level: 1\n"))
}

func TestOutlineMarkdown(t *testing.T) {
	got := OutlineMarkdown(sampleSections)
	want := "- [L1] Introduction (p.1)\n  - [L2] Scope (p.2-4)\n"
	assert.Equal(t, want, got)
	assert.Empty(t, OutlineMarkdown(nil))
}

func TestDocumentMarkdown(t *testing.T) {
	pages := []doctree.PageResult{{Markdown: "one"}, {Markdown: "two"}}
	assert.Equal(t, "one\n\n---\n\ntwo", DocumentMarkdown(pages))
	assert.Empty(t, DocumentMarkdown(nil))
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML("# Title\n\n| A | B |\n| --- | --- |\n| 1 | 2 |\n")
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Title</h1>")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<td>2</td>")
}

func TestPreviewPage(t *testing.T) {
	page := PreviewPage("R&D <plan>", "<p>x</p>\n")
	assert.Contains(t, page, "<title>R&amp;D &lt;plan&gt;</title>")
	assert.Contains(t, page, "<p>x</p>")
}
