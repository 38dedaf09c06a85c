package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pdfrag/internal/doctree"
)

func numberedWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%04d", i)
	}
	return strings.Join(words, " ")
}

func mustNew(t *testing.T, cfg Config) *Chunker {
	t.Helper()
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero size", Config{ChunkSize: 0, ChunkOverlap: 0}},
		{"negative overlap", Config{ChunkSize: 100, ChunkOverlap: -1}},
		{"overlap equals size", Config{ChunkSize: 100, ChunkOverlap: 100}},
		{"overlap exceeds size", Config{ChunkSize: 100, ChunkOverlap: 150}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.cfg)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestNew_DefaultConfigIsValid(t *testing.T) {
	c := mustNew(t, DefaultConfig())
	assert.Equal(t, 1000, c.Config().ChunkSize)
	assert.Equal(t, 200, c.Config().ChunkOverlap)
}

func TestChunkBySections_ShortSectionIsOneChunk(t *testing.T) {
	c := mustNew(t, DefaultConfig())
	sections := []doctree.Section{
		{Title: "Intro", Level: 1, Content: "  Short body text.  ", StartPage: 1, EndPage: 2},
	}

	chunks := c.ChunkBySections(sections, nil, "doc")

	require.Len(t, chunks, 1)
	ch := chunks[0]
	assert.Equal(t, "f5f3bbd409a2", ch.ID)
	assert.Equal(t, "Short body text.", ch.Content)
	assert.Equal(t, "Intro", ch.StringMeta(doctree.MetaSectionTitle))
	assert.Equal(t, "doc", ch.StringMeta(doctree.MetaSource))
	level, _ := ch.IntMeta(doctree.MetaSectionLevel)
	assert.Equal(t, 1, level)
	end, _ := ch.IntMeta(doctree.MetaEndPage)
	assert.Equal(t, 2, end)
	_, hasSub := ch.Metadata[doctree.MetaSubChunkIndex]
	assert.False(t, hasSub)
	assert.Equal(t, 8, ch.TokenCount)
}

func TestChunkBySections_LongSectionSplitsWithOverlap(t *testing.T) {
	c := mustNew(t, Config{ChunkSize: 1000, ChunkOverlap: 200})
	text := numberedWords(420)
	require.Greater(t, len(text), 2500)

	chunks := c.ChunkBySections([]doctree.Section{{Title: "Long", Level: 1, Content: text, StartPage: 1, EndPage: 1}}, nil, "doc")

	require.GreaterOrEqual(t, len(chunks), 3)
	for i, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch.Content), 1000, "chunk %d too large", i)
		sub, ok := ch.IntMeta(doctree.MetaSubChunkIndex)
		require.True(t, ok)
		assert.Equal(t, i, sub)
		assert.Equal(t, MakeID("doc", 0, i), ch.ID)
	}
	for i := 1; i < len(chunks); i++ {
		ov := sharedOverlap(chunks[i-1].Content, chunks[i].Content)
		assert.GreaterOrEqual(t, ov, 150, "chunks %d/%d overlap", i-1, i)
		assert.LessOrEqual(t, ov, 200, "chunks %d/%d overlap", i-1, i)
	}
}

// sharedOverlap returns the length of the longest suffix of a that prefixes b.
func sharedOverlap(a, b string) int {
	best := 0
	for n := 1; n <= len(a) && n <= len(b); n++ {
		if strings.HasSuffix(a, b[:n]) {
			best = n
		}
	}
	return best
}

func TestChunkBySections_SkipsBlankSections(t *testing.T) {
	c := mustNew(t, DefaultConfig())
	sections := []doctree.Section{
		{Title: "Empty", Level: 1, Content: " \n\t "},
		{Title: "Full", Level: 2, Content: "Body."},
	}

	chunks := c.ChunkBySections(sections, nil, "doc")

	require.Len(t, chunks, 1)
	assert.Equal(t, "Full", chunks[0].StringMeta(doctree.MetaSectionTitle))
	// The index of the section in the input list keys the ID, blank ones included.
	assert.Equal(t, MakeID("doc", 1, 0), chunks[0].ID)
}

func TestChunkBySections_TablesAfterSections(t *testing.T) {
	c := mustNew(t, DefaultConfig())
	pages := []doctree.PageResult{
		{PageNumber: 1, Markdown: "x", Tables: []doctree.TableData{{Headers: []string{"A", "B"}, Rows: [][]string{{"1", "2"}}, Page: 1}}},
	}
	sections := []doctree.Section{{Title: "S", Level: 1, Content: "Body", StartPage: 1, EndPage: 1}}

	chunks := c.ChunkBySections(sections, pages, "doc")

	require.Len(t, chunks, 2)
	table := chunks[1]
	assert.True(t, table.IsTable())
	assert.Equal(t, "| A | B |\n| --- | --- |\n| 1 | 2 |", table.Content)
	assert.Equal(t, "22382be1afaa", table.ID)
	page, _ := table.IntMeta(doctree.MetaPage)
	assert.Equal(t, 1, page)
}

func TestChunkByPages_TableScenario(t *testing.T) {
	c := mustNew(t, DefaultConfig())
	pages := []doctree.PageResult{
		{PageNumber: 1, Markdown: "Page text.", Tables: []doctree.TableData{{Headers: []string{"A", "B"}, Rows: [][]string{{"1", "2"}}}}},
	}

	chunks := c.ChunkByPages(pages, "doc")

	require.Len(t, chunks, 2)
	assert.False(t, chunks[0].IsTable())
	assert.True(t, chunks[1].IsTable())
	assert.Equal(t, "| A | B |\n| --- | --- |\n| 1 | 2 |", chunks[1].Content)
}

func TestChunkByPages_IDsAndOrdering(t *testing.T) {
	c := mustNew(t, Config{ChunkSize: 50, ChunkOverlap: 10})
	pages := []doctree.PageResult{
		{PageNumber: 1, Markdown: ""},
		{PageNumber: 2, Markdown: numberedWords(30), Tables: []doctree.TableData{{Headers: []string{"H"}, Rows: [][]string{{"v"}}}}},
		{PageNumber: 3, Markdown: "short page"},
	}

	chunks := c.ChunkByPages(pages, "doc")

	require.NotEmpty(t, chunks)
	prev := 0
	for _, ch := range chunks {
		page, ok := ch.IntMeta(doctree.MetaPage)
		require.True(t, ok)
		assert.GreaterOrEqual(t, page, prev)
		prev = page
		assert.NotEqual(t, 1, page, "empty page must not produce chunks")
	}
	last := chunks[len(chunks)-1]
	assert.Equal(t, "6082e0526210", last.ID)
	assert.Equal(t, "short page", last.Content)

	split := chunks[1]
	assert.Equal(t, MakeID("doc", "page2", 1), split.ID)
	assert.True(t, chunks[len(chunks)-2].IsTable())
}

func TestChunkByPages_TableNeverSplit(t *testing.T) {
	c := mustNew(t, Config{ChunkSize: 20, ChunkOverlap: 0})
	rows := make([][]string, 50)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("row %d", i), "value"}
	}
	pages := []doctree.PageResult{{PageNumber: 1, Tables: []doctree.TableData{{Headers: []string{"Name", "Value"}, Rows: rows}}}}

	chunks := c.ChunkByPages(pages, "doc")

	require.Len(t, chunks, 1)
	assert.Greater(t, utf8.RuneCountInString(chunks[0].Content), 20)
	assert.Equal(t, 52, strings.Count(chunks[0].Content, "\n")+1)
}

func TestChunkByPages_HeaderlessTableSkipped(t *testing.T) {
	c := mustNew(t, DefaultConfig())
	pages := []doctree.PageResult{{PageNumber: 1, Tables: []doctree.TableData{{Rows: [][]string{{"a"}}}}}}
	assert.Empty(t, c.ChunkByPages(pages, "doc"))
}

func TestChunking_EmptyDocument(t *testing.T) {
	c := mustNew(t, DefaultConfig())
	assert.Empty(t, c.ChunkBySections(nil, nil, "doc"))
	assert.Empty(t, c.ChunkByPages(nil, "doc"))
}

func TestChunking_Deterministic(t *testing.T) {
	c := mustNew(t, Config{ChunkSize: 100, ChunkOverlap: 20})
	sections := []doctree.Section{
		{Title: "A", Level: 1, Content: numberedWords(80), StartPage: 1, EndPage: 2},
		{Title: "B", Level: 2, Content: "tail", StartPage: 2, EndPage: 2},
	}
	first := c.ChunkBySections(sections, nil, "doc")
	second := c.ChunkBySections(sections, nil, "doc")
	assert.Equal(t, first, second)
}

func TestChunking_ChangingOneSectionKeepsOtherIDs(t *testing.T) {
	c := mustNew(t, Config{ChunkSize: 100, ChunkOverlap: 20})
	before := []doctree.Section{
		{Title: "A", Content: numberedWords(40)},
		{Title: "B", Content: numberedWords(10)},
	}
	after := []doctree.Section{
		{Title: "A", Content: numberedWords(40)},
		{Title: "B", Content: "completely different text"},
	}

	idsFor := func(chunks []doctree.Chunk, title string) []string {
		var ids []string
		for _, ch := range chunks {
			if ch.StringMeta(doctree.MetaSectionTitle) == title {
				ids = append(ids, ch.ID)
			}
		}
		return ids
	}
	b := c.ChunkBySections(before, nil, "doc")
	a := c.ChunkBySections(after, nil, "doc")
	assert.Equal(t, idsFor(b, "A"), idsFor(a, "A"))
}

func TestChunking_NoEmptyChunks(t *testing.T) {
	c := mustNew(t, Config{ChunkSize: 10, ChunkOverlap: 2})
	pages := []doctree.PageResult{{PageNumber: 1, Markdown: "a  \n\n   \n\n b\n\n\n\n" + strings.Repeat(" ", 40) + "c"}}
	for _, ch := range c.ChunkByPages(pages, "doc") {
		assert.NotEmpty(t, strings.TrimSpace(ch.Content))
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 1, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("a"))
	assert.Equal(t, 2, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("가나다라"))
}

func TestMakeID(t *testing.T) {
	assert.Equal(t, "f5f3bbd409a2", MakeID("doc", 0, 0))
	assert.Equal(t, "53f6f6f65ccc", MakeID("doc", "page3", 1))
	assert.Len(t, MakeID("anything", "x", 99), 12)
}

func TestTableToMarkdown_RaggedRows(t *testing.T) {
	md := TableToMarkdown(doctree.TableData{
		Headers: []string{"A", "B", "C"},
		Rows:    [][]string{{"1"}, {"1", "2", "3", "4"}},
	})
	want := "| A | B | C |\n| --- | --- | --- |\n| 1 |\n| 1 | 2 | 3 | 4 |"
	assert.Equal(t, want, md)
}
