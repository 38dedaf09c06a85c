package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/pdfrag/internal/doctree"
)

// ErrInvalidConfig is returned by New for unusable size settings.
var ErrInvalidConfig = errors.New("invalid chunker config")

// Config controls chunking behavior. Sizes are in characters.
type Config struct {
	ChunkSize    int // Upper bound on a text chunk.
	ChunkOverlap int // Context shared between consecutive split chunks.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    1000,
		ChunkOverlap: 200,
	}
}

// Validate checks that the sizes describe a splitter that can make progress.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", ErrInvalidConfig, c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", ErrInvalidConfig, c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// Chunker turns sections or pages into size-bounded chunks. Text is split
// with SplitWithFallbackSeparators; tables are serialized to markdown and
// always kept whole.
type Chunker struct {
	cfg        Config
	separators []string
}

// New validates cfg and returns a Chunker using DefaultSeparators.
func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg, separators: DefaultSeparators}, nil
}

// Config returns the chunker's settings.
func (c *Chunker) Config() Config {
	return c.cfg
}

// ChunkBySections emits chunks for every non-blank section, followed by one
// chunk per table found on any page.
func (c *Chunker) ChunkBySections(sections []doctree.Section, pages []doctree.PageResult, source string) []doctree.Chunk {
	var chunks []doctree.Chunk

	for i, sec := range sections {
		text := strings.TrimSpace(sec.Content)
		if text == "" {
			continue
		}
		base := map[string]any{
			doctree.MetaSectionTitle: sec.Title,
			doctree.MetaSectionLevel: sec.Level,
			doctree.MetaStartPage:    sec.StartPage,
			doctree.MetaEndPage:      sec.EndPage,
			doctree.MetaSource:       source,
		}

		if utf8.RuneCountInString(text) <= c.cfg.ChunkSize {
			chunks = append(chunks, newChunk(MakeID(source, i, 0), text, base))
			continue
		}
		for k, part := range c.split(text) {
			meta := copyMeta(base)
			meta[doctree.MetaSubChunkIndex] = k
			chunks = append(chunks, newChunk(MakeID(source, i, k), part, meta))
		}
	}

	for _, page := range pages {
		chunks = appendTableChunks(chunks, page, source)
	}
	return chunks
}

// ChunkByPages emits chunks page by page, each page's tables right after
// its text.
func (c *Chunker) ChunkByPages(pages []doctree.PageResult, source string) []doctree.Chunk {
	var chunks []doctree.Chunk

	for _, page := range pages {
		text := strings.TrimSpace(page.Markdown)
		if text != "" {
			base := map[string]any{
				doctree.MetaPage:   page.PageNumber,
				doctree.MetaSource: source,
			}
			if utf8.RuneCountInString(text) <= c.cfg.ChunkSize {
				chunks = append(chunks, newChunk(MakeID(source, "page", page.PageNumber), text, base))
			} else {
				key := fmt.Sprintf("page%d", page.PageNumber)
				for k, part := range c.split(text) {
					meta := copyMeta(base)
					meta[doctree.MetaSubChunkIndex] = k
					chunks = append(chunks, newChunk(MakeID(source, key, k), part, meta))
				}
			}
		}
		chunks = appendTableChunks(chunks, page, source)
	}
	return chunks
}

func (c *Chunker) split(text string) []string {
	return SplitWithFallbackSeparators(text, c.cfg.ChunkSize, c.cfg.ChunkOverlap, c.separators)
}

func appendTableChunks(chunks []doctree.Chunk, page doctree.PageResult, source string) []doctree.Chunk {
	key := fmt.Sprintf("table_p%d", page.PageNumber)
	for t, table := range page.Tables {
		md := TableToMarkdown(table)
		if strings.TrimSpace(md) == "" {
			continue
		}
		chunks = append(chunks, newChunk(MakeID(source, key, t), md, map[string]any{
			doctree.MetaElementType: string(doctree.ElementTable),
			doctree.MetaPage:        page.PageNumber,
			doctree.MetaSource:      source,
		}))
	}
	return chunks
}

func newChunk(id, content string, meta map[string]any) doctree.Chunk {
	return doctree.Chunk{
		ID:         id,
		Content:    content,
		Metadata:   meta,
		TokenCount: EstimateTokens(content),
	}
}

func copyMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
