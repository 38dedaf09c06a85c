package pipeline

import (
	"fmt"

	"github.com/dgallion1/pdfrag/internal/chunker"
	"github.com/dgallion1/pdfrag/internal/config"
	"github.com/dgallion1/pdfrag/internal/doctree"
	"github.com/dgallion1/pdfrag/internal/parser"
	"github.com/dgallion1/pdfrag/internal/structure"
)

// Mode names the chunking strategy used for a document.
type Mode string

const (
	ModeSections Mode = "sections"
	ModePages    Mode = "pages"
)

// Options configures structure detection and chunking.
type Options struct {
	Structure structure.Config
	Chunk     chunker.Config
}

func DefaultOptions() Options {
	return Options{
		Structure: structure.DefaultConfig(),
		Chunk:     chunker.DefaultConfig(),
	}
}

// OptionsFromConfig maps the structure and chunk settings of cfg.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Structure: structure.Config{
			MaxHeadingLevels: cfg.MaxHeadingLevels,
			DropPreamble:     cfg.DropPreamble,
		},
		Chunk: chunker.Config{
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
		},
	}
}

// ParseOptions maps the extraction settings of cfg.
func ParseOptions(cfg config.Config) parser.Options {
	return parser.Options{
		FallbackPdftotext: cfg.PDFFallbackPdftotext,
		MarkdownMinRatio:  cfg.MarkdownMinRatio,
	}
}

// Result is the outcome of processing one document.
type Result struct {
	Sections []doctree.Section `json:"sections"`
	Chunks   []doctree.Chunk   `json:"chunks"`
	Mode     Mode              `json:"mode"`
}

// Process detects the document's sections and chunks it. Section chunking
// is used whenever at least one section was found; otherwise the pages are
// chunked directly. The two modes never mix within a run.
func Process(doc *doctree.Document, opts Options) (Result, error) {
	det, err := structure.New(opts.Structure)
	if err != nil {
		return Result{}, fmt.Errorf("structure detector: %w", err)
	}
	ch, err := chunker.New(opts.Chunk)
	if err != nil {
		return Result{}, fmt.Errorf("chunker: %w", err)
	}

	sections := det.Parse(doc.Pages)
	chunks, mode := chunkDocument(ch, sections, doc)
	return Result{Sections: sections, Chunks: chunks, Mode: mode}, nil
}

func chunkDocument(ch *chunker.Chunker, sections []doctree.Section, doc *doctree.Document) ([]doctree.Chunk, Mode) {
	if len(sections) > 0 {
		return ch.ChunkBySections(sections, doc.Pages, doc.Source), ModeSections
	}
	return ch.ChunkByPages(doc.Pages, doc.Source), ModePages
}
