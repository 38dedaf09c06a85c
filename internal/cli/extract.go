package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgallion1/pdfrag/internal/config"
	"github.com/dgallion1/pdfrag/internal/doctree"
	"github.com/dgallion1/pdfrag/internal/export"
	"github.com/dgallion1/pdfrag/internal/parser"
	"github.com/dgallion1/pdfrag/internal/pipeline"
)

const (
	flagOutputDir = "output-dir"
	flagFormat    = "format"
	flagSource    = "source"
)

// Output formats accepted by extract. "both" is markdown plus chunks; "all"
// adds the outline.
const (
	FormatMarkdown = "markdown"
	FormatChunks   = "chunks"
	FormatOutline  = "outline"
	FormatBoth     = "both"
	FormatAll      = "all"
)

func newExtractCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract a document into markdown, chunks and an outline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outDir, _ := cmd.Flags().GetString(flagOutputDir)
			format, _ := cmd.Flags().GetString(flagFormat)
			source, _ := cmd.Flags().GetString(flagSource)
			return a.extract(cmd.OutOrStdout(), args[0], outDir, format, source)
		},
	}

	f := cmd.Flags()
	f.String(flagOutputDir, "./output", "directory receiving chunks/, markdown/ and outline/")
	f.String(flagFormat, FormatBoth, "what to write: markdown, chunks, outline, both or all")
	f.String(flagSource, "", "source name used in chunk IDs (default: file name without extension)")
	addProcessingFlags(cmd)
	return cmd
}

// addProcessingFlags registers the structure and chunking settings. They
// share names with the configuration keys so viper resolves flag, env and
// file values alike.
func addProcessingFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int(config.KeyChunkSize, 1000, "maximum chunk size in characters")
	f.Int(config.KeyChunkOverlap, 200, "characters shared between consecutive split chunks")
	f.Int(config.KeyMaxHeadingLevels, 2, "number of heading levels that open sections")
	f.Bool(config.KeyDropPreamble, false, "discard text before the first heading")
}

func formatWrites(format string) (markdown, chunks, outline bool, err error) {
	switch format {
	case FormatMarkdown:
		return true, false, false, nil
	case FormatChunks:
		return false, true, false, nil
	case FormatOutline:
		return false, false, true, nil
	case FormatBoth:
		return true, true, false, nil
	case FormatAll:
		return true, true, true, nil
	default:
		return false, false, false, fmt.Errorf("unknown format %q: want markdown, chunks, outline, both or all", format)
	}
}

// analyze parses path and runs structure detection and chunking on it.
func (a *app) analyze(path, source string) (*doctree.Document, pipeline.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pipeline.Result{}, fmt.Errorf("read %s: %w", path, err)
	}

	parseOpts := pipeline.ParseOptions(a.cfg)
	parseOpts.OnPage = func(page, total int) {
		a.log.Info("page extracted", zap.Int("page", page), zap.Int("total", total))
	}
	p, err := parser.ForFile(path, parseOpts)
	if err != nil {
		return nil, pipeline.Result{}, err
	}

	start := time.Now()
	doc, err := p.Parse(bytes.NewReader(data), filepath.Base(path))
	if err != nil {
		return nil, pipeline.Result{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if source != "" {
		doc.Source = source
	}
	a.log.Info("parsed document", zap.String("file", path), zap.Int("pages", len(doc.Pages)), zap.Duration("elapsed", time.Since(start)))

	res, err := pipeline.Process(doc, pipeline.OptionsFromConfig(a.cfg))
	if err != nil {
		return nil, pipeline.Result{}, err
	}
	a.log.Info("processed document",
		zap.Int("sections", len(res.Sections)),
		zap.Int("chunks", len(res.Chunks)),
		zap.String("mode", string(res.Mode)))
	return doc, res, nil
}

func (a *app) extract(out io.Writer, path, outDir, format, source string) error {
	wantMarkdown, wantChunks, wantOutline, err := formatWrites(format)
	if err != nil {
		return err
	}

	doc, res, err := a.analyze(path, source)
	if err != nil {
		return err
	}
	stem := parser.Stem(path)

	var written []string
	if wantChunks {
		p := filepath.Join(outDir, "chunks", stem+"_chunks.json")
		if err := writeFile(p, func(w io.Writer) error { return export.WriteJSON(w, res.Chunks) }); err != nil {
			return err
		}
		written = append(written, p)
	}
	if wantMarkdown {
		p := filepath.Join(outDir, "markdown", stem+".md")
		if err := writeFile(p, func(w io.Writer) error {
			_, err := io.WriteString(w, export.DocumentMarkdown(doc.Pages))
			return err
		}); err != nil {
			return err
		}
		written = append(written, p)
	}
	if wantOutline {
		jp := filepath.Join(outDir, "outline", stem+"_sections.json")
		if err := writeFile(jp, func(w io.Writer) error { return export.WriteJSON(w, res.Sections) }); err != nil {
			return err
		}
		yp := filepath.Join(outDir, "outline", stem+"_sections.yaml")
		if err := writeFile(yp, func(w io.Writer) error { return export.WriteYAML(w, res.Sections) }); err != nil {
			return err
		}
		written = append(written, jp, yp)
	}

	for _, p := range written {
		fmt.Fprintln(out, p)
	}
	return nil
}

// writeFile creates path and its parent directories and fills it with fill.
func writeFile(path string, fill func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fill(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
