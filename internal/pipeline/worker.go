package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dgallion1/pdfrag/internal/chunker"
	"github.com/dgallion1/pdfrag/internal/export"
	"github.com/dgallion1/pdfrag/internal/parser"
	"github.com/dgallion1/pdfrag/internal/stats"
	"github.com/dgallion1/pdfrag/internal/store"
	"github.com/dgallion1/pdfrag/internal/structure"
)

// Phase names used for latency stats.
const (
	PhaseParse     = "parse"
	PhaseStructure = "structure"
	PhaseChunk     = "chunk"
	PhaseStore     = "store"
	PhaseTotal     = "total"
)

// Worker processes a single document job.
type Worker struct {
	store     store.Store
	log       *zap.Logger
	parseOpts parser.Options
	defaults  Options
	phases    *stats.Phases
	backoff   func(attempt int) time.Duration
}

func NewWorker(st store.Store, log *zap.Logger, parseOpts parser.Options, defaults Options, phases *stats.Phases) *Worker {
	if phases == nil {
		phases = stats.NewPhases(time.Hour)
	}
	return &Worker{
		store:     st,
		log:       log,
		parseOpts: parseOpts,
		defaults:  defaults,
		phases:    phases,
		backoff:   Backoff,
	}
}

func (w *Worker) fail(log *zap.Logger, job *Job, phase, msg string, err error) {
	log.Error(msg, zap.String("phase", phase), zap.Error(err))
	job.AddError(fmt.Sprintf("%s: %s", phase, err))
	job.SetStatus(StatusFailed, phase)
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With(zap.String("job_id", job.ID), zap.String("doc_id", job.DocID))
	started := time.Now()
	defer w.phases.Phase(PhaseTotal).Since(started)
	defer job.releaseFileData()

	opts := job.Overrides.Apply(w.defaults)
	det, err := structure.New(opts.Structure)
	if err != nil {
		w.fail(log, job, "parsing", "invalid structure settings", err)
		return
	}
	ch, err := chunker.New(opts.Chunk)
	if err != nil {
		w.fail(log, job, "parsing", "invalid chunk settings", err)
		return
	}

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	parseOpts := w.parseOpts
	parseOpts.OnPage = func(page, total int) {
		job.SetPageProgress(page, total)
		log.Debug("page extracted", zap.Int("page", page), zap.Int("total", total))
	}
	p, err := parser.ForFile(job.Filename, parseOpts)
	if err != nil {
		w.fail(log, job, "parsing", "unsupported format", err)
		return
	}

	start := time.Now()
	doc, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	w.phases.Phase(PhaseParse).Since(start)
	if err != nil {
		w.fail(log, job, "parsing", "parse failed", err)
		return
	}
	if job.Title != "" {
		doc.Title = job.Title
	}
	if job.Source != "" {
		doc.Source = job.Source
	}
	job.SetPageProgress(len(doc.Pages), len(doc.Pages))
	log.Info("parsed document", zap.Int("pages", len(doc.Pages)), zap.String("title", doc.Title))

	// Phase 1.5: Dedup check
	hash := ContentHashHex([]byte(DocumentText(doc)))
	job.SetContentHash(hash, "")
	if !job.Overrides.Force {
		existing, err := w.store.FindByHash(ctx, hash)
		switch {
		case err == nil && existing != job.DocID:
			log.Info("duplicate document, skipping", zap.String("existing_doc_id", existing))
			job.SetContentHash(hash, existing)
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		case err != nil && !errors.Is(err, store.ErrNotFound):
			log.Warn("dedup check failed, proceeding", zap.Error(err))
		}
	}

	// Phase 2: Structure
	job.SetStatus(StatusStructuring, "structuring")
	start = time.Now()
	sections := det.Parse(doc.Pages)
	w.phases.Phase(PhaseStructure).Since(start)
	log.Info("detected sections", zap.Int("sections", len(sections)))

	// Phase 3: Chunk
	job.SetStatus(StatusChunking, "chunking")
	start = time.Now()
	chunks, mode := chunkDocument(ch, sections, doc)
	w.phases.Phase(PhaseChunk).Since(start)
	job.SetResult(len(sections), len(chunks), mode)
	log.Info("chunked document", zap.Int("chunks", len(chunks)), zap.String("mode", string(mode)))

	if len(chunks) == 0 {
		w.fail(log, job, "chunking", "no chunks produced", errors.New("no extractable content"))
		return
	}

	// Phase 4: Store
	job.SetStatus(StatusStoring, "storing")
	rec := store.Record{
		DocID:       job.DocID,
		Filename:    job.Filename,
		Title:       doc.Title,
		Source:      doc.Source,
		ContentHash: hash,
		Mode:        string(mode),
		PageCount:   len(doc.Pages),
		Sections:    sections,
		Chunks:      chunks,
		Markdown:    export.DocumentMarkdown(doc.Pages),
		CreatedAt:   job.CreatedAt.UTC(),
	}
	start = time.Now()
	err = withRetry(ctx, w.backoff, func() error {
		return w.store.Save(ctx, rec)
	}, func(attempt int, err error) {
		log.Warn("retryable store error", zap.Int("attempt", attempt), zap.Error(err))
	})
	w.phases.Phase(PhaseStore).Since(start)
	if err != nil {
		w.fail(log, job, "storing", "store failed", err)
		return
	}

	job.SetChunksStored(len(chunks))
	job.SetStatus(StatusCompleted, "done")
	log.Info("document stored", zap.Duration("elapsed", time.Since(started)))
}
