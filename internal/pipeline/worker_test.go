package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dgallion1/pdfrag/internal/config"
	"github.com/dgallion1/pdfrag/internal/parser"
	"github.com/dgallion1/pdfrag/internal/store"
)

// flakyStore fails the first n saves with err.
type flakyStore struct {
	*store.Memory
	mu    sync.Mutex
	n     int
	err   error
	saves int
}

func (f *flakyStore) Save(ctx context.Context, rec store.Record) error {
	f.mu.Lock()
	f.saves++
	fail := f.saves <= f.n
	f.mu.Unlock()
	if fail {
		return f.err
	}
	return f.Memory.Save(ctx, rec)
}

func newTestWorker(st store.Store) *Worker {
	w := NewWorker(st, zap.NewNop(), parser.DefaultOptions(), DefaultOptions(), nil)
	w.backoff = func(int) time.Duration { return 0 }
	return w
}

func TestWorker_ProcessStoresDocument(t *testing.T) {
	st := store.NewMemory()
	w := newTestWorker(st)

	job := NewJob("guide.md", "doc-1", []byte(guideMarkdown))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q (%v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.Sections != 3 || snap.Progress.TotalChunks != 3 || snap.Progress.ChunksStored != 3 {
		t.Errorf("unexpected progress %+v", snap.Progress)
	}
	if snap.Progress.TotalPages != 2 || snap.Progress.PagesProcessed != 2 {
		t.Errorf("unexpected page progress %+v", snap.Progress)
	}
	if job.FileData() != nil {
		t.Error("file data should be released after processing")
	}

	rec, err := st.Get(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("record not stored: %v", err)
	}
	if rec.Mode != string(ModeSections) || rec.Source != "guide" || rec.PageCount != 2 {
		t.Errorf("unexpected record %+v", rec.Summary())
	}
	if !strings.Contains(rec.Markdown, "\n\n---\n\n# Appendix") {
		t.Errorf("expected exported markdown with page separator, got %q", rec.Markdown)
	}
	if rec.ContentHash != snap.ContentHash || rec.ContentHash == "" {
		t.Errorf("content hash mismatch %q vs %q", rec.ContentHash, snap.ContentHash)
	}

	stats := w.phases.Snapshot()
	for _, phase := range []string{PhaseParse, PhaseStructure, PhaseChunk, PhaseStore, PhaseTotal} {
		if stats[phase].Count != 1 {
			t.Errorf("expected one %s sample, got %d", phase, stats[phase].Count)
		}
	}
}

func TestWorker_Dedup(t *testing.T) {
	st := store.NewMemory()
	w := newTestWorker(st)
	ctx := context.Background()

	w.Process(ctx, NewJob("guide.md", "doc-1", []byte(guideMarkdown)))

	dup := NewJob("copy.md", "doc-2", []byte(guideMarkdown))
	w.Process(ctx, dup)
	snap := dup.Snapshot()
	if snap.Status != StatusDupSkipped || snap.DuplicateOf != "doc-1" {
		t.Errorf("expected duplicate of doc-1, got %q / %q", snap.Status, snap.DuplicateOf)
	}
	if _, err := st.Get(ctx, "doc-2"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("duplicate should not be stored, got %v", err)
	}

	// Re-ingesting under the same doc id replaces the record.
	again := NewJob("guide.md", "doc-1", []byte(guideMarkdown))
	w.Process(ctx, again)
	if again.Snapshot().Status != StatusCompleted {
		t.Errorf("expected re-ingest to complete, got %q", again.Snapshot().Status)
	}

	forced := NewJob("copy.md", "doc-3", []byte(guideMarkdown))
	forced.Overrides.Force = true
	w.Process(ctx, forced)
	if forced.Snapshot().Status != StatusCompleted {
		t.Errorf("expected forced ingest to complete, got %q", forced.Snapshot().Status)
	}
}

func TestWorker_Failures(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name  string
		job   *Job
		phase string
	}{
		{"unsupported", NewJob("image.png", "", []byte("x")), "parsing"},
		{"empty", NewJob("empty.txt", "", []byte("   ")), "chunking"},
		{"bad json", NewJob("pages.json", "", []byte("[{")), "parsing"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			newTestWorker(store.NewMemory()).Process(ctx, tc.job)
			snap := tc.job.Snapshot()
			if snap.Status != StatusFailed || snap.Phase != tc.phase {
				t.Errorf("expected failed in %s, got %q in %s", tc.phase, snap.Status, snap.Phase)
			}
			if len(snap.Progress.Errors) != 1 {
				t.Errorf("expected one error, got %v", snap.Progress.Errors)
			}
		})
	}
}

func TestWorker_InvalidOverrides(t *testing.T) {
	job := NewJob("guide.md", "", []byte(guideMarkdown))
	overlap := 500
	job.Overrides = Overrides{ChunkSize: 100, ChunkOverlap: &overlap}
	newTestWorker(store.NewMemory()).Process(context.Background(), job)
	if job.Snapshot().Status != StatusFailed {
		t.Errorf("expected failure for overlap >= size, got %q", job.Snapshot().Status)
	}
}

func TestWorker_StoreRetries(t *testing.T) {
	ctx := context.Background()

	flaky := &flakyStore{Memory: store.NewMemory(), n: 2, err: store.Retryable(errors.New("connection reset"))}
	job := NewJob("guide.md", "doc-1", []byte(guideMarkdown))
	newTestWorker(flaky).Process(ctx, job)
	if job.Snapshot().Status != StatusCompleted || flaky.saves != 3 {
		t.Errorf("expected success on third attempt, got %q after %d saves", job.Snapshot().Status, flaky.saves)
	}

	down := &flakyStore{Memory: store.NewMemory(), n: 10, err: store.Retryable(errors.New("connection reset"))}
	job = NewJob("guide.md", "doc-1", []byte(guideMarkdown))
	newTestWorker(down).Process(ctx, job)
	if job.Snapshot().Status != StatusFailed || down.saves != MaxRetries {
		t.Errorf("expected failure after %d saves, got %q after %d", MaxRetries, job.Snapshot().Status, down.saves)
	}

	broken := &flakyStore{Memory: store.NewMemory(), n: 10, err: errors.New("schema mismatch")}
	job = NewJob("guide.md", "doc-1", []byte(guideMarkdown))
	newTestWorker(broken).Process(ctx, job)
	if job.Snapshot().Status != StatusFailed || broken.saves != 1 {
		t.Errorf("expected a single attempt for permanent errors, got %d", broken.saves)
	}
}

func TestOrchestrator_SubmitAndProcess(t *testing.T) {
	cfg := config.Config{
		WorkerCount:      2,
		MaxQueueSize:     4,
		JobTTL:           time.Hour,
		ChunkSize:        1000,
		ChunkOverlap:     200,
		MaxHeadingLevels: 2,
		MarkdownMinRatio: 0.3,
	}
	st := store.NewMemory()
	o := NewOrchestrator(cfg, st, zap.NewNop())
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("guide.md", "doc-1", []byte(guideMarkdown))
	if err := o.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if o.GetJob(job.ID) != job {
		t.Fatal("job not tracked")
	}

	deadline := time.Now().Add(5 * time.Second)
	for !job.Snapshot().Done() {
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish, status %q", job.Snapshot().Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if job.Snapshot().Status != StatusCompleted {
		t.Errorf("expected completed, got %q", job.Snapshot().Status)
	}
	if o.PhaseStats()[PhaseStore].Count != 1 {
		t.Errorf("expected phase stats to be shared with workers")
	}
	if o.TrackedJobs() != 1 {
		t.Errorf("expected one tracked job, got %d", o.TrackedJobs())
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	cfg := config.Config{WorkerCount: 1, MaxQueueSize: 1, JobTTL: time.Hour, ChunkSize: 1000, ChunkOverlap: 200}
	o := NewOrchestrator(cfg, store.NewMemory(), zap.NewNop())

	// No workers running: the first job fills the queue.
	if err := o.Submit(NewJob("a.md", "", []byte("a"))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second := NewJob("b.md", "", []byte("b"))
	if err := o.Submit(second); err == nil {
		t.Fatal("expected queue full error")
	}
	if second.Snapshot().Status != StatusFailed {
		t.Errorf("expected rejected job to be failed, got %q", second.Snapshot().Status)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected depth 1, got %d", o.QueueDepth())
	}
}

func TestOrchestrator_SubmitAfterStop(t *testing.T) {
	cfg := config.Config{WorkerCount: 1, MaxQueueSize: 4, JobTTL: time.Hour, ChunkSize: 1000, ChunkOverlap: 200}
	o := NewOrchestrator(cfg, store.NewMemory(), zap.NewNop())
	o.Start(context.Background())
	o.Stop()

	job := NewJob("late.md", "", []byte("late"))
	if err := o.Submit(job); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if job.Snapshot().Status != StatusFailed {
		t.Errorf("expected rejected job to be failed, got %q", job.Snapshot().Status)
	}
	o.Stop()
}

func TestOrchestrator_StopDuringSubmits(t *testing.T) {
	cfg := config.Config{WorkerCount: 1, MaxQueueSize: 1, JobTTL: time.Hour, ChunkSize: 1000, ChunkOverlap: 200}
	o := NewOrchestrator(cfg, store.NewMemory(), zap.NewNop())
	o.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				o.Submit(NewJob("a.txt", "", []byte("text")))
			}
		}()
	}
	o.Stop()
	wg.Wait()
}
