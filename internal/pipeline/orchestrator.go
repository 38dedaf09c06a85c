package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dgallion1/pdfrag/internal/config"
	"github.com/dgallion1/pdfrag/internal/parser"
	"github.com/dgallion1/pdfrag/internal/stats"
	"github.com/dgallion1/pdfrag/internal/store"
)

const statsWindow = time.Hour

// ErrStopped is returned by Submit once the orchestrator has been stopped.
var ErrStopped = errors.New("pipeline is shutting down")

// Orchestrator manages the document ingestion pipeline.
type Orchestrator struct {
	jobs      *JobStore
	queue     chan *Job
	store     store.Store
	log       *zap.Logger
	cfg       config.Config
	parseOpts parser.Options
	defaults  Options
	phases    *stats.Phases

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex // Guards stopped and the closing of queue.
	stopped bool
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, st store.Store, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:      NewJobStore(cfg.JobTTL),
		queue:     make(chan *Job, cfg.MaxQueueSize),
		store:     st,
		log:       log,
		cfg:       cfg,
		parseOpts: ParseOptions(cfg),
		defaults:  OptionsFromConfig(cfg),
		phases:    stats.NewPhases(statsWindow),
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.store, o.log, o.parseOpts, o.defaults, o.phases)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline. Later calls are no-ops.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Submit queues a new job for processing. After Stop it fails the job and
// returns ErrStopped.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)

	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.stopped {
		job.SetStatus(StatusFailed, "shutting_down")
		return ErrStopped
	}
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// TrackedJobs returns how many jobs are still held in memory.
func (o *Orchestrator) TrackedJobs() int {
	return o.jobs.Len()
}

// Store returns the document store for direct use by API handlers.
func (o *Orchestrator) Store() store.Store {
	return o.store
}

// PhaseStats returns latency percentiles per pipeline phase.
func (o *Orchestrator) PhaseStats() map[string]stats.Snapshot {
	return o.phases.Snapshot()
}

// Defaults returns the processing options used when a job has no overrides.
func (o *Orchestrator) Defaults() Options {
	return o.defaults
}
