// Package ingest imports uploaded files into the document store through a
// bounded queue and a pool of workers.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docnav/internal/chunker"
	"github.com/dgallion1/docnav/internal/collab"
	"github.com/dgallion1/docnav/internal/config"
	"github.com/dgallion1/docnav/internal/parser"
)

// ErrStopped is returned by Submit once Stop has been called.
var ErrStopped = errors.New("import pipeline is stopped")

// Orchestrator manages the document import pipeline.
type Orchestrator struct {
	jobs   *JobStore
	hashes *HashIndex
	queue  chan *Job
	store  collab.Store
	log    *slog.Logger
	cfg    config.Config

	chunkCfg   chunker.Config
	parserOpts parser.Options

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Guards queue against sends after close.
	mu      sync.RWMutex
	stopped bool
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, store collab.Store, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:       NewJobStore(cfg.JobTTL),
		hashes:     NewHashIndex(),
		queue:      make(chan *Job, cfg.MaxQueueSize),
		store:      store,
		log:        log,
		cfg:        cfg,
		chunkCfg:   cfg.Chunking(),
		parserOpts: parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext},
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
			w := NewWorker(o.store, o.hashes, o.chunkCfg, o.parserOpts, o.log)
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

// Submit queues a new job for processing. It fails with ErrStopped after
// Stop.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.stopped {
		job.SetStatus(StatusFailed, "stopped")
		return ErrStopped
	}
	o.jobs.Put(job)
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
