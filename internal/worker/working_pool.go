package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Job is one unit of background work.
type Job func(ctx context.Context) error

var ErrPoolStopped = errors.New("working pool stopped")

// WorkingPool runs submitted jobs on a fixed number of goroutines.
type WorkingPool struct {
	NumWorkers int
	jobChan    chan Job
	stopped    atomic.Bool

	completed atomic.Int64
	failed    atomic.Int64
}

func NewWorkingPool(numWorkers int, queueSize int) *WorkingPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &WorkingPool{
		NumWorkers: numWorkers,
		jobChan:    make(chan Job, queueSize),
	}
}

// SubmitJob queues job, waiting for room until ctx is done.
func (p *WorkingPool) SubmitJob(ctx context.Context, job Job) error {
	if p.stopped.Load() {
		return ErrPoolStopped
	}
	select {
	case p.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start runs the workers until ctx is done, then waits for them to exit.
func (p *WorkingPool) Start(ctx context.Context, managerWg *sync.WaitGroup) {
	defer managerWg.Done()

	var workerWg sync.WaitGroup
	for i := range p.NumWorkers {
		workerWg.Add(1)
		go p.worker(ctx, &workerWg, i+1)
	}

	<-ctx.Done()
	p.stopped.Store(true)
	slog.Info("working pool shutdown signaled")

	workerWg.Wait()
	slog.Info("working pool stopped", "completed", p.completed.Load(), "failed", p.failed.Load())
}

func (p *WorkingPool) worker(ctx context.Context, wg *sync.WaitGroup, id int) {
	defer wg.Done()

	for {
		select {
		case job := <-p.jobChan:
			p.safeExecution(ctx, job, id)
		case <-ctx.Done():
			return
		}
	}
}

func (p *WorkingPool) safeExecution(ctx context.Context, job Job, workerID int) {
	defer func() {
		if r := recover(); r != nil {
			p.failed.Add(1)
			slog.Error("panic recovered in job", "worker", workerID, "panic", r)
		}
	}()

	if err := job(ctx); err != nil {
		p.failed.Add(1)
		slog.Warn("job failed", "worker", workerID, "error", err)
		return
	}
	p.completed.Add(1)
}

// Stats returns the completed and failed job counters.
func (p *WorkingPool) Stats() (completed, failed int64) {
	return p.completed.Load(), p.failed.Load()
}
