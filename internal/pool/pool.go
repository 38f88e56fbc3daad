package pool

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrClosed    = errors.New("job pool is closed")
)

// Job is one unit of background work, usually a proof request accepted by
// the API.
type Job struct {
	ID  string
	Run func(ctx context.Context)
}

// JobPool runs queued jobs on a fixed number of workers. Jobs are never
// retried; a job that fails records its own outcome.
type JobPool struct {
	jobs    chan Job
	workers int
	log     *logrus.Logger

	mutex  sync.Mutex
	closed bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJobPool initializes a pool with the given worker count and queue depth
func NewJobPool(workers, queueSize int, log *logrus.Logger) *JobPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if log == nil {
		log = logrus.New()
	}
	return &JobPool{
		jobs:    make(chan Job, queueSize),
		workers: workers,
		log:     log,
	}
}

// Start launches the workers. Cancelling ctx cancels running jobs.
func (p *JobPool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.mutex.Lock()
	p.cancel = cancel
	p.mutex.Unlock()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.log.Infof("Started job pool with %d workers", p.workers)
}

// Submit enqueues a job without blocking.
func (p *JobPool) Submit(job Job) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.jobs <- job:
		p.log.Debugf("Queued job %s", job.ID)
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop rejects new jobs, lets queued jobs drain and waits for the workers.
func (p *JobPool) Stop() {
	p.mutex.Lock()
	if p.closed {
		p.mutex.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mutex.Unlock()
	p.wg.Wait()
}

// Abort cancels running jobs and then stops the pool.
func (p *JobPool) Abort() {
	p.mutex.Lock()
	cancel := p.cancel
	p.mutex.Unlock()
	if cancel != nil {
		cancel()
	}
	p.Stop()
}

func (p *JobPool) worker(ctx context.Context, n int) {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(ctx, n, job)
	}
}

func (p *JobPool) run(ctx context.Context, n int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorf("Job %s panicked on worker %d: %v", job.ID, n, r)
		}
	}()
	p.log.Debugf("Worker %d running job %s", n, job.ID)
	job.Run(ctx)
}
