// Package worker runs the background loop that claims download jobs and
// fetches their content with bounded concurrency.
package worker

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"stowage/internal/mediastore"
	"stowage/internal/models"
	"stowage/internal/repository"
)

const (
	DefaultMaxConcurrent    = 5
	DefaultPollInterval     = time.Second
	DefaultErrorBackoff     = 5 * time.Second
	DefaultFetchTimeout     = 5 * time.Minute
	DefaultMaxDownloadBytes = int64(1 << 30)
)

// JobQueue is the slice of job storage the pool drives.
type JobQueue interface {
	ClaimNextJob(ctx context.Context) (*models.Job, error)
	CompleteJob(ctx context.Context, id, fileID string) error
	FailJob(ctx context.Context, id, message string) error
}

// ContentStore persists staged bytes with digest deduplication.
type ContentStore interface {
	Store(ctx context.Context, staged *mediastore.Staged, ext string) (repository.Result, error)
}

// Config tunes the pool. Zero values fall back to defaults.
type Config struct {
	MaxConcurrent    int
	PollInterval     time.Duration
	ErrorBackoff     time.Duration
	FetchTimeout     time.Duration
	MaxDownloadBytes int64
	HTTPClient       *http.Client
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Running       bool  `json:"running"`
	MaxConcurrent int   `json:"max_concurrent"`
	Active        int64 `json:"active"`
}

// Pool claims jobs one at a time and runs each fetch as its own goroutine,
// holding a semaphore permit for the duration.
type Pool struct {
	cfg     Config
	jobs    JobQueue
	content ContentStore
	media   mediastore.Store
	client  *http.Client
	logger  *slog.Logger

	sem    *semaphore.Weighted
	wakeup chan struct{}

	running atomic.Bool
	active  atomic.Int64

	mu       sync.Mutex
	cancel   context.CancelFunc
	loopDone chan struct{}
	tasks    sync.WaitGroup
}

// New constructs a stopped Pool.
func New(jobs JobQueue, content ContentStore, media mediastore.Store, cfg Config, logger *slog.Logger) *Pool {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultErrorBackoff
	}
	if cfg.FetchTimeout < 0 {
		cfg.FetchTimeout = 0
	}
	if cfg.MaxDownloadBytes < 0 {
		cfg.MaxDownloadBytes = 0
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		cfg:     cfg,
		jobs:    jobs,
		content: content,
		media:   media,
		client:  client,
		logger:  logger,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		wakeup:  make(chan struct{}, 1),
	}
}

// Start launches the claim loop. It returns false without side effects when
// the loop is already running.
func (p *Pool) Start(ctx context.Context) bool {
	if !p.running.CompareAndSwap(false, true) {
		return false
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.loopDone = done
	p.mu.Unlock()

	p.logger.Info("download pool started", "max_concurrent", p.cfg.MaxConcurrent)
	go p.run(loopCtx, done)
	return true
}

// Stop signals the loop to exit after its current iteration. In-flight
// downloads are not cancelled.
func (p *Pool) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the loop has exited and in-flight downloads finished, or
// ctx is done.
func (p *Pool) Wait(ctx context.Context) error {
	p.mu.Lock()
	loopDone := p.loopDone
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		if loopDone != nil {
			<-loopDone
		}
		p.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notify wakes an idle loop so a freshly enqueued job is claimed without
// waiting for the poll interval.
func (p *Pool) Notify() {
	select {
	case p.wakeup <- struct{}{}:
	default:
	}
}

// Running reports whether the claim loop is active.
func (p *Pool) Running() bool {
	return p.running.Load()
}

// Stats reports the pool state.
func (p *Pool) Stats() Stats {
	return Stats{
		Running:       p.running.Load(),
		MaxConcurrent: p.cfg.MaxConcurrent,
		Active:        p.active.Load(),
	}
}

func (p *Pool) run(ctx context.Context, done chan struct{}) {
	defer func() {
		p.mu.Lock()
		p.cancel = nil
		p.mu.Unlock()
		p.running.Store(false)
		close(done)
		p.logger.Info("download pool stopped")
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return
		}

		job, err := p.jobs.ClaimNextJob(ctx)
		if err != nil {
			p.sem.Release(1)
			if ctx.Err() != nil {
				return
			}
			claimErrorsTotal.Inc()
			p.logger.Error("claim download job", "error", err)
			p.sleep(ctx, p.cfg.ErrorBackoff, false)
			continue
		}
		if job == nil {
			p.sem.Release(1)
			p.sleep(ctx, p.cfg.PollInterval, true)
			continue
		}

		p.tasks.Add(1)
		p.active.Add(1)
		activeDownloads.Inc()
		go func(job *models.Job) {
			defer func() {
				activeDownloads.Dec()
				p.active.Add(-1)
				p.sem.Release(1)
				p.tasks.Done()
			}()
			p.process(job)
		}(job)
	}
}

// sleep pauses the loop. Idle sleeps end early on Notify.
func (p *Pool) sleep(ctx context.Context, d time.Duration, wakeable bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	var wake <-chan struct{}
	if wakeable {
		wake = p.wakeup
	}
	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-wake:
	}
}
