package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"stowage/internal/classify"
	"stowage/internal/models"
	"stowage/internal/repository"
	"stowage/internal/store"
)

// process runs one claimed job to a terminal state. It is detached from the
// loop context so Stop never aborts a fetch midway.
func (p *Pool) process(job *models.Job) {
	ctx := context.Background()
	if p.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.FetchTimeout)
		defer cancel()
	}
	logger := p.logger.With("job_id", job.ID, "url", job.DownloadURL)
	logger.Debug("download started")

	res, err := p.fetch(ctx, job)
	record := context.WithoutCancel(ctx)
	if err != nil {
		jobsProcessedTotal.WithLabelValues("failed").Inc()
		logger.Warn("download failed", "error", err)
		if failErr := p.jobs.FailJob(record, job.ID, err.Error()); failErr != nil {
			logger.Error("record job failure", "error", failErr)
		}
		return
	}

	if err := p.jobs.CompleteJob(record, job.ID, res.File.ID); err != nil {
		jobsProcessedTotal.WithLabelValues("failed").Inc()
		logger.Error("complete job", "file_id", res.File.ID, "error", err)
		if failErr := p.jobs.FailJob(record, job.ID, fmt.Sprintf("complete job: %v", err)); failErr != nil {
			logger.Error("record job failure", "error", failErr)
		}
		return
	}

	outcome := "completed"
	if res.Duplicate {
		outcome = "duplicate"
	}
	jobsProcessedTotal.WithLabelValues(outcome).Inc()
	downloadBytesTotal.Add(float64(res.File.SizeBytes))
	logger.Info("download completed", "file_id", res.File.ID, "duplicate", res.Duplicate)
}

// fetch downloads the job URL into staging and hands it to the content store.
// The extension comes from the response Content-Type.
func (p *Pool) fetch(ctx context.Context, job *models.Job) (repository.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.DownloadURL, nil)
	if err != nil {
		return repository.Result{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return repository.Result{}, p.timeoutAware(ctx, fmt.Errorf("fetch: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return repository.Result{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	ext := classify.ExtensionForContentType(resp.Header.Get("Content-Type"))
	staged, err := p.media.Stage(ctx, store.NewID(), resp.Body, p.cfg.MaxDownloadBytes)
	if err != nil {
		return repository.Result{}, p.timeoutAware(ctx, fmt.Errorf("read body: %w", err))
	}
	defer staged.Discard()

	res, err := p.content.Store(ctx, staged, ext)
	if err != nil {
		return repository.Result{}, fmt.Errorf("store content: %w", err)
	}
	return res, nil
}

func (p *Pool) timeoutAware(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("fetch timed out after %s: %w", p.cfg.FetchTimeout, err)
	}
	return err
}
