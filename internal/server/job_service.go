package server

import (
	"context"
	"fmt"
	"strings"

	"stowage/internal/models"
	"stowage/internal/store"
)

// Notifier is woken after a job is enqueued.
type Notifier interface {
	Notify()
}

// JobService enqueues and looks up download jobs.
type JobService struct {
	jobs     store.JobStore
	notifier Notifier
}

// NewJobService constructs a JobService. notifier may be nil.
func NewJobService(jobs store.JobStore, notifier Notifier) *JobService {
	return &JobService{jobs: jobs, notifier: notifier}
}

// Enqueue validates rawURL and records a NotStarted job for it.
func (s *JobService) Enqueue(ctx context.Context, rawURL string) (*models.Job, error) {
	if s == nil || s.jobs == nil {
		return nil, internalError(fmt.Errorf("job service is not configured"))
	}
	downloadURL, err := normalizeDownloadURL(rawURL)
	if err != nil {
		return nil, err
	}

	job, err := s.jobs.EnqueueJob(ctx, store.NewID(), downloadURL)
	if err != nil {
		return nil, storeFailure(err)
	}
	jobsEnqueuedTotal.Inc()
	if s.notifier != nil {
		s.notifier.Notify()
	}
	return job, nil
}

// Get returns the job with id or a not-found error.
func (s *JobService) Get(ctx context.Context, id string) (*models.Job, error) {
	if s == nil || s.jobs == nil {
		return nil, internalError(fmt.Errorf("job service is not configured"))
	}
	id = strings.TrimSpace(id)
	if !validateID(id) {
		return nil, jobNotFound()
	}
	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		return nil, storeFailure(err)
	}
	if job == nil {
		return nil, jobNotFound()
	}
	return job, nil
}

func jobNotFound() error {
	return notFoundCode(fmt.Errorf("Job not found"), ErrCodeJobNotFound)
}
