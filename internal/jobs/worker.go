package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/repos"
	"github.com/yungbote/courseware-backend/internal/types"
)

// Handler executes one claimed job to completion.
type Handler interface {
	Run(ctx context.Context, job *types.JobRun) error
}

// Worker polls the job_run table, claims runnable rows with SKIP LOCKED and
// dispatches them by job type. A panicking handler marks the job failed
// instead of taking the worker down.
type Worker struct {
	log      *logger.Logger
	repo     repos.JobRunRepo
	handlers map[string]Handler
}

func NewWorker(repo repos.JobRunRepo, baseLog *logger.Logger) *Worker {
	return &Worker{
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		handlers: map[string]Handler{},
	}
}

func (w *Worker) Register(jobType string, h Handler) {
	w.handlers[jobType] = h
}

func (w *Worker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		const maxAttempts = 5
		retryDelay := 30 * time.Second
		staleRunning := 2 * time.Minute
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				job, err := w.repo.ClaimNextRunnable(ctx, nil, maxAttempts, retryDelay, staleRunning)
				if err != nil {
					w.log.Warn("ClaimNextRunnable failed", "error", err)
					continue
				}
				if job == nil {
					continue
				}
				w.run(ctx, job)
			}
		}
	}()
}

func (w *Worker) run(ctx context.Context, job *types.JobRun) {
	h, ok := w.handlers[job.JobType]
	if !ok {
		w.log.Warn("no handler registered for job_type", "job_type", job.JobType, "job_id", job.ID)
		w.finish(ctx, job, fmt.Errorf("no handler registered for job_type=%s", job.JobType))
		return
	}
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("job handler panic", "job_id", job.ID, "job_type", job.JobType, "panic", r)
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = h.Run(ctx, job)
	}()
	w.finish(ctx, job, err)
}

func (w *Worker) finish(ctx context.Context, job *types.JobRun, runErr error) {
	now := time.Now()
	updates := map[string]interface{}{
		"status":     types.JobStatusSucceeded,
		"updated_at": now,
	}
	if runErr != nil {
		updates["status"] = types.JobStatusFailed
		updates["error"] = runErr.Error()
		updates["last_error_at"] = now
	}
	if err := w.repo.UpdateFields(ctx, nil, job.ID, updates); err != nil {
		w.log.Error("job status update failed", "job_id", job.ID, "error", err)
	}
}

// EnqueueCourseRegrade queues a full-course regrade, typically after a
// publish changes structure or policy.
func EnqueueCourseRegrade(ctx context.Context, repo repos.JobRunRepo, courseKey string) error {
	_, err := repo.Create(ctx, nil, []*types.JobRun{{
		JobType:   types.JobTypeCourseRegrade,
		CourseKey: courseKey,
		Status:    types.JobStatusQueued,
	}})
	return err
}
