package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/crosspost-io/crosspost/internal/dispatch"
	"github.com/crosspost-io/crosspost/internal/models"
	"github.com/crosspost-io/crosspost/internal/repository"
)

// DefaultCaption replaces an empty message on media-only posts.
const DefaultCaption = "Scheduled post"

// JobExecutor is the callback body run when a timer fires. It resolves
// media, dispatches to every target platform, writes the terminal
// status, and cleans up transient media on all exit paths. Dispatch
// failures are recorded, never retried; a failed record is resubmitted
// by an operator.
type JobExecutor struct {
	repo         repository.ContentRepository
	registry     *dispatch.Registry
	scheduledDir string
	concurrency  int
}

func NewJobExecutor(repo repository.ContentRepository, registry *dispatch.Registry, scheduledDir string) *JobExecutor {
	return &JobExecutor{
		repo:         repo,
		registry:     registry,
		scheduledDir: scheduledDir,
		concurrency:  10,
	}
}

func (e *JobExecutor) Execute(job Job) {
	ctx := context.Background()

	if job.Metadata.HasMedia && e.isTransient(job.Metadata.MediaPath) {
		defer func() {
			if err := os.Remove(job.Metadata.MediaPath); err != nil && !os.IsNotExist(err) {
				slog.Warn("could not clean up scheduled media", "path", job.Metadata.MediaPath, "error", err)
			}
		}()
	}

	var media *dispatch.Media
	if job.Metadata.HasMedia {
		info, err := os.Stat(job.Metadata.MediaPath)
		if err != nil || info.Size() == 0 {
			slog.Error("media missing at fire time", "id", job.ID, "path", job.Metadata.MediaPath)
			e.updateStatus(ctx, job.ID, models.ContentStatusFailed, CauseMediaMissing)
			return
		}
		media = &dispatch.Media{Path: job.Metadata.MediaPath, Type: job.Metadata.MediaType}
	}

	targets, err := e.registry.Resolve(job.Platform)
	if err != nil {
		slog.Error("cannot resolve dispatch targets", "id", job.ID, "platform", job.Platform, "error", err)
		e.updateStatus(ctx, job.ID, models.ContentStatusFailed, err.Error())
		return
	}

	message := job.Message
	if strings.TrimSpace(message) == "" && media != nil {
		message = DefaultCaption
	}

	if err := e.dispatchAll(ctx, job, targets, message, media); err != nil {
		slog.Error("scheduled job failed", "id", job.ID, "error", err)
		e.updateStatus(ctx, job.ID, models.ContentStatusFailed, err.Error())
		return
	}

	e.updateStatus(ctx, job.ID, models.ContentStatusSent, "")
	slog.Info("scheduled job completed", "id", job.ID, "platform", job.Platform)
}

func (e *JobExecutor) dispatchAll(ctx context.Context, job Job, targets []dispatch.Target, message string, media *dispatch.Media) error {
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, e.concurrency)

	var mu sync.Mutex
	var firstErr error

	for _, target := range targets {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(target dispatch.Target) {
			defer wg.Done()
			defer func() { <-semaphore }()

			result := target.Dispatcher.Dispatch(ctx, message, media, job.Metadata.AccountName)
			if result.Err != nil || !result.Success {
				err := result.Err
				if err == nil {
					err = &dispatch.Error{Platform: target.Platform, Reason: errors.New("dispatcher reported failure")}
				}
				slog.Error("dispatch failed", "id", job.ID, "platform", target.Platform, "error", err)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			slog.Info("dispatched", "id", job.ID, "platform", target.Platform, "post_id", result.PlatformPostID)
		}(target)
	}

	wg.Wait()
	return firstErr
}

// isTransient reports whether path sits in the scheduling staging area,
// the only place the executor is allowed to delete from.
func (e *JobExecutor) isTransient(path string) bool {
	if e.scheduledDir == "" || path == "" {
		return false
	}
	dir, err := filepath.Abs(e.scheduledDir)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return strings.HasPrefix(abs, dir+string(filepath.Separator))
}

func (e *JobExecutor) updateStatus(ctx context.Context, id int64, status, cause string) {
	if err := e.repo.UpdateStatus(ctx, id, status, cause); err != nil {
		slog.Error("could not update content status", "id", id, "status", status, "error", err)
	}
}
