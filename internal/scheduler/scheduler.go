package scheduler

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/crosspost-io/crosspost/internal/models"
	"github.com/crosspost-io/crosspost/internal/repository"
)

// Job is the resolved copy of a scheduled record handed to the
// executor. Fields are captured at schedule (or restore) time and never
// re-read at fire time.
type Job struct {
	ID       int64
	Platform string
	Message  string
	Metadata models.ContentMetadata
}

type Executor interface {
	Execute(job Job)
}

// Scheduler owns the id-to-timer map and keeps it consistent with the
// content store. It is built once at startup and injected where needed;
// the map is process-local, so exactly one instance may run against a
// given store.
type Scheduler struct {
	mu     sync.Mutex
	timers map[int64]*handle
	// firing holds ids whose executor body is running. Their store
	// rows are still pending, so a concurrent RestoreAll must not
	// re-arm them.
	firing map[int64]struct{}

	repo repository.ContentRepository
	exec Executor
	now  func() time.Time
}

// handle tracks one armed job. timer is nil for past-due jobs restored
// into the drain queue; those have no timer to stop but remain
// cancellable until the drain reaches them.
type handle struct {
	timer *time.Timer
}

func New(repo repository.ContentRepository, exec Executor) *Scheduler {
	return &Scheduler{
		timers: make(map[int64]*handle),
		firing: make(map[int64]struct{}),
		repo:   repo,
		exec:   exec,
		now:    time.Now,
	}
}

// Schedule persists the record in pending status first, then arms a
// one-shot timer for it. A past scheduledTime is accepted and fires
// immediately; callers wanting to reject past dates validate upstream.
func (s *Scheduler) Schedule(ctx context.Context, platform, message string, scheduledTime time.Time, metadata models.ContentMetadata) (*models.ScheduledContent, error) {
	if err := validate(platform, message, metadata); err != nil {
		return nil, err
	}

	content := &models.ScheduledContent{
		Platform:      platform,
		Message:       message,
		ScheduledTime: scheduledTime.UTC(),
		Status:        models.ContentStatusPending,
		Metadata:      metadata,
	}

	if _, err := s.repo.Create(ctx, content); err != nil {
		return nil, err
	}

	s.arm(jobFromContent(content), content.ScheduledTime)
	slog.Info("content scheduled", "id", content.ID, "platform", platform, "at", content.ScheduledTime)

	return content, nil
}

// Cancel stops the armed timer for id and marks the record cancelled.
// It returns false when no active timer exists: already fired, already
// cancelled, or never restored. A cancel that loses the race with a
// fire is a no-op.
func (s *Scheduler) Cancel(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	h, ok := s.timers[id]
	if ok {
		delete(s.timers, id)
	}
	s.mu.Unlock()

	if !ok {
		return false, nil
	}
	if h.timer != nil {
		h.timer.Stop()
	}

	if err := s.repo.UpdateStatus(ctx, id, models.ContentStatusCancelled, ""); err != nil {
		return true, err
	}
	slog.Info("content cancelled", "id", id)
	return true, nil
}

// RestoreAll re-arms a timer for every pending record. Records whose
// deadline already elapsed while the process was down are fired
// immediately, in creation order; silently dropping them would break
// eventual delivery. Calling it twice is safe: re-arming an id replaces
// its handle rather than duplicating it, and the fire path removes the
// handle exactly once.
func (s *Scheduler) RestoreAll(ctx context.Context) (int, error) {
	pending, err := s.repo.ListPending(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	var due []Job
	count := 0
	for _, content := range pending {
		job := jobFromContent(content)
		if content.ScheduledTime.After(now) {
			s.arm(job, content.ScheduledTime)
		} else {
			s.park(job.ID)
			due = append(due, job)
		}
		count++
	}

	if len(due) > 0 {
		go s.drain(due)
	}

	slog.Info("scheduled jobs restored", "count", count, "past_due", len(due))
	return count, nil
}

// ActiveJobs reports how many timers are currently armed.
func (s *Scheduler) ActiveJobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop disarms every timer without touching stored statuses; pending
// records are picked up again by the next RestoreAll.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, h := range s.timers {
		if h.timer != nil {
			h.timer.Stop()
		}
		delete(s.timers, id)
	}
}

func (s *Scheduler) arm(job Job, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.firing[job.ID]; busy {
		return
	}
	if old, ok := s.timers[job.ID]; ok && old.timer != nil {
		old.timer.Stop()
	}
	t := time.AfterFunc(at.Sub(s.now()), func() {
		s.fire(job)
	})
	s.timers[job.ID] = &handle{timer: t}
}

// park registers a cancellable handle with no timer for a past-due job
// awaiting the drain pass.
func (s *Scheduler) park(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.firing[id]; busy {
		return
	}
	if old, ok := s.timers[id]; ok && old.timer != nil {
		old.timer.Stop()
	}
	s.timers[id] = &handle{}
}

func (s *Scheduler) fire(job Job) {
	if !s.take(job.ID) {
		return
	}
	defer s.release(job.ID)
	s.exec.Execute(job)
}

// drain executes past-due restored jobs sequentially in the order they
// were listed, so equal deadlines keep a stable order.
func (s *Scheduler) drain(jobs []Job) {
	for _, job := range jobs {
		if !s.take(job.ID) {
			continue
		}
		s.exec.Execute(job)
		s.release(job.ID)
	}
}

// take removes the handle for id and marks it in-flight, reporting
// whether this caller owns the fire. Removing the handle before
// executing guarantees at most one execution per id and makes a later
// cancel a no-op.
func (s *Scheduler) take(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timers[id]; !ok {
		return false
	}
	delete(s.timers, id)
	s.firing[id] = struct{}{}
	return true
}

func (s *Scheduler) release(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.firing, id)
}

func jobFromContent(content *models.ScheduledContent) Job {
	return Job{
		ID:       content.ID,
		Platform: content.Platform,
		Message:  content.Message,
		Metadata: content.Metadata,
	}
}

func validate(platform, message string, metadata models.ContentMetadata) error {
	if !models.IsValidPlatform(platform) {
		return &ValidationError{Field: "platform", Reason: "unknown platform " + platform}
	}
	if strings.TrimSpace(message) == "" && !metadata.HasMedia {
		return &ValidationError{Field: "message", Reason: "message may be empty only when media is attached"}
	}
	if metadata.HasMedia && metadata.MediaPath == "" {
		return &ValidationError{Field: "media_path", Reason: "media path is required when media is attached"}
	}
	return nil
}
