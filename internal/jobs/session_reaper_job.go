package job

import (
	"context"
	"log/slog"

	"github.com/crosspost-io/crosspost/internal/upload"
)

// SessionReaperJob purges expired upload sessions and their partial
// chunks. Wired onto the cron schedule in main.
type SessionReaperJob struct {
	um *upload.Manager
}

func NewSessionReaperJob(um *upload.Manager) *SessionReaperJob {
	return &SessionReaperJob{um: um}
}

func (j *SessionReaperJob) ReapExpiredSessions() {
	ctx := context.Background()

	cleaned, err := j.um.CleanupExpired(ctx)
	if err != nil {
		slog.Info(err.Error())
		return
	}
	if cleaned > 0 {
		slog.Info("reaped expired upload sessions", "count", cleaned)
	}
}
