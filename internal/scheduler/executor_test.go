package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/crosspost-io/crosspost/internal/dispatch"
	"github.com/crosspost-io/crosspost/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	mu        sync.Mutex
	messages  []string
	mediaSeen []*dispatch.Media
	fail      bool
	failMsg   string
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, message string, media *dispatch.Media, accountHint string) dispatch.Result {
	d.mu.Lock()
	d.messages = append(d.messages, message)
	d.mediaSeen = append(d.mediaSeen, media)
	d.mu.Unlock()
	if d.fail {
		return dispatch.Result{Err: &dispatch.Error{Platform: "fake", Reason: errString(d.failMsg)}}
	}
	return dispatch.Result{Success: true}
}

func (d *recordingDispatcher) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.messages)
}

func registryWith(platforms ...string) (*dispatch.Registry, map[string]*recordingDispatcher) {
	registry := dispatch.NewRegistry()
	adapters := make(map[string]*recordingDispatcher)
	for _, p := range platforms {
		d := &recordingDispatcher{}
		registry.Register(p, d)
		adapters[p] = d
	}
	return registry, adapters
}

func seedContent(t *testing.T, repo *memContentRepo, platform string, metadata models.ContentMetadata) Job {
	t.Helper()
	content := &models.ScheduledContent{
		Platform: platform,
		Message:  "hello",
		Status:   models.ContentStatusPending,
		Metadata: metadata,
	}
	id, err := repo.Create(context.Background(), content)
	require.NoError(t, err)
	return Job{ID: id, Platform: platform, Message: content.Message, Metadata: metadata}
}

func TestExecuteTextOnlySuccess(t *testing.T) {
	repo := newMemContentRepo()
	registry, adapters := registryWith(models.PlatformTelegram)
	exec := NewJobExecutor(repo, registry, "")

	job := seedContent(t, repo, models.PlatformTelegram, models.ContentMetadata{})
	exec.Execute(job)

	assert.Equal(t, models.ContentStatusSent, repo.status(job.ID))
	assert.Equal(t, 1, adapters[models.PlatformTelegram].calls())
}

func TestExecuteMediaMissing(t *testing.T) {
	repo := newMemContentRepo()
	registry, adapters := registryWith(models.PlatformTelegram)
	exec := NewJobExecutor(repo, registry, "")

	job := seedContent(t, repo, models.PlatformTelegram, models.ContentMetadata{
		HasMedia:  true,
		MediaPath: filepath.Join(t.TempDir(), "deleted.mp4"),
		MediaType: models.MediaTypeVideo,
	})
	exec.Execute(job)

	content, _ := repo.GetByID(context.Background(), job.ID)
	assert.Equal(t, models.ContentStatusFailed, content.Status)
	assert.Equal(t, CauseMediaMissing, content.FailureCause)
	// no dispatch attempted
	assert.Equal(t, 0, adapters[models.PlatformTelegram].calls())
}

func TestExecuteEmptyMediaFileFails(t *testing.T) {
	repo := newMemContentRepo()
	registry, _ := registryWith(models.PlatformTelegram)
	exec := NewJobExecutor(repo, registry, "")

	path := filepath.Join(t.TempDir(), "empty.jpg")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	job := seedContent(t, repo, models.PlatformTelegram, models.ContentMetadata{
		HasMedia: true, MediaPath: path, MediaType: models.MediaTypePhoto,
	})
	exec.Execute(job)

	content, _ := repo.GetByID(context.Background(), job.ID)
	assert.Equal(t, models.ContentStatusFailed, content.Status)
	assert.Equal(t, CauseMediaMissing, content.FailureCause)
}

func TestExecuteDispatchFailureRecordsCause(t *testing.T) {
	repo := newMemContentRepo()
	registry := dispatch.NewRegistry()
	registry.Register(models.PlatformTwitter, &recordingDispatcher{fail: true, failMsg: "rate limited"})
	exec := NewJobExecutor(repo, registry, "")

	job := seedContent(t, repo, models.PlatformTwitter, models.ContentMetadata{})
	exec.Execute(job)

	content, _ := repo.GetByID(context.Background(), job.ID)
	assert.Equal(t, models.ContentStatusFailed, content.Status)
	assert.Contains(t, content.FailureCause, "rate limited")
}

func TestExecuteUnknownPlatformFails(t *testing.T) {
	repo := newMemContentRepo()
	exec := NewJobExecutor(repo, dispatch.NewRegistry(), "")

	job := seedContent(t, repo, models.PlatformTwitter, models.ContentMetadata{})
	exec.Execute(job)

	content, _ := repo.GetByID(context.Background(), job.ID)
	assert.Equal(t, models.ContentStatusFailed, content.Status)
	assert.Contains(t, content.FailureCause, "no dispatcher registered")
}

func TestExecuteFanOutAll(t *testing.T) {
	repo := newMemContentRepo()
	registry, adapters := registryWith(models.FanoutPlatforms...)
	exec := NewJobExecutor(repo, registry, "")

	job := seedContent(t, repo, models.PlatformAll, models.ContentMetadata{})
	exec.Execute(job)

	assert.Equal(t, models.ContentStatusSent, repo.status(job.ID))
	for _, platform := range models.FanoutPlatforms {
		assert.Equal(t, 1, adapters[platform].calls(), platform)
	}
}

func TestExecuteFanOutPartialFailureIsFailed(t *testing.T) {
	repo := newMemContentRepo()
	registry, adapters := registryWith(models.FanoutPlatforms...)
	adapters[models.PlatformInstagram].fail = true
	adapters[models.PlatformInstagram].failMsg = "expired token"
	exec := NewJobExecutor(repo, registry, "")

	job := seedContent(t, repo, models.PlatformAll, models.ContentMetadata{})
	exec.Execute(job)

	content, _ := repo.GetByID(context.Background(), job.ID)
	assert.Equal(t, models.ContentStatusFailed, content.Status)
	assert.Contains(t, content.FailureCause, "expired token")
}

func TestExecuteCleansUpTransientMedia(t *testing.T) {
	repo := newMemContentRepo()
	scheduledDir := t.TempDir()

	for name, fail := range map[string]bool{"ok.jpg": false, "bad.jpg": true} {
		registry := dispatch.NewRegistry()
		registry.Register(models.PlatformTelegram, &recordingDispatcher{fail: fail, failMsg: "boom"})
		exec := NewJobExecutor(repo, registry, scheduledDir)

		path := filepath.Join(scheduledDir, name)
		require.NoError(t, os.WriteFile(path, []byte("media-bytes"), 0o644))

		job := seedContent(t, repo, models.PlatformTelegram, models.ContentMetadata{
			HasMedia: true, MediaPath: path, MediaType: models.MediaTypePhoto,
		})
		exec.Execute(job)

		// cleanup runs on success and on failure alike
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err), name)
	}
}

func TestExecuteKeepsCanonicalMedia(t *testing.T) {
	repo := newMemContentRepo()
	registry, _ := registryWith(models.PlatformTelegram)
	mediaDir := t.TempDir()
	exec := NewJobExecutor(repo, registry, filepath.Join(mediaDir, "scheduled"))

	// file lives outside the scheduling staging area
	path := filepath.Join(mediaDir, "keep.jpg")
	require.NoError(t, os.WriteFile(path, []byte("media-bytes"), 0o644))

	job := seedContent(t, repo, models.PlatformTelegram, models.ContentMetadata{
		HasMedia: true, MediaPath: path, MediaType: models.MediaTypePhoto,
	})
	exec.Execute(job)

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestExecuteDefaultCaptionForMediaOnlyPost(t *testing.T) {
	repo := newMemContentRepo()
	registry, adapters := registryWith(models.PlatformTwitter)
	exec := NewJobExecutor(repo, registry, "")

	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video-bytes"), 0o644))

	metadata := models.ContentMetadata{HasMedia: true, MediaPath: path, MediaType: models.MediaTypeVideo}
	content := &models.ScheduledContent{
		Platform: models.PlatformTwitter,
		Message:  "",
		Status:   models.ContentStatusPending,
		Metadata: metadata,
	}
	id, err := repo.Create(context.Background(), content)
	require.NoError(t, err)

	exec.Execute(Job{ID: id, Platform: models.PlatformTwitter, Message: "", Metadata: metadata})

	d := adapters[models.PlatformTwitter]
	require.Equal(t, 1, d.calls())
	assert.Equal(t, DefaultCaption, d.messages[0])
	require.NotNil(t, d.mediaSeen[0])
	assert.Equal(t, models.MediaTypeVideo, d.mediaSeen[0].Type)
}
