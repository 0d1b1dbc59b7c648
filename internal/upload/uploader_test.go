package upload

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/crosspost-io/crosspost/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chunkCall struct {
	index    int
	checksum string
	size     int
}

// fakeChunkService records calls and can be told to fail a chunk index
// a fixed number of times (-1 means always).
type fakeChunkService struct {
	threshold int64
	failures  map[int]int

	simpleData []byte
	calls      []chunkCall
	completed  bool
}

func newFakeChunkService(threshold int64) *fakeChunkService {
	return &fakeChunkService{threshold: threshold, failures: make(map[int]int)}
}

func (s *fakeChunkService) UseChunked(size int64) bool {
	return size > s.threshold
}

func (s *fakeChunkService) SimpleUpload(ctx context.Context, fileName string, data []byte) (*transfer.UploadCompleteResult, error) {
	s.simpleData = append([]byte(nil), data...)
	return &transfer.UploadCompleteResult{FileID: "file-simple", FilePath: "/media/file-simple"}, nil
}

func (s *fakeChunkService) Init(ctx context.Context, in *transfer.UploadInit) (*transfer.UploadInitResult, error) {
	return &transfer.UploadInitResult{
		UploadID:    "up-1",
		UploadToken: "token-1",
		TotalChunks: in.TotalChunks,
	}, nil
}

func (s *fakeChunkService) Chunk(ctx context.Context, uploadID string, index int, token, checksum string, data []byte) (*transfer.UploadChunkResult, error) {
	s.calls = append(s.calls, chunkCall{index: index, checksum: checksum, size: len(data)})
	if left, ok := s.failures[index]; ok && left != 0 {
		if left > 0 {
			s.failures[index] = left - 1
		}
		return nil, errors.New("connection reset")
	}
	return &transfer.UploadChunkResult{UploadID: uploadID, ChunkIndex: index}, nil
}

func (s *fakeChunkService) Complete(ctx context.Context, uploadID, token string) (*transfer.UploadCompleteResult, error) {
	s.completed = true
	return &transfer.UploadCompleteResult{UploadID: uploadID, FileID: "file-chunked"}, nil
}

func (s *fakeChunkService) attemptsFor(index int) int {
	n := 0
	for _, call := range s.calls {
		if call.index == index {
			n++
		}
	}
	return n
}

func newTestUploader(svc *fakeChunkService, chunkSize int64) (*Uploader, *[]time.Duration) {
	delays := &[]time.Duration{}
	u := NewUploader(svc, chunkSize)
	u.sleep = func(d time.Duration) { *delays = append(*delays, d) }
	u.now = time.Now
	return u, delays
}

func TestUploaderSimplePath(t *testing.T) {
	svc := newFakeChunkService(10)
	u, _ := newTestUploader(svc, 5)

	var reports []Progress
	u.OnProgress = func(p Progress) { reports = append(reports, p) }

	data := []byte("tiny")
	result, err := u.Upload(context.Background(), "tiny.bin", data)
	require.NoError(t, err)
	assert.Equal(t, "file-simple", result.FileID)
	assert.True(t, bytes.Equal(data, svc.simpleData))
	assert.Empty(t, svc.calls)

	require.Len(t, reports, 1)
	assert.Equal(t, 100, reports[0].Percent)
	assert.Equal(t, int64(4), reports[0].UploadedBytes)
}

func TestUploaderChunkedHappyPath(t *testing.T) {
	svc := newFakeChunkService(10)
	u, delays := newTestUploader(svc, 5)

	var reports []Progress
	u.OnProgress = func(p Progress) { reports = append(reports, p) }

	data := []byte("thirteen byte") // 13 bytes, 3 chunks of 5/5/3
	result, err := u.Upload(context.Background(), "clip.bin", data)
	require.NoError(t, err)
	assert.Equal(t, "file-chunked", result.FileID)
	assert.True(t, svc.completed)
	assert.Empty(t, *delays)

	require.Len(t, svc.calls, 3)
	for i, call := range svc.calls {
		assert.Equal(t, i, call.index)
	}
	assert.Equal(t, 5, svc.calls[0].size)
	assert.Equal(t, 3, svc.calls[2].size)

	sum := md5.Sum(data[:5])
	assert.Equal(t, hex.EncodeToString(sum[:]), svc.calls[0].checksum)

	require.Len(t, reports, 3)
	assert.Equal(t, 38, reports[0].Percent)
	assert.Equal(t, 77, reports[1].Percent)
	assert.Equal(t, 100, reports[2].Percent)
	assert.Equal(t, int64(13), reports[2].UploadedBytes)
}

func TestUploaderRetriesTransientFailures(t *testing.T) {
	svc := newFakeChunkService(10)
	svc.failures[1] = 2

	u, delays := newTestUploader(svc, 5)

	_, err := u.Upload(context.Background(), "clip.bin", []byte("thirteen byte"))
	require.NoError(t, err)
	assert.True(t, svc.completed)

	assert.Equal(t, 1, svc.attemptsFor(0))
	assert.Equal(t, 3, svc.attemptsFor(1))
	assert.Equal(t, 1, svc.attemptsFor(2))
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *delays)
}

func TestUploaderExhaustsRetryBudget(t *testing.T) {
	svc := newFakeChunkService(10)
	svc.failures[1] = -1

	u, delays := newTestUploader(svc, 5)

	_, err := u.Upload(context.Background(), "clip.bin", []byte("thirteen byte"))
	require.Error(t, err)

	var delivery *ChunkDeliveryError
	require.ErrorAs(t, err, &delivery)
	assert.Equal(t, 1, delivery.Index)
	assert.Equal(t, 4, delivery.Attempts)

	assert.Equal(t, 4, svc.attemptsFor(1))
	assert.Equal(t, 0, svc.attemptsFor(2))
	assert.False(t, svc.completed)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, *delays)
}

func TestUploaderStopsOnCancelledContext(t *testing.T) {
	svc := newFakeChunkService(10)
	svc.failures[0] = -1

	u, delays := newTestUploader(svc, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := u.Upload(ctx, "clip.bin", []byte("thirteen byte"))
	require.Error(t, err)

	var delivery *ChunkDeliveryError
	require.ErrorAs(t, err, &delivery)
	assert.Equal(t, 1, svc.attemptsFor(0))
	assert.Empty(t, *delays)
}

func TestComputeProgress(t *testing.T) {
	t.Run("midway", func(t *testing.T) {
		p := computeProgress(50, 100, time.Second)
		assert.Equal(t, 50, p.Percent)
		assert.Equal(t, float64(50), p.Speed)
		assert.Equal(t, time.Second, p.RemainingTime)
	})

	t.Run("rounds percent", func(t *testing.T) {
		p := computeProgress(1, 3, time.Second)
		assert.Equal(t, 33, p.Percent)

		p = computeProgress(2, 3, time.Second)
		assert.Equal(t, 67, p.Percent)
	})

	t.Run("caps percent at 100", func(t *testing.T) {
		p := computeProgress(110, 100, time.Second)
		assert.Equal(t, 100, p.Percent)
	})

	t.Run("zero elapsed never divides", func(t *testing.T) {
		p := computeProgress(50, 100, 0)
		assert.Equal(t, float64(0), p.Speed)
		assert.Equal(t, time.Duration(0), p.RemainingTime)
	})

	t.Run("zero total", func(t *testing.T) {
		p := computeProgress(0, 0, time.Second)
		assert.Equal(t, 0, p.Percent)
		assert.Equal(t, time.Duration(0), p.RemainingTime)
	})
}
