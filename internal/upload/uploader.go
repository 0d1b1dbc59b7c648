package upload

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"math"
	"time"

	"github.com/crosspost-io/crosspost/internal/transfer"
)

// ChunkService is the server surface the uploader talks to. The
// in-process Manager satisfies it directly; an HTTP client wrapper can
// satisfy it remotely.
type ChunkService interface {
	UseChunked(size int64) bool
	SimpleUpload(ctx context.Context, fileName string, data []byte) (*transfer.UploadCompleteResult, error)
	Init(ctx context.Context, in *transfer.UploadInit) (*transfer.UploadInitResult, error)
	Chunk(ctx context.Context, uploadID string, index int, token, checksum string, data []byte) (*transfer.UploadChunkResult, error)
	Complete(ctx context.Context, uploadID, token string) (*transfer.UploadCompleteResult, error)
}

// Progress is reported after every delivered chunk.
type Progress struct {
	Percent       int
	UploadedBytes int64
	TotalBytes    int64
	Speed         float64 // bytes per second
	RemainingTime time.Duration
}

type ProgressFunc func(Progress)

// DefaultMaxRetries is the per-chunk retry budget after the first
// attempt; delays between attempts grow as 2^attempt seconds.
const DefaultMaxRetries = 3

// Uploader drives a whole file through the two-tier strategy, retrying
// individual chunks with exponential backoff and reporting progress.
type Uploader struct {
	svc        ChunkService
	chunkSize  int64
	MaxRetries int
	OnProgress ProgressFunc

	sleep func(time.Duration)
	now   func() time.Time
}

func NewUploader(svc ChunkService, chunkSize int64) *Uploader {
	return &Uploader{
		svc:        svc,
		chunkSize:  chunkSize,
		MaxRetries: DefaultMaxRetries,
		sleep:      time.Sleep,
		now:        time.Now,
	}
}

// Upload sends the file, routing by size. On the chunked path it
// initializes a session, delivers every chunk in order, and completes.
// A chunk that cannot be delivered after the retry budget surfaces a
// ChunkDeliveryError naming its index.
func (u *Uploader) Upload(ctx context.Context, fileName string, data []byte) (*transfer.UploadCompleteResult, error) {
	total := int64(len(data))

	if !u.svc.UseChunked(total) {
		result, err := u.svc.SimpleUpload(ctx, fileName, data)
		if err != nil {
			return nil, err
		}
		u.report(Progress{Percent: 100, UploadedBytes: total, TotalBytes: total})
		return result, nil
	}

	totalChunks := int(math.Ceil(float64(total) / float64(u.chunkSize)))
	init, err := u.svc.Init(ctx, &transfer.UploadInit{
		FileName:    fileName,
		FileSize:    total,
		TotalChunks: totalChunks,
	})
	if err != nil {
		return nil, err
	}

	start := u.now()
	var uploaded int64
	for i := 0; i < totalChunks; i++ {
		lo := int64(i) * u.chunkSize
		hi := lo + u.chunkSize
		if hi > total {
			hi = total
		}
		chunk := data[lo:hi]

		if err := u.deliverChunk(ctx, init.UploadID, i, init.UploadToken, chunk); err != nil {
			return nil, err
		}

		uploaded += hi - lo
		u.report(computeProgress(uploaded, total, u.now().Sub(start)))
	}

	return u.svc.Complete(ctx, init.UploadID, init.UploadToken)
}

func (u *Uploader) deliverChunk(ctx context.Context, uploadID string, index int, token string, chunk []byte) error {
	sum := md5.Sum(chunk)
	checksum := hex.EncodeToString(sum[:])

	var lastErr error
	attempts := u.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			u.sleep(time.Duration(math.Pow(2, float64(attempt))) * time.Second)
		}

		_, err := u.svc.Chunk(ctx, uploadID, index, token, checksum, chunk)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	return &ChunkDeliveryError{Index: index, Attempts: attempts, Err: lastErr}
}

func (u *Uploader) report(p Progress) {
	if u.OnProgress != nil {
		u.OnProgress(p)
	}
}

// computeProgress derives the progress metrics from uploaded bytes and
// elapsed wall-clock time since the first byte. A zero speed never
// divides: remaining time reports 0 instead.
func computeProgress(uploaded, total int64, elapsed time.Duration) Progress {
	p := Progress{
		UploadedBytes: uploaded,
		TotalBytes:    total,
	}

	if total > 0 {
		percent := int(math.Round(float64(uploaded) / float64(total) * 100))
		if percent > 100 {
			percent = 100
		}
		p.Percent = percent
	}

	if elapsed > 0 {
		p.Speed = float64(uploaded) / elapsed.Seconds()
	}
	if p.Speed > 0 {
		remaining := total - uploaded
		p.RemainingTime = time.Duration(float64(remaining) / p.Speed * float64(time.Second))
	}

	return p
}
