package upload

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/crosspost-io/crosspost/internal/models"
	"github.com/crosspost-io/crosspost/internal/repository"
	"github.com/crosspost-io/crosspost/internal/storage"
	"github.com/crosspost-io/crosspost/internal/transfer"
	"github.com/crosspost-io/crosspost/pkg/utils"
	"github.com/h2non/filetype"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ArtifactStore mirrors finished files into the canonical media bucket.
type ArtifactStore interface {
	Configured() bool
	UploadFile(ctx context.Context, key, path, contentType string) error
}

// Manager implements the two-tier upload strategy: files at or below
// the threshold take the single-request path, larger ones the chunked
// protocol (init / chunk / complete) guarded by a session-scoped token.
type Manager struct {
	repo      repository.UploadSessionRepository
	chunks    storage.ChunkStore
	artifacts ArtifactStore

	secretKey  string
	mediaDir   string
	chunkSize  int64
	threshold  int64
	sessionTTL time.Duration

	now func() time.Time
}

func NewManager(
	repo repository.UploadSessionRepository,
	chunks storage.ChunkStore,
	artifacts ArtifactStore,
	secretKey, mediaDir string,
	chunkSize, threshold int64,
	sessionTTL time.Duration) *Manager {
	return &Manager{
		repo:       repo,
		chunks:     chunks,
		artifacts:  artifacts,
		secretKey:  secretKey,
		mediaDir:   mediaDir,
		chunkSize:  chunkSize,
		threshold:  threshold,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// UseChunked routes by size: a file of exactly the threshold takes the
// simple path, one byte more takes the chunked path.
func (m *Manager) UseChunked(size int64) bool {
	return size > m.threshold
}

// SimpleUpload is the single-request path: one write, immediate
// completion.
func (m *Manager) SimpleUpload(ctx context.Context, fileName string, data []byte) (*transfer.UploadCompleteResult, error) {
	if len(data) == 0 {
		return nil, &ValidationError{Reason: "empty file"}
	}

	fileID, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	destPath := filepath.Join(m.mediaDir, fileID+filepath.Ext(fileName))
	if err := os.MkdirAll(m.mediaDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return nil, err
	}

	contentType := sniffContentType(data)
	if err := m.mirrorArtifact(ctx, filepath.Base(destPath), destPath, contentType); err != nil {
		slog.Warn("could not mirror upload to bucket", "file", destPath, "error", err)
	}

	return &transfer.UploadCompleteResult{
		FileID:   fileID,
		FilePath: destPath,
		FileType: contentType,
	}, nil
}

// Init opens a chunked upload session and issues its capability token.
func (m *Manager) Init(ctx context.Context, in *transfer.UploadInit) (*transfer.UploadInitResult, error) {
	if in.FileSize <= 0 {
		return nil, &ValidationError{Reason: "file size must be positive"}
	}
	expected := int(math.Ceil(float64(in.FileSize) / float64(m.chunkSize)))
	if in.TotalChunks != expected {
		return nil, &ValidationError{
			Reason: fmt.Sprintf("total chunks %d does not match expected %d for %d bytes", in.TotalChunks, expected, in.FileSize),
		}
	}

	uploadID := in.UploadID
	if uploadID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return nil, err
		}
		uploadID = id
	}

	expiresAt := m.now().Add(m.sessionTTL)
	token, err := utils.GenerateUploadToken(m.secretKey, uploadID, expiresAt)
	if err != nil {
		return nil, err
	}

	session := &models.UploadSession{
		UploadID:    uploadID,
		FileName:    in.FileName,
		FileSize:    in.FileSize,
		FileType:    in.FileType,
		TotalChunks: in.TotalChunks,
		Status:      models.UploadStatusUploading,
		Token:       token,
		ExpiresAt:   expiresAt,
	}
	if err := m.repo.Create(ctx, session); err != nil {
		return nil, err
	}

	slog.Info("upload session initialized", "upload_id", uploadID, "file", in.FileName, "chunks", in.TotalChunks)

	return &transfer.UploadInitResult{
		UploadID:    uploadID,
		UploadToken: token,
		ChunkSize:   m.chunkSize,
		TotalChunks: in.TotalChunks,
		ExpiresAt:   expiresAt,
	}, nil
}

// Chunk persists one chunk. Re-submitting an already-received index is
// a successful no-op so client retries stay idempotent. checksum, when
// non-empty, is the MD5 hex of the chunk body.
func (m *Manager) Chunk(ctx context.Context, uploadID string, index int, token, checksum string, data []byte) (*transfer.UploadChunkResult, error) {
	session, err := m.authorize(ctx, uploadID, token)
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= session.TotalChunks {
		return nil, &ChunkRangeError{Index: index, TotalChunks: session.TotalChunks}
	}

	if checksum != "" {
		sum := md5.Sum(data)
		if hex.EncodeToString(sum[:]) != checksum {
			return nil, ErrChecksumMismatch
		}
	}

	already, err := m.chunks.HasChunk(uploadID, index)
	if err != nil {
		return nil, err
	}
	if !already {
		if err := m.chunks.PutChunk(uploadID, index, data); err != nil {
			return nil, err
		}
	}

	received, err := m.chunks.ReceivedChunks(uploadID, session.TotalChunks)
	if err != nil {
		return nil, err
	}

	return &transfer.UploadChunkResult{
		UploadID:       uploadID,
		ChunkIndex:     index,
		ReceivedChunks: len(received),
		TotalChunks:    session.TotalChunks,
		Progress:       progressPercent(len(received), session.TotalChunks),
	}, nil
}

// Complete verifies every chunk index arrived, assembles the artifact
// in index order, mirrors it to the media bucket, and closes the
// session.
func (m *Manager) Complete(ctx context.Context, uploadID, token string) (*transfer.UploadCompleteResult, error) {
	session, err := m.authorize(ctx, uploadID, token)
	if err != nil {
		return nil, err
	}

	received, err := m.chunks.ReceivedChunks(uploadID, session.TotalChunks)
	if err != nil {
		return nil, err
	}
	if missing := missingChunks(received, session.TotalChunks); len(missing) > 0 {
		return nil, &IncompleteError{Missing: missing}
	}

	fileID, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	destPath := filepath.Join(m.mediaDir, fileID+filepath.Ext(session.FileName))

	if err := m.chunks.Assemble(uploadID, session.TotalChunks, destPath); err != nil {
		return nil, fmt.Errorf("assembling upload %s: %w", uploadID, err)
	}

	contentType := session.FileType
	if sniffed, err := sniffFile(destPath); err == nil && sniffed != "application/octet-stream" {
		contentType = sniffed
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := m.mirrorArtifact(ctx, filepath.Base(destPath), destPath, contentType); err != nil {
		slog.Warn("could not mirror upload to bucket", "file", destPath, "error", err)
	}

	if err := m.repo.UpdateStatus(ctx, uploadID, models.UploadStatusCompleted); err != nil {
		return nil, err
	}
	if err := m.chunks.Purge(uploadID); err != nil {
		slog.Warn("could not purge chunks", "upload_id", uploadID, "error", err)
	}

	slog.Info("upload completed", "upload_id", uploadID, "file_id", fileID)

	return &transfer.UploadCompleteResult{
		UploadID: uploadID,
		FileID:   fileID,
		FilePath: destPath,
		FileType: contentType,
	}, nil
}

// Status reports session progress without requiring the token.
func (m *Manager) Status(ctx context.Context, uploadID string) (*transfer.UploadStatus, error) {
	session, err := m.repo.GetByID(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	received, err := m.chunks.ReceivedChunks(uploadID, session.TotalChunks)
	if err != nil {
		return nil, err
	}

	return &transfer.UploadStatus{
		UploadID:       uploadID,
		Status:         session.Status,
		FileName:       session.FileName,
		FileSize:       session.FileSize,
		ReceivedChunks: len(received),
		TotalChunks:    session.TotalChunks,
		Progress:       progressPercent(len(received), session.TotalChunks),
		CreatedAt:      session.CreatedAt,
		ExpiresAt:      session.ExpiresAt,
	}, nil
}

// Cancel aborts an in-flight session and purges its partial chunks.
func (m *Manager) Cancel(ctx context.Context, uploadID, token string) error {
	session, err := m.repo.GetByID(ctx, uploadID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if err := m.verifyToken(uploadID, token, session); err != nil {
		return err
	}

	if err := m.chunks.Purge(uploadID); err != nil {
		slog.Warn("could not purge chunks", "upload_id", uploadID, "error", err)
	}
	if err := m.repo.UpdateStatus(ctx, uploadID, models.UploadStatusCancelled); err != nil {
		return err
	}

	slog.Info("upload cancelled", "upload_id", uploadID)
	return nil
}

// CleanupExpired purges sessions past their TTL along with their
// partial chunks. The reaper job calls it periodically.
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	expired, err := m.repo.ListExpired(ctx, m.now())
	if err != nil {
		return 0, err
	}

	cleaned := 0
	for _, session := range expired {
		if err := m.chunks.Purge(session.UploadID); err != nil {
			slog.Warn("could not purge chunks", "upload_id", session.UploadID, "error", err)
			continue
		}
		if err := m.repo.Remove(ctx, session.UploadID); err != nil {
			slog.Warn("could not remove expired session", "upload_id", session.UploadID, "error", err)
			continue
		}
		cleaned++
	}

	if cleaned > 0 {
		slog.Info("expired upload sessions cleaned", "count", cleaned)
	}
	return cleaned, nil
}

// authorize loads the session and enforces expiry, liveness, and the
// capability token, in that order.
func (m *Manager) authorize(ctx context.Context, uploadID, token string) (*models.UploadSession, error) {
	session, err := m.repo.GetByID(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.Expired(m.now()) {
		return nil, ErrSessionExpired
	}
	if session.Status != models.UploadStatusUploading {
		return nil, ErrSessionClosed
	}
	if err := m.verifyToken(uploadID, token, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (m *Manager) verifyToken(uploadID, token string, session *models.UploadSession) error {
	claims, err := utils.ValidateUploadToken(m.secretKey, token)
	if err != nil || claims.UploadID != uploadID || session.Token != token {
		return ErrInvalidToken
	}
	return nil
}

func (m *Manager) mirrorArtifact(ctx context.Context, key, path, contentType string) error {
	if m.artifacts == nil || !m.artifacts.Configured() {
		return nil
	}
	return m.artifacts.UploadFile(ctx, key, path, contentType)
}

// progressPercent rounds to the nearest integer and never exceeds 100,
// so a duplicate chunk re-report cannot overshoot.
func progressPercent(received, total int) int {
	if total <= 0 {
		return 0
	}
	percent := int(math.Round(float64(received) / float64(total) * 100))
	if percent > 100 {
		percent = 100
	}
	return percent
}

func missingChunks(received []int, total int) []int {
	present := make(map[int]bool, len(received))
	for _, idx := range received {
		present[idx] = true
	}
	var missing []int
	for i := 0; i < total; i++ {
		if !present[i] {
			missing = append(missing, i)
		}
	}
	return missing
}

func sniffContentType(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return "application/octet-stream"
	}
	return kind.MIME.Value
}

func sniffFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, 262)
	n, err := f.Read(head)
	if err != nil && n == 0 {
		return "", err
	}
	return sniffContentType(head[:n]), nil
}
