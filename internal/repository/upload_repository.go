package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/crosspost-io/crosspost/internal/models"
)

type UploadSessionRepository interface {
	Create(ctx context.Context, session *models.UploadSession) error
	GetByID(ctx context.Context, uploadID string) (*models.UploadSession, error)
	UpdateStatus(ctx context.Context, uploadID, status string) error
	ListExpired(ctx context.Context, now time.Time) ([]*models.UploadSession, error)
	Remove(ctx context.Context, uploadID string) error
}

type uploadSessionRepository struct {
	db *sql.DB
}

func NewUploadSessionRepository(db *sql.DB) UploadSessionRepository {
	return &uploadSessionRepository{db: db}
}

func (r *uploadSessionRepository) Create(ctx context.Context, session *models.UploadSession) error {
	query := `
		INSERT INTO chunked_uploads (upload_id, file_name, file_size, file_type, total_chunks, status, token, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		session.UploadID, session.FileName, session.FileSize, session.FileType,
		session.TotalChunks, session.Status, session.Token, session.ExpiresAt).
		Scan(&session.CreatedAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}

func (r *uploadSessionRepository) GetByID(ctx context.Context, uploadID string) (*models.UploadSession, error) {
	query := `SELECT upload_id, file_name, file_size, file_type, total_chunks, status, token, created_at, expires_at
		FROM chunked_uploads WHERE upload_id = $1`
	row := r.db.QueryRowContext(ctx, query, uploadID)

	var session models.UploadSession
	err := row.Scan(&session.UploadID, &session.FileName, &session.FileSize, &session.FileType,
		&session.TotalChunks, &session.Status, &session.Token, &session.CreatedAt, &session.ExpiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &session, nil
}

func (r *uploadSessionRepository) UpdateStatus(ctx context.Context, uploadID, status string) error {
	query := `UPDATE chunked_uploads SET status = $1 WHERE upload_id = $2`
	_, err := r.db.ExecContext(ctx, query, status, uploadID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *uploadSessionRepository) ListExpired(ctx context.Context, now time.Time) ([]*models.UploadSession, error) {
	query := `SELECT upload_id, file_name, file_size, file_type, total_chunks, status, token, created_at, expires_at
		FROM chunked_uploads WHERE expires_at < $1 AND status = $2`

	rows, err := r.db.QueryContext(ctx, query, now, models.UploadStatusUploading)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.UploadSession
	for rows.Next() {
		var session models.UploadSession
		err := rows.Scan(&session.UploadID, &session.FileName, &session.FileSize, &session.FileType,
			&session.TotalChunks, &session.Status, &session.Token, &session.CreatedAt, &session.ExpiresAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		sessions = append(sessions, &session)
	}
	return sessions, rows.Err()
}

func (r *uploadSessionRepository) Remove(ctx context.Context, uploadID string) error {
	query := `DELETE FROM chunked_uploads WHERE upload_id = $1`
	_, err := r.db.ExecContext(ctx, query, uploadID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
