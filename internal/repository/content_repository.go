package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/crosspost-io/crosspost/internal/models"
)

type ContentRepository interface {
	Create(ctx context.Context, content *models.ScheduledContent) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.ScheduledContent, error)
	List(ctx context.Context) ([]*models.ScheduledContent, error)
	ListPending(ctx context.Context) ([]*models.ScheduledContent, error)
	UpdateStatus(ctx context.Context, id int64, status, cause string) error
}

type contentRepository struct {
	db *sql.DB
}

func NewContentRepository(db *sql.DB) ContentRepository {
	return &contentRepository{db: db}
}

func (r *contentRepository) Create(ctx context.Context, content *models.ScheduledContent) (int64, error) {
	query := `
		INSERT INTO scheduled_contents (platform, message, scheduled_time, status, metadata_json)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	metadata, err := json.Marshal(content.Metadata)
	if err != nil {
		slog.Error(err.Error())
		return 0, err
	}

	err = r.db.QueryRowContext(ctx, query,
		content.Platform, content.Message, content.ScheduledTime, content.Status, metadata).
		Scan(&content.ID, &content.CreatedAt)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return content.ID, nil
}

func (r *contentRepository) GetByID(ctx context.Context, id int64) (*models.ScheduledContent, error) {
	query := `SELECT id, platform, message, scheduled_time, status, failure_cause, metadata_json, created_at
		FROM scheduled_contents WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	content, err := scanContent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return content, nil
}

func (r *contentRepository) List(ctx context.Context) ([]*models.ScheduledContent, error) {
	query := `SELECT id, platform, message, scheduled_time, status, failure_cause, metadata_json, created_at
		FROM scheduled_contents ORDER BY created_at`

	return r.queryContents(ctx, query)
}

// ListPending returns every pending record, past-due included, in creation
// order so restored timers fire in a stable order.
func (r *contentRepository) ListPending(ctx context.Context) ([]*models.ScheduledContent, error) {
	query := `SELECT id, platform, message, scheduled_time, status, failure_cause, metadata_json, created_at
		FROM scheduled_contents WHERE status = $1 ORDER BY created_at`

	return r.queryContents(ctx, query, models.ContentStatusPending)
}

func (r *contentRepository) UpdateStatus(ctx context.Context, id int64, status, cause string) error {
	query := `
		UPDATE scheduled_contents
		SET status = $1,
			failure_cause = $2,
			updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, status, cause, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *contentRepository) queryContents(ctx context.Context, query string, args ...any) ([]*models.ScheduledContent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var contents []*models.ScheduledContent
	for rows.Next() {
		content, err := scanContent(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		contents = append(contents, content)
	}
	return contents, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContent(row rowScanner) (*models.ScheduledContent, error) {
	var content models.ScheduledContent
	var metadata []byte
	err := row.Scan(&content.ID, &content.Platform, &content.Message, &content.ScheduledTime,
		&content.Status, &content.FailureCause, &metadata, &content.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &content.Metadata); err != nil {
			return nil, err
		}
	}
	return &content, nil
}
