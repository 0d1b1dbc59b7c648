package models

import "time"

type UploadSession struct {
	UploadID    string    `db:"upload_id" json:"upload_id"`
	FileName    string    `db:"file_name" json:"file_name"`
	FileSize    int64     `db:"file_size" json:"file_size"`
	FileType    string    `db:"file_type" json:"file_type"`
	TotalChunks int       `db:"total_chunks" json:"total_chunks"`
	Status      string    `db:"status" json:"status"`
	Token       string    `db:"token" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	ExpiresAt   time.Time `db:"expires_at" json:"expires_at"`
}

const (
	UploadStatusUploading = "uploading"
	UploadStatusCompleted = "completed"
	UploadStatusCancelled = "cancelled"
)

func (s *UploadSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
