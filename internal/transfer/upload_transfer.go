package transfer

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type UploadTokenClaims struct {
	UploadID string `json:"upload_id"`
	jwt.RegisteredClaims
}

type UploadInit struct {
	FileName    string `json:"file_name" validate:"required"`
	FileSize    int64  `json:"file_size" validate:"required,gt=0"`
	FileType    string `json:"file_type"`
	TotalChunks int    `json:"total_chunks" validate:"required,gt=0"`
	UploadID    string `json:"upload_id"`
}

type UploadInitResult struct {
	UploadID    string    `json:"upload_id"`
	UploadToken string    `json:"upload_token"`
	ChunkSize   int64     `json:"chunk_size"`
	TotalChunks int       `json:"total_chunks"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type UploadChunkResult struct {
	UploadID       string `json:"upload_id"`
	ChunkIndex     int    `json:"chunk_index"`
	ReceivedChunks int    `json:"received_chunks"`
	TotalChunks    int    `json:"total_chunks"`
	Progress       int    `json:"progress"`
}

type UploadCompleteResult struct {
	UploadID string `json:"upload_id"`
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path"`
	FileType string `json:"file_type"`
}

type UploadStatus struct {
	UploadID       string    `json:"upload_id"`
	Status         string    `json:"status"`
	FileName       string    `json:"file_name"`
	FileSize       int64     `json:"file_size"`
	ReceivedChunks int       `json:"received_chunks"`
	TotalChunks    int       `json:"total_chunks"`
	Progress       int       `json:"progress"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}
