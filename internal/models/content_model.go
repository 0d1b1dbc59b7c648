package models

import (
	"strings"
	"time"
)

type ScheduledContent struct {
	ID            int64           `db:"id" json:"id"`
	Platform      string          `db:"platform" json:"platform"`
	Message       string          `db:"message" json:"message"`
	ScheduledTime time.Time       `db:"scheduled_time" json:"scheduled_time"`
	Status        string          `db:"status" json:"status"`
	FailureCause  string          `db:"failure_cause" json:"failure_cause,omitempty"`
	Metadata      ContentMetadata `db:"metadata_json" json:"metadata"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

type ContentMetadata struct {
	HasMedia    bool   `json:"has_media,omitempty"`
	MediaPath   string `json:"media_path,omitempty"`
	MediaType   string `json:"media_type,omitempty"`
	AccountName string `json:"account_name,omitempty"`
}

const (
	ContentStatusPending   = "pending"
	ContentStatusSent      = "sent"
	ContentStatusFailed    = "failed"
	ContentStatusCancelled = "cancelled"

	// Reserved for a future multi-instance claim extension; never
	// written by the single-instance scheduler.
	ContentStatusClaimed = "claimed"
)

const (
	PlatformTwitter   = "twitter"
	PlatformTelegram  = "telegram"
	PlatformInstagram = "instagram"
	PlatformTiktok    = "tiktok"
	PlatformAll       = "all"
)

// FanoutPlatforms is the fixed list a platform of "all" expands to.
var FanoutPlatforms = []string{PlatformTwitter, PlatformTelegram, PlatformInstagram, PlatformTiktok}

const (
	MediaTypePhoto    = "photo"
	MediaTypeVideo    = "video"
	MediaTypeDocument = "document"
)

// MediaTypeFor maps a MIME content type onto the coarse media classes
// platforms care about.
func MediaTypeFor(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return MediaTypePhoto
	case strings.HasPrefix(contentType, "video/"):
		return MediaTypeVideo
	default:
		return MediaTypeDocument
	}
}

func IsValidPlatform(platform string) bool {
	switch platform {
	case PlatformTwitter, PlatformTelegram, PlatformInstagram, PlatformTiktok, PlatformAll:
		return true
	}
	return false
}

func IsTerminalStatus(status string) bool {
	switch status {
	case ContentStatusSent, ContentStatusFailed, ContentStatusCancelled:
		return true
	}
	return false
}
