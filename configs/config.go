package config

import (
	"os"
	"strconv"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
}

type Upload struct {
	ChunkDir        string
	MediaDir        string
	ScheduledDir    string
	ChunkSize       int64
	SimpleThreshold int64
	SessionTTLHours int
}

type Config struct {
	ListenAddr       string
	PostgresURI      string
	SecretKey        string
	TwitterWebhook   string
	TelegramWebhook  string
	InstagramWebhook string
	TiktokWebhook    string
	Upload           Upload
	R2               R2
}

func LoadConfig() *Config {
	return &Config{
		ListenAddr:       getEnv("LISTEN_ADDR", ":3000"),
		PostgresURI:      getEnv("POSTGRES_URI", ""),
		SecretKey:        getEnv("SECRET_KEY", ""),
		TwitterWebhook:   getEnv("TWITTER_WEBHOOK_URL", ""),
		TelegramWebhook:  getEnv("TELEGRAM_WEBHOOK_URL", ""),
		InstagramWebhook: getEnv("INSTAGRAM_WEBHOOK_URL", ""),
		TiktokWebhook:    getEnv("TIKTOK_WEBHOOK_URL", ""),
		Upload: Upload{
			ChunkDir:        getEnv("UPLOAD_CHUNK_DIR", "./uploads/temp/chunks"),
			MediaDir:        getEnv("UPLOAD_MEDIA_DIR", "./uploads/media"),
			ScheduledDir:    getEnv("SCHEDULED_MEDIA_DIR", "./uploads/scheduled"),
			ChunkSize:       getEnvInt64("UPLOAD_CHUNK_SIZE", 5*1024*1024),
			SimpleThreshold: getEnvInt64("UPLOAD_SIMPLE_THRESHOLD", 10*1024*1024),
			SessionTTLHours: getEnvInt("UPLOAD_SESSION_TTL_HOURS", 24),
		},
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}
