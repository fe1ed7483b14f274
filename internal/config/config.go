package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Cache
	RedisURL    string
	CacheExpire time.Duration // ユーザー/画像キャッシュのTTL

	// Auth
	SecretKeyLength int // 署名シークレットのバイト長。再起動で再生成され全トークンが失効する

	// Rate Limit
	RateLimitGeneral int // 認証済みAPI全般（req/min/user）
	RateLimitAuth    int // 認証ルート（req/min/IP）

	// Mail
	MailServer   string
	MailPort     int
	MailUsername string
	MailPassword string
	MailFrom     string
	MailFromName string

	// Cloudinary
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.CloudinaryCloudName = os.Getenv("CLOUDINARY_CLOUD_NAME")
	if cfg.CloudinaryCloudName == "" {
		missing = append(missing, "CLOUDINARY_CLOUD_NAME")
	}

	cfg.CloudinaryAPIKey = os.Getenv("CLOUDINARY_API_KEY")
	if cfg.CloudinaryAPIKey == "" {
		missing = append(missing, "CLOUDINARY_API_KEY")
	}

	cfg.CloudinaryAPISecret = os.Getenv("CLOUDINARY_API_SECRET")
	if cfg.CloudinaryAPISecret == "" {
		missing = append(missing, "CLOUDINARY_API_SECRET")
	}

	cfg.MailServer = os.Getenv("MAIL_SERVER")
	if cfg.MailServer == "" {
		missing = append(missing, "MAIL_SERVER")
	}

	cfg.MailUsername = os.Getenv("MAIL_USERNAME")
	if cfg.MailUsername == "" {
		missing = append(missing, "MAIL_USERNAME")
	}

	cfg.MailPassword = os.Getenv("MAIL_PASSWORD")
	if cfg.MailPassword == "" {
		missing = append(missing, "MAIL_PASSWORD")
	}

	cfg.MailFrom = os.Getenv("MAIL_FROM")
	if cfg.MailFrom == "" {
		missing = append(missing, "MAIL_FROM")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.CacheExpire = getEnvDuration("CACHE_EXPIRE", time.Hour)
	cfg.SecretKeyLength = getEnvInt("SECRET_KEY_LENGTH", 64)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.MailPort = getEnvInt("MAIL_PORT", 465)
	cfg.MailFromName = getEnvString("MAIL_FROM_NAME", "PhotoShare")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
