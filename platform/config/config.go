// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// SchedulerConfig provides Redis and asynq settings for the task queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetReviewSweepCron() string
	GetSentimentSweepCron() string
}

// WhatsAppConfig provides settings for the WAAPI client.
type WhatsAppConfig interface {
	GetWhatsAppBaseURL() string
	GetPhoneDefaultRegion() string
}

// TranscriptionConfig provides settings for the LemonFox transcription API.
type TranscriptionConfig interface {
	GetLemonFoxAPIKey() string
	GetLemonFoxBaseURL() string
	GetTranscriptionLanguage() string
	GetCollaboratorTimeout() time.Duration
}

// LLMConfig provides settings for the Groq chat completions API.
type LLMConfig interface {
	GetGroqAPIKey() string
	GetGroqBaseURL() string
	GetGroqModel() string
	GetCollaboratorTimeout() time.Duration
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketAudio() string
	IsMinIOEnabled() bool
}

// ReviewConfig provides the conversation engine's timing knobs.
type ReviewConfig interface {
	GetReviewCooldown() time.Duration
	GetStepTimeout() time.Duration
	GetOrderLockTTL() time.Duration
}

// MetricsConfig provides settings for the Prometheus listener of worker processes.
type MetricsConfig interface {
	GetMetricsAddr() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	HTTPAddr              string
	DatabaseURL           string
	CORSAllowAll          bool
	CORSOrigins           []string
	RedisURL              string
	RedisTLSInsecure      bool
	AsynqQueue            string
	AsynqConcurrency      int
	ReviewSweepCron       string
	SentimentSweepCron    string
	WhatsAppBaseURL       string
	PhoneDefaultRegion    string
	LemonFoxAPIKey        string
	LemonFoxBaseURL       string
	TranscriptionLanguage string
	GroqAPIKey            string
	GroqBaseURL           string
	GroqModel             string
	CollaboratorTimeout   time.Duration
	MinIOEndpoint         string
	MinIOAccessKey        string
	MinIOSecretKey        string
	MinIOUseSSL           bool
	MinIOMaxFileSize      int64
	MinioBucketAudio      string
	ReviewCooldown        time.Duration
	StepTimeout           time.Duration
	OrderLockTTL          time.Duration
	MetricsAddr           string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string           { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool     { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string     { return c.AsynqQueue }
func (c *Config) GetAsynqConcurrency() int      { return c.AsynqConcurrency }
func (c *Config) GetReviewSweepCron() string    { return c.ReviewSweepCron }
func (c *Config) GetSentimentSweepCron() string { return c.SentimentSweepCron }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppBaseURL() string    { return c.WhatsAppBaseURL }
func (c *Config) GetPhoneDefaultRegion() string { return c.PhoneDefaultRegion }

// TranscriptionConfig implementation
func (c *Config) GetLemonFoxAPIKey() string        { return c.LemonFoxAPIKey }
func (c *Config) GetLemonFoxBaseURL() string       { return c.LemonFoxBaseURL }
func (c *Config) GetTranscriptionLanguage() string { return c.TranscriptionLanguage }

// LLMConfig implementation
func (c *Config) GetGroqAPIKey() string                  { return c.GroqAPIKey }
func (c *Config) GetGroqBaseURL() string                 { return c.GroqBaseURL }
func (c *Config) GetGroqModel() string                   { return c.GroqModel }
func (c *Config) GetCollaboratorTimeout() time.Duration { return c.CollaboratorTimeout }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string   { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string  { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string  { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool       { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64 { return c.MinIOMaxFileSize }
func (c *Config) GetMinioBucketAudio() string {
	return c.MinioBucketAudio
}
func (c *Config) IsMinIOEnabled() bool { return c.MinIOEndpoint != "" }

// ReviewConfig implementation
func (c *Config) GetReviewCooldown() time.Duration { return c.ReviewCooldown }
func (c *Config) GetStepTimeout() time.Duration    { return c.StepTimeout }
func (c *Config) GetOrderLockTTL() time.Duration   { return c.OrderLockTTL }

// MetricsConfig implementation
func (c *Config) GetMetricsAddr() string { return c.MetricsAddr }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueue:            getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		ReviewSweepCron:       getEnv("REVIEW_SWEEP_CRON", "*/30 * * * *"),
		SentimentSweepCron:    getEnv("SENTIMENT_SWEEP_CRON", "@every 1h"),
		WhatsAppBaseURL:       getEnv("WAAPI_BASE_URL", "https://waapi.app/api/v1"),
		PhoneDefaultRegion:    strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", "PK")),
		LemonFoxAPIKey:        getEnv("LEMONFOX_API_KEY", ""),
		LemonFoxBaseURL:       getEnv("LEMONFOX_BASE_URL", "https://api.lemonfox.ai/v1"),
		TranscriptionLanguage: getEnv("TRANSCRIPTION_LANGUAGE", "english"),
		GroqAPIKey:            getEnv("GROQ_API_KEY", ""),
		GroqBaseURL:           getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		GroqModel:             getEnv("GROQ_MODEL", "llama3-8b-8192"),
		CollaboratorTimeout:   mustDuration(getEnv("COLLABORATOR_TIMEOUT", "20s")),
		MinIOEndpoint:         getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:        getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:        getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:           strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinIOMaxFileSize:      mustInt64(getEnv("MINIO_MAX_FILE_SIZE", "16777216")),
		MinioBucketAudio:      getEnv("MINIO_BUCKET_AUDIO", "review-audio"),
		ReviewCooldown:        mustDuration(getEnv("REVIEW_COOLDOWN", "6h")),
		StepTimeout:           mustDuration(getEnv("STEP_TIMEOUT", "90s")),
		OrderLockTTL:          mustDuration(getEnv("ORDER_LOCK_TTL", "2m")),
		MetricsAddr:           getEnv("METRICS_ADDR", ":9091"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.GroqAPIKey == "" {
		return nil, fmt.Errorf("GROQ_API_KEY is required")
	}
	if cfg.ReviewCooldown <= 0 {
		return nil, fmt.Errorf("REVIEW_COOLDOWN must be a positive duration")
	}
	if cfg.OrderLockTTL <= cfg.StepTimeout {
		return nil, fmt.Errorf("ORDER_LOCK_TTL must exceed STEP_TIMEOUT")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
