// Package storage keeps customer voice notes in S3-compatible object storage.
package storage

import (
	"context"
	"time"
)

// PresignedURL is a time-limited link to a stored object.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AudioStore stores and links voice notes.
type AudioStore interface {
	// PutAudio stores data under key. The key is chosen by the caller.
	PutAudio(ctx context.Context, key, contentType string, data []byte) error

	// DeleteAudio removes a stored voice note.
	DeleteAudio(ctx context.Context, key string) error

	// AudioURL returns a presigned download link for a stored voice note.
	AudioURL(ctx context.Context, key string) (*PresignedURL, error)

	// EnsureBucketExists creates the audio bucket if it doesn't exist.
	EnsureBucketExists(ctx context.Context) error
}

// Config defines the configuration interface for storage.
type Config interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketAudio() string
	IsMinIOEnabled() bool
}
