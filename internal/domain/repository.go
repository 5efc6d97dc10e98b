package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ExtractionClient sends the label photo to the vision model and returns its raw completion
type ExtractionClient interface {
	Extract(ctx context.Context, prompt, imageDataURI string) (string, error)
}

// SummaryClient asks the model for a verdict on an already scored product
type SummaryClient interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// HazardRepository reads the hazard reference set.
// Implementations must return records in a stable order; matching depends on it.
type HazardRepository interface {
	ListHazards(ctx context.Context) ([]HazardRecord, error)
}

// AnalysisRepository persists analysis results. Records are never updated.
type AnalysisRepository interface {
	Insert(ctx context.Context, record *AnalysisRecord) (string, error)
	GetByID(ctx context.Context, id, userID string) (*AnalysisRecord, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]AnalysisRecord, error)
}

// EventPublisher notifies downstream consumers of stored analyses
type EventPublisher interface {
	PublishAnalysisCompleted(ctx context.Context, event *AnalysisCompletedEvent) error
}

// TokenVerifier resolves a bearer credential to a verified user id
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}
