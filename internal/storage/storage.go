// Package storage defines the persistence interface for extraction records.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/doctext/internal/models"
)

// ErrNotFound is returned when no extraction matches the lookup.
var ErrNotFound = errors.New("extraction not found")

// Storage defines extraction record persistence operations.
type Storage interface {
	CreateExtraction(ctx context.Context, e *models.Extraction) error
	GetExtraction(ctx context.Context, id string) (*models.Extraction, error)
	// FindByContentID returns the newest successful extraction of the given content.
	FindByContentID(ctx context.Context, contentID string) (*models.Extraction, error)
	ListExtractions(ctx context.Context, offset, limit int) ([]*models.Extraction, error)
	DeleteExtraction(ctx context.Context, id string) error

	// Stats
	CountExtractions(ctx context.Context) (int64, error)

	Close() error
}
