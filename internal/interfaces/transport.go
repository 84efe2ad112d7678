package interfaces

import (
	"context"
	"time"

	"github.com/kaitorecca/guardian-redact/internal/models"
)

// FileTransport moves bytes in and out of the review session
type FileTransport interface {
	PersistTemporary(ctx context.Context, name string, data []byte) (string, error)
	ExportDocument(ctx context.Context, pathRef string, accepted []models.DocumentSuggestion, suggestedName string) (string, error)
	ExportAudio(ctx context.Context, pathRef string, actions []models.RedactionAction, outputName string) (string, error)
}

// TempFileStorage records temporary files so they can be purged later
type TempFileStorage interface {
	Save(ctx context.Context, file *models.TempFile) error
	Get(ctx context.Context, id string) (*models.TempFile, error)
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]models.TempFile, error)
	Delete(ctx context.Context, id string) error
}
