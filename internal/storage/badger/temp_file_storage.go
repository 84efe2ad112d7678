package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/kaitorecca/guardian-redact/internal/interfaces"
	"github.com/kaitorecca/guardian-redact/internal/models"
)

// ErrTempFileNotFound is returned for an unknown temp file id
var ErrTempFileNotFound = errors.New("temp file not found")

// TempFileStorage records uploaded files held by the transport
type TempFileStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

var _ interfaces.TempFileStorage = (*TempFileStorage)(nil)

func NewTempFileStorage(db *BadgerDB, logger arbor.ILogger) *TempFileStorage {
	return &TempFileStorage{db: db, logger: logger}
}

func (s *TempFileStorage) Save(ctx context.Context, file *models.TempFile) error {
	if file.ID == "" {
		return fmt.Errorf("temp file id is required")
	}
	if err := s.db.Store().Upsert(file.ID, file); err != nil {
		return fmt.Errorf("failed to save temp file: %w", err)
	}
	return nil
}

func (s *TempFileStorage) Get(ctx context.Context, id string) (*models.TempFile, error) {
	var file models.TempFile
	err := s.db.Store().Get(id, &file)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, ErrTempFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get temp file: %w", err)
	}
	return &file, nil
}

// ListOlderThan returns files created before cutoff, oldest first
func (s *TempFileStorage) ListOlderThan(ctx context.Context, cutoff time.Time) ([]models.TempFile, error) {
	var files []models.TempFile
	err := s.db.Store().Find(&files, badgerhold.Where("CreatedAt").Lt(cutoff).SortBy("CreatedAt"))
	if err != nil {
		return nil, fmt.Errorf("failed to list temp files: %w", err)
	}
	return files, nil
}

func (s *TempFileStorage) Delete(ctx context.Context, id string) error {
	err := s.db.Store().Delete(id, &models.TempFile{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return ErrTempFileNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete temp file: %w", err)
	}
	return nil
}
