package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/kaitorecca/guardian-redact/internal/interfaces"
)

// KVStorage keeps provider keys and small settings, keyed case-insensitively
type KVStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

var _ interfaces.KeyValueStorage = (*KVStorage)(nil)

func NewKVStorage(db *BadgerDB, logger arbor.ILogger) *KVStorage {
	return &KVStorage{db: db, logger: logger}
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Get returns interfaces.ErrKeyNotFound when the key is missing
func (s *KVStorage) Get(ctx context.Context, key string) (string, error) {
	var pair interfaces.KeyValuePair
	err := s.db.Store().Get(normalizeKey(key), &pair)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return "", interfaces.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get key: %w", err)
	}
	return pair.Value, nil
}

// Set inserts or updates a pair, keeping the original creation time
func (s *KVStorage) Set(ctx context.Context, key string, value string, description string) error {
	_, err := s.Upsert(ctx, key, value, description)
	return err
}

// Upsert is Set that also reports whether the key was new
func (s *KVStorage) Upsert(ctx context.Context, key string, value string, description string) (bool, error) {
	normalized := normalizeKey(key)
	if normalized == "" {
		return false, fmt.Errorf("key must not be empty")
	}

	now := time.Now()
	pair := interfaces.KeyValuePair{
		Key:         normalized,
		Value:       value,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var existing interfaces.KeyValuePair
	err := s.db.Store().Get(normalized, &existing)
	isNew := errors.Is(err, badgerhold.ErrNotFound)
	if err != nil && !isNew {
		return false, fmt.Errorf("failed to check key existence: %w", err)
	}
	if !isNew {
		pair.CreatedAt = existing.CreatedAt
	}

	if err := s.db.Store().Upsert(normalized, &pair); err != nil {
		return false, fmt.Errorf("failed to upsert key/value: %w", err)
	}
	return isNew, nil
}

// Delete returns interfaces.ErrKeyNotFound when the key is missing
func (s *KVStorage) Delete(ctx context.Context, key string) error {
	normalized := normalizeKey(key)

	var existing interfaces.KeyValuePair
	if err := s.db.Store().Get(normalized, &existing); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return interfaces.ErrKeyNotFound
		}
		return fmt.Errorf("failed to get key: %w", err)
	}

	if err := s.db.Store().Delete(normalized, &interfaces.KeyValuePair{}); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// List returns all pairs, most recently updated first
func (s *KVStorage) List(ctx context.Context) ([]interfaces.KeyValuePair, error) {
	var pairs []interfaces.KeyValuePair
	err := s.db.Store().Find(&pairs, badgerhold.Where("Key").Ne("").SortBy("UpdatedAt").Reverse())
	if err != nil {
		return nil, fmt.Errorf("failed to list key/value pairs: %w", err)
	}
	return pairs, nil
}
