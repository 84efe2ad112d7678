package storage

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/common"
	"github.com/kaitorecca/guardian-redact/internal/interfaces"
	"github.com/kaitorecca/guardian-redact/internal/storage/badger"
)

// NewStorageManager opens the Badger store and loads the optional keys file
func NewStorageManager(logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	manager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, err
	}

	if config.Storage.KeysFile != "" {
		if _, err := manager.LoadKeysFile(context.Background(), config.Storage.KeysFile); err != nil {
			logger.Warn().Err(err).Str("file", config.Storage.KeysFile).Msg("Failed to load keys file")
		}
	}
	return manager, nil
}
