package badger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// LoadKeysFile stores every KEY=value pair of a .env style file in the KV store.
// A missing file is not an error.
func (m *Manager) LoadKeysFile(ctx context.Context, path string) (int, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		m.logger.Debug().Str("file", path).Msg("Keys file does not exist, skipping")
		return 0, nil
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return 0, fmt.Errorf("failed to parse keys file %s: %w", path, err)
	}

	loaded := 0
	for key, value := range values {
		if value == "" {
			m.logger.Warn().Str("key", key).Msg("Skipping key with empty value")
			continue
		}
		isNew, err := m.kv.Upsert(ctx, key, value, "Loaded from keys file")
		if err != nil {
			return loaded, fmt.Errorf("failed to store key %s: %w", key, err)
		}
		m.logger.Debug().Str("key", normalizeKey(key)).Bool("new", isNew).Msg("Loaded key")
		loaded++
	}

	m.logger.Info().Str("file", path).Int("loaded", loaded).Msg("Loaded keys file")
	return loaded, nil
}
