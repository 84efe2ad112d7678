package badger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/common"
	"github.com/kaitorecca/guardian-redact/internal/interfaces"
	"github.com/kaitorecca/guardian-redact/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(arbor.NewNoOpLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func TestKVStorage(t *testing.T) {
	kv := newTestManager(t).KeyValueStorage()
	ctx := context.Background()

	_, err := kv.Get(ctx, "gemini_api_key")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	require.NoError(t, kv.Set(ctx, "Gemini_API_Key ", "first", "test"))
	value, err := kv.Get(ctx, "gemini_api_key")
	require.NoError(t, err)
	assert.Equal(t, "first", value)

	require.NoError(t, kv.Set(ctx, "gemini_api_key", "second", "test"))
	require.NoError(t, kv.Set(ctx, "anthropic_api_key", "claude", "test"))

	pairs, err := kv.List(ctx)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "anthropic_api_key", pairs[0].Key)
	assert.Equal(t, "second", pairs[1].Value)
	assert.False(t, pairs[1].CreatedAt.After(pairs[1].UpdatedAt))

	require.NoError(t, kv.Delete(ctx, "GEMINI_API_KEY"))
	assert.ErrorIs(t, kv.Delete(ctx, "gemini_api_key"), interfaces.ErrKeyNotFound)
}

func TestKVStorage_Upsert(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	isNew, err := manager.kv.Upsert(ctx, "key", "a", "")
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = manager.kv.Upsert(ctx, "KEY", "b", "")
	require.NoError(t, err)
	assert.False(t, isNew)

	_, err = manager.kv.Upsert(ctx, "  ", "c", "")
	assert.Error(t, err)
}

func TestTempFileStorage(t *testing.T) {
	files := newTestManager(t).TempFileStorage()
	ctx := context.Background()
	now := time.Now()

	for i, age := range []time.Duration{48 * time.Hour, 30 * time.Hour, time.Hour} {
		require.NoError(t, files.Save(ctx, &models.TempFile{
			ID:        []string{"old", "older-ish", "fresh"}[i],
			Name:      "upload.pdf",
			Path:      "/tmp/upload.pdf",
			Size:      100,
			CreatedAt: now.Add(-age),
		}))
	}

	got, err := files.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, "upload.pdf", got.Name)

	expired, err := files.ListOlderThan(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, "old", expired[0].ID)
	assert.Equal(t, "older-ish", expired[1].ID)

	require.NoError(t, files.Delete(ctx, "old"))
	_, err = files.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrTempFileNotFound)
	assert.ErrorIs(t, files.Delete(ctx, "old"), ErrTempFileNotFound)

	assert.Error(t, files.Save(ctx, &models.TempFile{}))
}

func TestLoadKeysFile(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "keys.env")
	require.NoError(t, os.WriteFile(path, []byte("# provider keys\nGEMINI_API_KEY=\"g-123\"\nanthropic_api_key=a-456\nEMPTY=\n"), 0600))

	loaded, err := manager.LoadKeysFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)

	value, err := manager.KeyValueStorage().Get(ctx, "gemini_api_key")
	require.NoError(t, err)
	assert.Equal(t, "g-123", value)

	loaded, err = manager.LoadKeysFile(ctx, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Zero(t, loaded)
}

func TestNewBadgerDB_ResetOnStartup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	logger := arbor.NewNoOpLogger()
	ctx := context.Background()

	first, err := NewManager(logger, &common.BadgerConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, first.KeyValueStorage().Set(ctx, "k", "v", ""))
	require.NoError(t, first.Close())

	second, err := NewManager(logger, &common.BadgerConfig{Path: path, ResetOnStartup: true})
	require.NoError(t, err)
	defer second.Close()

	_, err = second.KeyValueStorage().Get(ctx, "k")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}
