package common

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaitorecca/guardian-redact/internal/interfaces"
)

func TestLoadFromFiles_MergesInOrder(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	local := filepath.Join(dir, "local.toml")

	require.NoError(t, os.WriteFile(base, []byte(`
[server]
port = 9000
host = "0.0.0.0"

[review]
default_profile = "deep"
overlay_padding = 4.0
`), 0644))
	require.NoError(t, os.WriteFile(local, []byte(`
[server]
port = 9100

[llm]
default_provider = "claude"
`), 0644))

	config, err := LoadFromFiles(base, local)
	require.NoError(t, err)

	assert.Equal(t, 9100, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, "deep", config.Review.DefaultProfile)
	assert.Equal(t, 4.0, config.Review.OverlayPadding)
	assert.Equal(t, LLMProviderClaude, config.LLM.DefaultProvider)
	// Untouched sections keep defaults
	assert.Equal(t, "24h", config.Transport.MaxAge)
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadFromFiles_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 9000\n"), 0644))

	t.Setenv("GUARDIAN_SERVER_PORT", "9999")
	t.Setenv("GUARDIAN_LOG_OUTPUT", "stdout, file ,")
	t.Setenv("GUARDIAN_OVERLAY_PADDING", "0")

	config, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, config.Server.Port)
	assert.Equal(t, []string{"stdout", "file"}, config.Logging.Output)
	assert.Equal(t, 0.0, config.Review.OverlayPadding)
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()
	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 8085, config.Server.Port)

	ApplyFlagOverrides(config, 7000, "example.local")
	assert.Equal(t, 7000, config.Server.Port)
	assert.Equal(t, "example.local", config.Server.Host)
}

type stubKV struct {
	values map[string]string
}

func (s *stubKV) Get(ctx context.Context, key string) (string, error) {
	if v, ok := s.values[key]; ok {
		return v, nil
	}
	return "", interfaces.ErrKeyNotFound
}
func (s *stubKV) Set(ctx context.Context, key, value, description string) error { return nil }
func (s *stubKV) Delete(ctx context.Context, key string) error                  { return nil }
func (s *stubKV) List(ctx context.Context) ([]interfaces.KeyValuePair, error)   { return nil, nil }

func TestResolveAPIKey(t *testing.T) {
	ctx := context.Background()
	kv := &stubKV{values: map[string]string{"gemini_api_key": "from-kv"}}

	t.Run("env wins", func(t *testing.T) {
		t.Setenv("GUARDIAN_GEMINI_API_KEY", "from-env")
		key, err := ResolveAPIKey(ctx, kv, "gemini_api_key", "from-config")
		require.NoError(t, err)
		assert.Equal(t, "from-env", key)
	})

	t.Run("kv before config", func(t *testing.T) {
		t.Setenv("GUARDIAN_GEMINI_API_KEY", "")
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("GOOGLE_API_KEY", "")
		key, err := ResolveAPIKey(ctx, kv, "gemini_api_key", "from-config")
		require.NoError(t, err)
		assert.Equal(t, "from-kv", key)
	})

	t.Run("config fallback", func(t *testing.T) {
		t.Setenv("GUARDIAN_CLAUDE_API_KEY", "")
		t.Setenv("ANTHROPIC_API_KEY", "")
		key, err := ResolveAPIKey(ctx, kv, "anthropic_api_key", "from-config")
		require.NoError(t, err)
		assert.Equal(t, "from-config", key)
	})

	t.Run("missing", func(t *testing.T) {
		t.Setenv("GUARDIAN_CLAUDE_API_KEY", "")
		t.Setenv("ANTHROPIC_API_KEY", "")
		_, err := ResolveAPIKey(ctx, nil, "anthropic_api_key", "")
		assert.Error(t, err)
	})
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, Duration("", 5*time.Second))
	assert.Equal(t, 5*time.Second, Duration("bogus", 5*time.Second))
	assert.Equal(t, 2*time.Minute, Duration("2m", 5*time.Second))
}
