package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/kaitorecca/guardian-redact/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Transport   TransportConfig `toml:"transport"`
	Logging     LoggingConfig   `toml:"logging"`
	Review      ReviewConfig    `toml:"review"`
	WebSocket   WebSocketConfig `toml:"websocket"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger   BadgerConfig `toml:"badger"`
	KeysFile string       `toml:"keys_file"` // Optional .env style file of provider keys loaded into the KV store
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// TransportConfig controls where uploads and exports are written
type TransportConfig struct {
	TempDir       string `toml:"temp_dir"`       // Uploaded files (default: <os temp>/guardian_redact)
	OutputDir     string `toml:"output_dir"`     // Exported files (default: "./exports")
	MaxAge        string `toml:"max_age"`        // Temp files older than this are purged (default: "24h")
	PurgeSchedule string `toml:"purge_schedule"` // Cron schedule for purging (default: "0 */30 * * * *")
}

type LoggingConfig struct {
	Level         string   `toml:"level"`           // "debug", "info", "warn", "error"
	Format        string   `toml:"format"`          // "json" or "text"
	Output        []string `toml:"output"`          // "stdout", "file"
	MinEventLevel string   `toml:"min_event_level"` // Minimum level of run logs broadcast to the UI (default: "info")
	Retention     int      `toml:"retention"`       // Run log lines kept per session (default: 500)
}

// ReviewConfig holds review and analysis settings
type ReviewConfig struct {
	DefaultProfile string  `toml:"default_profile"` // "quick" or "deep"
	OverlayPadding float64 `toml:"overlay_padding"` // Pixels between page surface edge and page content
	UnitTimeout    string  `toml:"unit_timeout"`    // Per-unit analysis timeout (default: "2m")
	MaxUploadMB    int     `toml:"max_upload_mb"`   // Maximum upload size (default: 100)
}

// WebSocketConfig contains configuration for WebSocket event streaming
type WebSocketConfig struct {
	// Whitelist of event types to broadcast via WebSocket. Empty list allows all events.
	AllowedEvents []string `toml:"allowed_events"`
	// Throttle intervals for high-frequency events. Map of event type to duration string.
	// Example: {"unit_progress": "250ms"}
	ThrottleIntervals map[string]string `toml:"throttle_intervals"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Google Gemini API key
	Model       string  `toml:"model"`       // Model for analysis and transcription
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "5m")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.1)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	Model       string  `toml:"model"`       // Model for analysis
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 8192)
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "5m")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.1)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig selects the provider used for text analysis.
// Transcription always uses Gemini since it accepts audio input.
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "gemini" or "claude" (default: "gemini")
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Transport: TransportConfig{
			TempDir:       "",
			OutputDir:     "./exports",
			MaxAge:        "24h",
			PurgeSchedule: "0 */30 * * * *",
		},
		Logging: LoggingConfig{
			Level:         "info",
			Format:        "text",
			Output:        []string{"stdout", "file"},
			MinEventLevel: "info",
			Retention:     500,
		},
		Review: ReviewConfig{
			DefaultProfile: "quick",
			OverlayPadding: 8,
			UnitTimeout:    "2m",
			MaxUploadMB:    100,
		},
		WebSocket: WebSocketConfig{
			AllowedEvents: []string{},
			ThrottleIntervals: map[string]string{
				"unit_progress": "250ms",
			},
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			Timeout:     "5m",
			Temperature: 0.1,
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-4-5",
			MaxTokens:   8192,
			Timeout:     "5m",
			Temperature: 0.1,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
	}
}

// LoadFromFile loads configuration from a single TOML file
func LoadFromFile(path string) (*Config, error) {
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files in order.
// Priority: defaults -> file1 -> file2 -> ... -> environment variables
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Later files override earlier ones
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

func applyEnvOverrides(config *Config) {
	if env := os.Getenv("GUARDIAN_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("GUARDIAN_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("GUARDIAN_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("GUARDIAN_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if keysFile := os.Getenv("GUARDIAN_KEYS_FILE"); keysFile != "" {
		config.Storage.KeysFile = keysFile
	}
	if reset := os.Getenv("GUARDIAN_BADGER_RESET_ON_STARTUP"); reset != "" {
		if r, err := strconv.ParseBool(reset); err == nil {
			config.Storage.Badger.ResetOnStartup = r
		}
	}

	// Transport configuration
	if tempDir := os.Getenv("GUARDIAN_TEMP_DIR"); tempDir != "" {
		config.Transport.TempDir = tempDir
	}
	if outputDir := os.Getenv("GUARDIAN_OUTPUT_DIR"); outputDir != "" {
		config.Transport.OutputDir = outputDir
	}
	if maxAge := os.Getenv("GUARDIAN_TEMP_MAX_AGE"); maxAge != "" {
		config.Transport.MaxAge = maxAge
	}

	// Logging configuration
	if level := os.Getenv("GUARDIAN_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("GUARDIAN_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("GUARDIAN_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Review configuration
	if profile := os.Getenv("GUARDIAN_DEFAULT_PROFILE"); profile != "" {
		config.Review.DefaultProfile = profile
	}
	if padding := os.Getenv("GUARDIAN_OVERLAY_PADDING"); padding != "" {
		if p, err := strconv.ParseFloat(padding, 64); err == nil {
			config.Review.OverlayPadding = p
		}
	}
	if timeout := os.Getenv("GUARDIAN_UNIT_TIMEOUT"); timeout != "" {
		config.Review.UnitTimeout = timeout
	}

	// LLM configuration
	if provider := os.Getenv("GUARDIAN_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}
	if model := os.Getenv("GUARDIAN_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if model := os.Getenv("GUARDIAN_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ResolveAPIKey resolves an API key by name.
// Resolution order: environment variables -> KV store -> config fallback -> error
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"GUARDIAN_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"anthropic_api_key": {"GUARDIAN_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}

// Duration parses a duration setting, returning fallback when empty or malformed
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env == "production" || env == "prod"
}
