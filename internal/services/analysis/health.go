package analysis

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/common"
	"github.com/kaitorecca/guardian-redact/internal/interfaces"
)

// HealthReport describes which AI providers can be reached with the configured keys
type HealthReport struct {
	Ready           bool   `json:"ready"`
	DefaultProvider string `json:"default_provider"`
	Gemini          bool   `json:"gemini"`
	Claude          bool   `json:"claude"`
	Message         string `json:"message"`
}

// HealthChecker resolves provider API keys without calling the providers
type HealthChecker struct {
	config    *common.Config
	kvStorage interfaces.KeyValueStorage
	logger    arbor.ILogger
}

func NewHealthChecker(config *common.Config, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) *HealthChecker {
	return &HealthChecker{config: config, kvStorage: kvStorage, logger: logger}
}

// Health reports readiness. Audio always needs Gemini; documents need the default provider.
func (h *HealthChecker) Health(ctx context.Context) HealthReport {
	_, geminiErr := common.ResolveAPIKey(ctx, h.kvStorage, "gemini_api_key", h.config.Gemini.APIKey)
	_, claudeErr := common.ResolveAPIKey(ctx, h.kvStorage, "anthropic_api_key", h.config.Claude.APIKey)

	report := HealthReport{
		DefaultProvider: string(h.config.LLM.DefaultProvider),
		Gemini:          geminiErr == nil,
		Claude:          claudeErr == nil,
	}

	defaultReady := report.Gemini
	if h.config.LLM.DefaultProvider == common.LLMProviderClaude {
		defaultReady = report.Claude
	}
	report.Ready = defaultReady && report.Gemini

	switch {
	case report.Ready:
		report.Message = "AI engine is ready"
	case !report.Gemini:
		report.Message = "Gemini API key is not configured"
	default:
		report.Message = "Default provider API key is not configured"
	}

	h.logger.Debug().
		Bool("gemini", report.Gemini).
		Bool("claude", report.Claude).
		Bool("ready", report.Ready).
		Msg("AI engine health checked")

	return report
}
