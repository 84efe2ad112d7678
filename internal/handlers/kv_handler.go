package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/interfaces"
)

// KVHandler manages stored provider credentials (gemini_api_key, anthropic_api_key, ...)
type KVHandler struct {
	kvStorage interfaces.KeyValueStorage
	logger    arbor.ILogger
}

// NewKVHandler creates a new KV handler
func NewKVHandler(kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) *KVHandler {
	return &KVHandler{
		kvStorage: kvStorage,
		logger:    logger,
	}
}

// ListKVHandler handles GET /api/keys - values are always masked
func (h *KVHandler) ListKVHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	pairs, err := h.kvStorage.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list keys")
		WriteError(w, http.StatusInternalServerError, "Failed to list keys")
		return
	}

	sanitized := make([]map[string]interface{}, len(pairs))
	for i, pair := range pairs {
		sanitized[i] = map[string]interface{}{
			"key":         pair.Key,
			"value":       maskValue(pair.Value),
			"description": pair.Description,
			"updated_at":  pair.UpdatedAt,
		}
	}
	WriteJSON(w, http.StatusOK, sanitized)
}

// KeyHandler handles PUT {value, description} and DELETE on /api/keys/{key}
func (h *KVHandler) KeyHandler(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(PathSegment(r.URL.Path, "/api/keys/"))
	if key == "" {
		WriteError(w, http.StatusBadRequest, "Missing key")
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req struct {
			Value       string `json:"value"`
			Description string `json:"description"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Value) == "" {
			WriteError(w, http.StatusBadRequest, "Value is required")
			return
		}

		if err := h.kvStorage.Set(r.Context(), key, req.Value, req.Description); err != nil {
			h.logger.Error().Err(err).Str("key", key).Msg("Failed to store key")
			WriteError(w, http.StatusInternalServerError, "Failed to store key")
			return
		}
		h.logger.Info().Str("key", key).Msg("Key stored")
		WriteSuccess(w, "Key stored")
	case http.MethodDelete:
		err := h.kvStorage.Delete(r.Context(), key)
		switch {
		case errors.Is(err, interfaces.ErrKeyNotFound):
			WriteError(w, http.StatusNotFound, "Key not found")
		case err != nil:
			h.logger.Error().Err(err).Str("key", key).Msg("Failed to delete key")
			WriteError(w, http.StatusInternalServerError, "Failed to delete key")
		default:
			h.logger.Info().Str("key", key).Msg("Key deleted")
			WriteSuccess(w, "Key deleted")
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// maskValue shows the first and last 4 characters of long values only
func maskValue(value string) string {
	if len(value) < 8 {
		return "••••••••"
	}
	return value[:4] + "..." + value[len(value)-4:]
}
