package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/common"
	"github.com/kaitorecca/guardian-redact/internal/models"
	"github.com/kaitorecca/guardian-redact/internal/review"
	"github.com/kaitorecca/guardian-redact/internal/services/orchestrator"
	"github.com/kaitorecca/guardian-redact/internal/services/status"
	"github.com/kaitorecca/guardian-redact/internal/storage/badger"
)

type fakeLogs struct {
	entries   map[string][]models.LogEntry
	forgotten []string
}

func (f *fakeLogs) Recent(sessionID string, limit int) []models.LogEntry {
	entries := f.entries[sessionID]
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries
}

func (f *fakeLogs) Forget(sessionID string) {
	f.forgotten = append(f.forgotten, sessionID)
}

func TestStatusHandler_StatusAndReset(t *testing.T) {
	logger := arbor.NewNoOpLogger()
	events := newSyncEvents()
	session := review.NewSession(0, events, logger)
	statusService := status.NewService(events, logger)
	logs := &fakeLogs{}
	orch := orchestrator.NewService(session, statusService, nil, nil, events, time.Second, logger)
	t.Cleanup(orch.Close)
	handler := NewStatusHandler(statusService, session, orch, logs, logger)

	session.SetAudio(review.Source{Path: "/tmp/a.wav", Name: "a.wav"})
	statusService.Set(models.ProcessingStatus{Status: models.StatusTranscribing, Message: "Transcribing audio"})

	rec := httptest.NewRecorder()
	handler.GetStatusHandler(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, session.ID(), body["session_id"])
	assert.Equal(t, "transcribing", body["processing"].(map[string]interface{})["status"])
	assert.NotNil(t, body["audio"])
	assert.Nil(t, body["document"])

	previous := session.ID()
	rec = httptest.NewRecorder()
	handler.ResetSessionHandler(rec, httptest.NewRequest(http.MethodPost, "/api/session/reset", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.NotEqual(t, previous, decodeBody(t, rec)["session_id"])
	assert.Equal(t, []string{previous}, logs.forgotten)
	assert.Equal(t, models.StatusIdle, statusService.Get().Status)
	_, hasAudio := session.Audio()
	assert.False(t, hasAudio)

	rec = httptest.NewRecorder()
	handler.ResetSessionHandler(rec, httptest.NewRequest(http.MethodGet, "/api/session/reset", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatusHandler_Logs(t *testing.T) {
	logger := arbor.NewNoOpLogger()
	session := review.NewSession(0, nil, logger)
	logs := &fakeLogs{entries: map[string][]models.LogEntry{
		session.ID(): {
			{Level: "INF", Message: "Document analysis started"},
			{Level: "WRN", Message: "Unit analysis failed"},
			{Level: "INF", Message: "Document analysis complete"},
		},
	}}
	handler := NewStatusHandler(status.NewService(nil, logger), session, nil, logs, logger)

	rec := httptest.NewRecorder()
	handler.LogsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/logs?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []models.LogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "WRN", entries[0].Level)

	empty := NewStatusHandler(status.NewService(nil, logger), review.NewSession(0, nil, logger), nil, nil, logger)
	rec = httptest.NewRecorder()
	empty.LogsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/logs", nil))
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestAPIHandler_VersionAndNotFound(t *testing.T) {
	handler := NewAPIHandler(nil, arbor.NewNoOpLogger())

	rec := httptest.NewRecorder()
	handler.VersionHandler(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, common.Version, decodeBody(t, rec)["version"])

	rec = httptest.NewRecorder()
	handler.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])

	rec = httptest.NewRecorder()
	handler.NotFoundHandler(rec, httptest.NewRequest(http.MethodGet, "/api/nothing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "/api/nothing", decodeBody(t, rec)["path"])
}

func TestKVHandler_MasksAndManagesKeys(t *testing.T) {
	logger := arbor.NewNoOpLogger()
	manager, err := badger.NewManager(logger, &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "db")})
	require.NoError(t, err)
	defer manager.Close()

	kv := manager.KeyValueStorage()
	require.NoError(t, kv.Set(context.Background(), "short", "abc", ""))
	handler := NewKVHandler(kv, logger)

	rec := httptest.NewRecorder()
	handler.KeyHandler(rec, jsonRequest(t, http.MethodPut, "/api/keys/gemini_api_key", map[string]string{"value": "AIzaSyExample1234"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	handler.KeyHandler(rec, jsonRequest(t, http.MethodPut, "/api/keys/empty", map[string]string{"value": "  "}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.ListKVHandler(rec, httptest.NewRequest(http.MethodGet, "/api/keys", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var pairs []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pairs))
	require.Len(t, pairs, 2)

	masked := map[string]string{}
	for _, p := range pairs {
		masked[p["key"].(string)] = p["value"].(string)
	}
	assert.Equal(t, "AIza...1234", masked["gemini_api_key"])
	assert.Equal(t, "••••••••", masked["short"])

	rec = httptest.NewRecorder()
	handler.KeyHandler(rec, httptest.NewRequest(http.MethodDelete, "/api/keys/gemini_api_key", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.KeyHandler(rec, httptest.NewRequest(http.MethodDelete, "/api/keys/gemini_api_key", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
