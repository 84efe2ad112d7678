package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/app"
)

func newTestServer() *Server {
	return &Server{app: &app.App{Logger: arbor.NewNoOpLogger()}}
}

func TestRouteByMethod(t *testing.T) {
	called := ""
	routes := MethodRouter{
		http.MethodPost:   func(w http.ResponseWriter, r *http.Request) { called = "post" },
		http.MethodDelete: func(w http.ResponseWriter, r *http.Request) { called = "delete" },
	}

	rec := httptest.NewRecorder()
	RouteByMethod(rec, httptest.NewRequest(http.MethodDelete, "/api/audio/region", nil), routes)
	assert.Equal(t, "delete", called)

	rec = httptest.NewRecorder()
	RouteByMethod(rec, httptest.NewRequest(http.MethodGet, "/api/audio/region", nil), routes)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouteResourceItem_SkipsNilHandlers(t *testing.T) {
	updated := false
	update := func(w http.ResponseWriter, r *http.Request) { updated = true }

	rec := httptest.NewRecorder()
	RouteResourceItem(rec, httptest.NewRequest(http.MethodGet, "/api/keys/a", nil), nil, update, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	RouteResourceItem(rec, httptest.NewRequest(http.MethodPut, "/api/keys/a", nil), nil, update, nil)
	assert.True(t, updated)
}

func TestRouteByPathSuffix(t *testing.T) {
	matched := false
	routes := []PathSuffixRouter{
		{Suffix: "/reprocess", Handler: func(w http.ResponseWriter, r *http.Request) { matched = true }},
	}

	rec := httptest.NewRecorder()
	assert.False(t, RouteByPathSuffix(rec, httptest.NewRequest(http.MethodPost, "/api/document/units/", nil), "/api/document/units/", routes))
	assert.False(t, RouteByPathSuffix(rec, httptest.NewRequest(http.MethodPost, "/api/document/units/2/delete", nil), "/api/document/units/", routes))
	assert.True(t, RouteByPathSuffix(rec, httptest.NewRequest(http.MethodPost, "/api/document/units/2/reprocess", nil), "/api/document/units/", routes))
	assert.True(t, matched)
}

func TestMiddleware_CORSPreflight(t *testing.T) {
	s := newTestServer()
	handler := s.withConditionalMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the handler")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/document", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestMiddleware_RecoversPanics(t *testing.T) {
	s := newTestServer()
	handler := s.withConditionalMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}

func TestMiddleware_WebSocketBypassesChain(t *testing.T) {
	s := newTestServer()
	var seen http.ResponseWriter
	handler := s.withConditionalMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))

	_, wrapped := seen.(*responseWriter)
	assert.False(t, wrapped)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
