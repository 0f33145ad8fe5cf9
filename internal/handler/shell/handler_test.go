package shell

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/chat-popup/backend/internal/model/persona"
)

func TestIndexRendersShellAndPopupHeader(t *testing.T) {
	r := chi.NewRouter()
	New(persona.Seed()[0], "/api").RegisterRoutes(r)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header().Get("Content-Type"))

	body := resp.Body.String()
	assert.Contains(t, body, "<h1>Chat Popup Demo</h1>")
	assert.Contains(t, body, "Product Coach")
	assert.Contains(t, body, "Typically replies in seconds")
	assert.Contains(t, body, "const apiBase = ")
	assert.Contains(t, body, `"product-coach"`)
}

func TestIndexIgnoresDraftEchoes(t *testing.T) {
	r := chi.NewRouter()
	New(persona.Seed()[0], "/api").RegisterRoutes(r)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	body := resp.Body.String()
	assert.Contains(t, body, "if (kind !== 'draft' && (kind === undefined || kind === 'message' || document.activeElement !== input))")
	assert.Contains(t, body, "render(envelope.data.state, envelope.data.scrollToLatest, envelope.data.kind)")
}
