package widget

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/chat-popup/backend/internal/model/chat"
	"github.com/zhouzirui/chat-popup/backend/internal/model/persona"
	chatservice "github.com/zhouzirui/chat-popup/backend/internal/service/chat"
	widgetservice "github.com/zhouzirui/chat-popup/backend/internal/service/widget"
	"github.com/zhouzirui/chat-popup/backend/internal/service/widget/widgettest"
)

func setupRouter(t *testing.T) (*chi.Mux, *chatservice.Service, *widgettest.Clock) {
	t.Helper()
	return setupRouterWithIdle(t, 0)
}

func setupRouterWithIdle(t *testing.T, idle time.Duration) (*chi.Mux, *chatservice.Service, *widgettest.Clock) {
	t.Helper()
	clock := widgettest.NewClock(time.Date(2026, 10, 19, 18, 30, 0, 0, time.UTC))
	chatSvc := chatservice.NewService(persona.NewMemoryStore(persona.Seed()), chatservice.Options{
		IdleTimeout: idle,
		Clock:       clock,
		Scheduler:   clock,
	})
	t.Cleanup(chatSvc.Shutdown)

	r := chi.NewRouter()
	New(chatSvc).RegisterRoutes(r)
	return r, chatSvc, clock
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func mount(t *testing.T, r http.Handler) mountResponse {
	t.Helper()
	resp := do(t, r, http.MethodPost, "/widgets", nil)
	require.Equal(t, http.StatusCreated, resp.Code)

	var got mountResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	return got
}

func TestMountReturnsSeededState(t *testing.T) {
	r, _, _ := setupRouter(t)

	got := mount(t, r)
	assert.NotEmpty(t, got.Session.ID)
	assert.Equal(t, persona.DefaultID, got.Session.PersonaID)
	require.Len(t, got.State.Messages, 1)
	assert.Equal(t, chat.AuthorBot, got.State.Messages[0].Author)
	assert.Equal(t, "18:30", got.State.Messages[0].Timestamp)
	assert.False(t, got.State.IsOpen)
}

func TestMountUnknownPersona(t *testing.T) {
	r, _, _ := setupRouter(t)

	resp := do(t, r, http.MethodPost, "/widgets", map[string]string{"personaId": "non-existent"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestMountInvalidBody(t *testing.T) {
	r, _, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/widgets", bytes.NewReader([]byte("{")))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestUnknownSessionIsNotFound(t *testing.T) {
	r, _, _ := setupRouter(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/widgets/missing"},
		{http.MethodDelete, "/widgets/missing"},
		{http.MethodPost, "/widgets/missing/toggle"},
		{http.MethodPost, "/widgets/missing/send"},
	} {
		resp := do(t, r, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusNotFound, resp.Code, "%s %s", tc.method, tc.path)
	}
}

func TestToggleFlipsVisibility(t *testing.T) {
	r, _, _ := setupRouter(t)
	id := mount(t, r).Session.ID

	resp := do(t, r, http.MethodPost, "/widgets/"+id+"/toggle", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var state chat.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.True(t, state.IsOpen)
}

func TestSendThenReplyAfterDelay(t *testing.T) {
	r, _, clock := setupRouter(t)
	id := mount(t, r).Session.ID

	resp := do(t, r, http.MethodPut, "/widgets/"+id+"/draft", map[string]string{"text": " hi "})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = do(t, r, http.MethodPost, "/widgets/"+id+"/send", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var sent sendResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sent))
	assert.True(t, sent.Sent)
	assert.True(t, sent.State.IsTyping)
	require.Len(t, sent.State.Messages, 2)
	assert.Equal(t, "hi", sent.State.Messages[1].Text)

	clock.Advance(widgetservice.DefaultTypingDelay)

	resp = do(t, r, http.MethodGet, "/widgets/"+id, nil)
	var state chat.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	require.Len(t, state.Messages, 3)
	assert.Equal(t, "Great! Let us keep the ideas flowing.", state.Messages[2].Text)
	assert.False(t, state.IsTyping)
}

func TestSendBlankIsNoop(t *testing.T) {
	r, _, _ := setupRouter(t)
	id := mount(t, r).Session.ID

	resp := do(t, r, http.MethodPost, "/widgets/"+id+"/send", map[string]string{"text": "   "})
	require.Equal(t, http.StatusOK, resp.Code)

	var sent sendResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sent))
	assert.False(t, sent.Sent)
	assert.False(t, sent.State.IsTyping)
	assert.Len(t, sent.State.Messages, 1)
}

func TestKeyEnterSends(t *testing.T) {
	r, _, _ := setupRouter(t)
	id := mount(t, r).Session.ID
	do(t, r, http.MethodPut, "/widgets/"+id+"/draft", map[string]string{"text": "hello"})

	resp := do(t, r, http.MethodPost, "/widgets/"+id+"/keys", map[string]any{"key": "Enter", "shift": true})
	require.Equal(t, http.StatusOK, resp.Code)
	var shifted keyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&shifted))
	assert.False(t, shifted.Handled)
	assert.Equal(t, "hello", shifted.State.Draft)

	resp = do(t, r, http.MethodPost, "/widgets/"+id+"/keys", map[string]any{"key": "Enter"})
	require.Equal(t, http.StatusOK, resp.Code)
	var got keyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, got.Handled)
	assert.True(t, got.PreventDefault)
	assert.True(t, got.Sent)
	assert.Len(t, got.State.Messages, 2)
}

func TestKeyRequiresKey(t *testing.T) {
	r, _, _ := setupRouter(t)
	id := mount(t, r).Session.ID

	resp := do(t, r, http.MethodPost, "/widgets/"+id+"/keys", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestUnmountCancelsReply(t *testing.T) {
	r, chatSvc, clock := setupRouter(t)
	id := mount(t, r).Session.ID
	do(t, r, http.MethodPost, "/widgets/"+id+"/send", map[string]string{"text": "hi"})

	resp := do(t, r, http.MethodDelete, "/widgets/"+id, nil)
	require.Equal(t, http.StatusNoContent, resp.Code)
	assert.Zero(t, chatSvc.Count())

	clock.Advance(time.Second)
	assert.Zero(t, clock.Pending())
}

func TestRESTActivityKeepsSessionMounted(t *testing.T) {
	r, chatSvc, clock := setupRouterWithIdle(t, 2*time.Minute)
	got := mount(t, r)
	base := "/widgets/" + got.Session.ID

	for i := 0; i < 6; i++ {
		clock.Advance(30 * time.Second)
		resp := do(t, r, http.MethodPost, base+"/send", map[string]string{"text": "hello"})
		require.Equal(t, http.StatusOK, resp.Code)
	}
	assert.Equal(t, 1, chatSvc.Count())

	clock.Advance(2 * time.Minute)
	resp := do(t, r, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
