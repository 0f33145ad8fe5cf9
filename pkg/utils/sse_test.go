package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendSSEEventFormatsFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	SetupSSEHeaders(rec)

	require.NoError(t, SendSSEEvent(rec, rec, "state", map[string]int{"version": 3}))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "event: state\ndata: {\"version\":3}\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestSendSSEEventRejectsUnmarshalable(t *testing.T) {
	rec := httptest.NewRecorder()
	err := SendSSEEvent(rec, rec, "state", make(chan int))
	assert.Error(t, err)
	assert.Empty(t, rec.Body.String())
}

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, 404, "session not found")

	assert.Equal(t, 404, rec.Code)
	assert.JSONEq(t, `{"error":"session not found"}`, rec.Body.String())
}
