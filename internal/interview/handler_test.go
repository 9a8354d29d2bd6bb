package interview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-backend/internal/attempts"
)

func TestWebsocketInterviewRoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newHarness(t, replies("What brings you here?"), goodEvaluation)
	h.cfg.MaxQuestions = 1
	h.deps.Synthesizer = fakeSynthesizer{audio: []byte("mp3")}
	h.seed(t, nil)

	router := gin.New()
	NewHandler(context.Background(), h.cfg, h.deps, []string{"http://localhost:5173"}).RegisterRoutes(router.Group("/api/v1"))
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/interviews/attempt-1/ws?voice=1"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	read := func() Message {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	assert.Equal(t, TypeWelcome, read().Type)
	q := read()
	assert.Equal(t, TypeQuestion, q.Type)
	assert.Equal(t, "What brings you here?", q.Text)
	assert.NotEmpty(t, q.Audio)

	require.NoError(t, conn.WriteJSON(map[string]string{"answer": "I like hard problems."}))
	assert.Equal(t, TypeAck, read().Type)
	assert.Equal(t, TypeComplete, read().Type)
	eval := read()
	assert.Equal(t, TypeEvaluation, eval.Type)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "expected normal close, got %v", err)

	stored, err := h.repo.GetByID(context.Background(), "attempt-1")
	require.NoError(t, err)
	assert.Equal(t, attempts.StatusCompleted, stored.Status)
}

func TestWebsocketRejectsForeignOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newHarness(t, nil, goodEvaluation)

	router := gin.New()
	NewHandler(context.Background(), h.cfg, h.deps, []string{"http://localhost:5173"}).RegisterRoutes(router.Group("/api/v1"))
	srv := httptest.NewServer(router)
	defer srv.Close()

	header := http.Header{"Origin": []string{"http://evil.example"}}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/interviews/attempt-1/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestVoiceRequested(t *testing.T) {
	assert.True(t, voiceRequested("1"))
	assert.True(t, voiceRequested("TRUE"))
	assert.False(t, voiceRequested(""))
	assert.False(t, voiceRequested("0"))
}
