package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-backend/internal/attempts"
	"interview-backend/internal/llm"
	"interview-backend/internal/queue"
	"interview-backend/internal/shared/config"
	"interview-backend/internal/shared/telemetry"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:             "test",
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		CORSAllowOrigin: []string{"http://localhost:5173"},
		Interview:       config.DefaultInterviewConfig(),
	}
}

func TestBuildWiresInMemoryApp(t *testing.T) {
	gin.SetMode(gin.TestMode)
	restore := telemetry.SetOutput(&bytes.Buffer{})
	defer restore()

	app, err := Build(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.DB)
	assert.IsType(t, &attempts.MemoryRepo{}, app.AttemptsRepo)
	assert.IsType(t, llm.PlaceholderClient{}, app.LLM)
	assert.IsType(t, queue.NopClient{}, app.Queue)

	body := `{"subjectId":"s1","jobTitle":"Go Engineer","jobDescription":"Build APIs."}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/attempts", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var created struct {
		AttemptID string `json:"attemptId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/attempts/"+created.AttemptID, nil))
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	restore := telemetry.SetOutput(&bytes.Buffer{})
	defer restore()

	cfg := testConfig(t)
	cfg.Env = "production"

	_, err := Build(context.Background(), cfg)
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestBuildRejectsBadPromptsFile(t *testing.T) {
	restore := telemetry.SetOutput(&bytes.Buffer{})
	defer restore()

	cfg := testConfig(t)
	cfg.Interview.PromptsFile = "/does/not/exist.yaml"

	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)
}

func TestSessionConfigCopiesTuning(t *testing.T) {
	ic := config.DefaultInterviewConfig()
	ic.MaxQuestions = 4

	sc := SessionConfig(ic)

	assert.Equal(t, 4, sc.MaxQuestions)
	assert.Equal(t, ic.AnswerTimeout, sc.AnswerTimeout)
	assert.Equal(t, ic.GenerationRetries, sc.GenerationRetries)
	assert.False(t, sc.Voice)
}
