package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadInterviewDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{
		"INTERVIEW_MAX_QUESTIONS", "INTERVIEW_ANSWER_TIMEOUT", "INTERVIEW_SUMMARIZE_EVERY",
		"INTERVIEW_CONTEXT_MESSAGES", "INTERVIEW_GENERATION_RETRIES", "ENV", "OBJECT_STORE",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "local", cfg.ObjectStoreType)
	assert.Equal(t, 10, cfg.Interview.MaxQuestions)
	assert.Equal(t, 120*time.Second, cfg.Interview.AnswerTimeout)
	assert.Equal(t, 3, cfg.Interview.SummarizeEvery)
	assert.Equal(t, 6, cfg.Interview.ContextMessages)
	assert.Equal(t, 1, cfg.Interview.GenerationRetries)
}

func TestLoadInterviewOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("INTERVIEW_MAX_QUESTIONS", "5")
	t.Setenv("INTERVIEW_ANSWER_TIMEOUT", "45")
	t.Setenv("INTERVIEW_EVALUATION_TIMEOUT", "2m")
	t.Setenv("INTERVIEW_SUMMARIZE_EVERY", "oops")
	t.Setenv("ENV", "prod")
	t.Setenv("OBJECT_STORE", "S3")

	cfg := Load()

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "s3", cfg.ObjectStoreType)
	assert.Equal(t, 5, cfg.Interview.MaxQuestions)
	assert.Equal(t, 45*time.Second, cfg.Interview.AnswerTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Interview.EvaluationTimeout)
	assert.Equal(t, 3, cfg.Interview.SummarizeEvery)
}

func TestLoadEnvFilesKeepsProcessEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\nexport DOTENV_TEST_A=\"from-file\"\nDOTENV_TEST_B=file-b\nbroken-line\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("DOTENV_TEST_B", "from-process")
	os.Unsetenv("DOTENV_TEST_A")
	t.Cleanup(func() { os.Unsetenv("DOTENV_TEST_A") })

	loadEnvFiles(path)

	assert.Equal(t, "from-file", os.Getenv("DOTENV_TEST_A"))
	assert.Equal(t, "from-process", os.Getenv("DOTENV_TEST_B"))
}
