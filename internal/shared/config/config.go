package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string
	DatabaseURL     string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	LLMProvider   string
	LLMModel      string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	STTURL   string
	STTModel string
	TTSURL   string
	TTSModel string
	TTSVoice string

	CompletionQueueURL string

	Interview InterviewConfig
}

// InterviewConfig tunes the session engine.
type InterviewConfig struct {
	MaxQuestions      int
	AnswerTimeout     time.Duration
	SummarizeEvery    int
	ContextMessages   int
	GenerationRetries int
	EvaluationTimeout time.Duration
	PromptsFile       string
}

// DefaultInterviewConfig returns the values used when no overrides are set.
func DefaultInterviewConfig() InterviewConfig {
	return InterviewConfig{
		MaxQuestions:      10,
		AnswerTimeout:     120 * time.Second,
		SummarizeEvery:    3,
		ContextMessages:   6,
		GenerationRetries: 1,
		EvaluationTimeout: 90 * time.Second,
	}
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	defaults := DefaultInterviewConfig()

	return Config{
		Port:               getEnv("PORT", "8080"),
		CORSAllowOrigin:    splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		Env:                env,
		DatabaseURL:        dbURL,
		ObjectStoreType:    normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:      getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:          getEnv("AWS_REGION", ""),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3Prefix:           getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:        getEnv("SSE_KMS_KEY_ID", ""),
		LLMProvider:        strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		LLMModel:           getEnv("LLM_MODEL", ""),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		STTURL:             getEnv("STT_URL", ""),
		STTModel:           getEnv("STT_MODEL", "whisper-1"),
		TTSURL:             getEnv("TTS_URL", ""),
		TTSModel:           getEnv("TTS_MODEL", "tts-1"),
		TTSVoice:           getEnv("TTS_VOICE", "alloy"),
		CompletionQueueURL: getEnv("COMPLETION_QUEUE_URL", ""),
		Interview: InterviewConfig{
			MaxQuestions:      getEnvInt("INTERVIEW_MAX_QUESTIONS", defaults.MaxQuestions),
			AnswerTimeout:     getEnvDuration("INTERVIEW_ANSWER_TIMEOUT", defaults.AnswerTimeout),
			SummarizeEvery:    getEnvInt("INTERVIEW_SUMMARIZE_EVERY", defaults.SummarizeEvery),
			ContextMessages:   getEnvInt("INTERVIEW_CONTEXT_MESSAGES", defaults.ContextMessages),
			GenerationRetries: getEnvInt("INTERVIEW_GENERATION_RETRIES", defaults.GenerationRetries),
			EvaluationTimeout: getEnvDuration("INTERVIEW_EVALUATION_TIMEOUT", defaults.EvaluationTimeout),
			PromptsFile:       getEnv("INTERVIEW_PROMPTS_FILE", ""),
		},
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		log.Printf("config %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return val
}

// getEnvDuration accepts Go durations ("90s", "2m") or bare seconds ("120").
func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		log.Printf("config %s invalid duration %q, using %s", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "test":
		return "test"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
