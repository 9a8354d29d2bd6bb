package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"interview-backend/internal/attempts"
	"interview-backend/internal/evaluation"
	"interview-backend/internal/extract"
	"interview-backend/internal/interview"
	"interview-backend/internal/llm"
	openai "interview-backend/internal/llm/openai"
	"interview-backend/internal/prompts"
	"interview-backend/internal/queue"
	"interview-backend/internal/shared/config"
	"interview-backend/internal/shared/server"
	"interview-backend/internal/shared/server/middleware"
	"interview-backend/internal/shared/storage/db"
	"interview-backend/internal/shared/storage/object"
	localstore "interview-backend/internal/shared/storage/object/local"
	s3store "interview-backend/internal/shared/storage/object/s3"
	"interview-backend/internal/shared/telemetry"
	"interview-backend/internal/speech"
)

// App holds shared dependencies.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Store    object.Store
	Queue    queue.Client
	LLM      llm.Client
	Prompts  *prompts.Profile
	Registry *interview.Registry

	AttemptsRepo     attempts.Repo
	AttemptsService  *attempts.Service
	Evaluator        *evaluation.Evaluator
	AttemptsHandler  *attempts.Handler
	InterviewHandler *interview.Handler
}

// Build prepares shared dependencies and the router. ctx bounds the lifetime
// of interview sessions started through the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	llmClient, err := BuildLLM(cfg)
	if err != nil {
		return nil, err
	}

	profile, err := prompts.Load(cfg.Interview.PromptsFile)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:   cfg,
		DB:       sqlDB,
		Store:    store,
		Queue:    queueClient,
		LLM:      llmClient,
		Prompts:  profile,
		Registry: interview.NewRegistry(),
	}
	buildServices(ctx, app)

	app.Router = server.NewRouter(server.RouterDeps{
		Env:             cfg.Env,
		CORSAllowOrigin: cfg.CORSAllowOrigin,
		Handlers:        []server.RouteRegistrar{app.AttemptsHandler, app.InterviewHandler},
		Health:          healthChecks(app),
		RateLimits: map[string]middleware.RateLimitRule{
			"CREATE": {Rate: 1, Burst: 20},
		},
	})

	return app, nil
}

// Close releases the database pool.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "database connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}
	if isDevLike(cfg.Env) {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.CompletionQueueURL) == "" {
		return queue.NopClient{}, nil
	}
	return queue.NewSQSClient(ctx, cfg.CompletionQueueURL, cfg.AWSRegion)
}

// BuildLLM returns the configured generative backend, or a placeholder that
// always fails when none is configured.
func BuildLLM(cfg config.Config) (llm.Client, error) {
	if cfg.LLMProvider != "openai" || strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		telemetry.Warn("bootstrap.llm_placeholder", map[string]any{"provider": cfg.LLMProvider})
		return llm.PlaceholderClient{}, nil
	}
	model := cfg.LLMModel
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	return openai.NewClient(cfg.OpenAIAPIKey, model, cfg.OpenAIBaseURL)
}

func buildServices(ctx context.Context, app *App) {
	var repo attempts.Repo
	if app.DB != nil {
		repo = &attempts.PGRepo{DB: app.DB}
	} else {
		repo = attempts.NewMemoryRepo()
	}
	app.AttemptsRepo = repo
	app.AttemptsService = attempts.NewService(repo, app.Store)
	app.AttemptsHandler = attempts.NewHandler(app.AttemptsService)
	app.Evaluator = evaluation.New(app.LLM, app.Prompts.EvaluationPrompt)

	cfg := app.Config
	deps := interview.Deps{
		Attempts:  repo,
		Resumes:   extract.New(app.Store),
		LLM:       app.LLM,
		Evaluator: app.Evaluator,
		Queue:     app.Queue,
		Prompts:   app.Prompts,
		Registry:  app.Registry,
	}
	if strings.TrimSpace(cfg.STTURL) != "" {
		deps.Transcriber = speech.NewHTTPTranscriber(cfg.STTURL, cfg.OpenAIAPIKey, cfg.STTModel, nil)
	}
	if strings.TrimSpace(cfg.TTSURL) != "" {
		deps.Synthesizer = speech.NewHTTPSynthesizer(cfg.TTSURL, cfg.OpenAIAPIKey, cfg.TTSModel, cfg.TTSVoice, nil)
	}

	app.InterviewHandler = interview.NewHandler(ctx, SessionConfig(cfg.Interview), deps, cfg.CORSAllowOrigin)
}

// SessionConfig maps configuration onto the session engine.
func SessionConfig(c config.InterviewConfig) interview.Config {
	return interview.Config{
		MaxQuestions:      c.MaxQuestions,
		AnswerTimeout:     c.AnswerTimeout,
		SummarizeEvery:    c.SummarizeEvery,
		ContextMessages:   c.ContextMessages,
		GenerationRetries: c.GenerationRetries,
		EvaluationTimeout: c.EvaluationTimeout,
	}
}

func healthChecks(app *App) map[string]server.HealthFunc {
	checks := map[string]server.HealthFunc{}
	if app.DB != nil {
		checks["db"] = func(c *gin.Context) error {
			return app.DB.PingContext(c.Request.Context())
		}
	}
	checks["llm"] = func(c *gin.Context) error {
		if _, ok := app.LLM.(llm.PlaceholderClient); ok && !isDevLike(app.Config.Env) {
			return errors.New(http.StatusText(http.StatusServiceUnavailable) + ": llm not configured")
		}
		return nil
	}
	return checks
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "test":
		return true
	default:
		return false
	}
}
