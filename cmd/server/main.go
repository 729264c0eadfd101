package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/p-n-ai/pai-quiz/internal/ai"
	"github.com/p-n-ai/pai-quiz/internal/answer"
	"github.com/p-n-ai/pai-quiz/internal/api"
	"github.com/p-n-ai/pai-quiz/internal/credits"
	"github.com/p-n-ai/pai-quiz/internal/generator"
	"github.com/p-n-ai/pai-quiz/internal/pipeline"
	"github.com/p-n-ai/pai-quiz/internal/platform/cache"
	"github.com/p-n-ai/pai-quiz/internal/platform/config"
	"github.com/p-n-ai/pai-quiz/internal/platform/database"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
	"github.com/p-n-ai/pai-quiz/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log, os.Stdout))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	handler, cleanup, err := buildApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		// Generation runs up to the request timeout before the response is written.
		WriteTimeout: cfg.Server.RequestTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// buildApp wires storage, the AI gateway and the pipelines behind the HTTP router. cleanup
// releases every connection opened here.
func buildApp(ctx context.Context, cfg *config.Config) (http.Handler, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (http.Handler, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	router, err := newAIRouter(cfg.AI)
	if err != nil {
		return fail(err)
	}

	rates, err := newRates(cfg.Credits)
	if err != nil {
		return fail(err)
	}

	var (
		st        store.Store
		events    store.EventLogger = store.NopEventLogger{}
		locker    credits.Locker    = credits.NewLocalLocker()
		readiness = []api.ReadinessCheck{{Name: "ai", Check: func(context.Context) error {
			if !router.HasProvider() {
				return errors.New("no AI provider registered")
			}
			return nil
		}}}
	)

	if cfg.Database.URL != "" {
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns, store.Migrate)
		if err != nil {
			return fail(fmt.Errorf("connect database: %w", err))
		}
		closers = append(closers, db.Close)
		pg, err := store.NewPostgresStore(db.Pool)
		if err != nil {
			return fail(err)
		}
		st = pg
		events = store.NewPostgresEventLogger(db.Pool)
		readiness = append(readiness, api.ReadinessCheck{Name: "database", Check: db.HealthCheck})
		slog.Info("using postgres store")
	} else {
		st = store.NewMemoryStore()
		slog.Warn("QUIZ_DATABASE_URL not set, using in-memory store")
	}

	if cfg.Cache.Enabled {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return fail(fmt.Errorf("connect cache: %w", err))
		}
		closers = append(closers, func() { _ = c.Close() })
		locker = c.Locker(cfg.Cache.LockTTL)
		readiness = append(readiness, api.ReadinessCheck{Name: "cache", Check: c.HealthCheck})
		slog.Info("using redis owner lock")
	}

	ledger := credits.NewLedger(st, rates)
	svc := pipeline.NewService(pipeline.ServiceConfig{
		Generator: generator.NewClient(router),
		Records:   st,
		Ledger:    ledger,
		Locker:    locker,
		Events:    events,
		Limits:    limitsFrom(cfg.Quiz),
	})

	server := api.NewServer(cfg.Server, cfg.Auth.JWTSecret, api.Deps{
		Pipelines: svc,
		Records:   st,
		Balances:  ledger,
		Checker:   answer.NewChecker(router),
		Readiness: readiness,
	})
	return server.Router(), cleanup, nil
}

// newAIRouter registers every configured provider, Google first so it is the default, then
// pins each task to its configured provider and model.
func newAIRouter(cfg config.AIConfig) (*ai.Router, error) {
	router := ai.NewRouter()
	if cfg.Google.APIKey != "" {
		router.Register("google", ai.NewGoogleProvider(cfg.Google.APIKey))
	}
	if cfg.OpenAI.APIKey != "" {
		router.Register("openai", ai.NewOpenAIProvider(cfg.OpenAI.APIKey))
	}
	if cfg.DeepSeek.APIKey != "" {
		router.Register("deepseek", ai.NewDeepSeekProvider(cfg.DeepSeek.APIKey))
	}
	if cfg.OpenRouter.APIKey != "" {
		router.Register("openrouter", ai.NewOpenRouterProvider(cfg.OpenRouter.APIKey))
	}
	if cfg.Ollama.Enabled {
		router.Register("ollama", ai.NewOllamaProvider(strings.TrimSuffix(cfg.Ollama.URL, "/")))
	}
	if !router.HasProvider() {
		return nil, errors.New("no AI provider configured")
	}

	routes := []struct {
		task  ai.TaskType
		route config.TaskRoute
	}{
		{ai.TaskGeneration, cfg.Generation},
		{ai.TaskClearUp, cfg.ClearUp},
		{ai.TaskGrading, cfg.Grading},
	}
	for _, r := range routes {
		if r.route.Provider == "" && r.route.Model == "" {
			continue
		}
		name := r.route.Provider
		if name == "" {
			name = router.DefaultProvider()
		}
		if err := router.Route(r.task, name, r.route.Model); err != nil {
			return nil, err
		}
		slog.Info("AI task routed", "task", r.task.String(), "provider", name, "model", r.route.Model)
	}
	return router, nil
}

func newRates(cfg config.CreditsConfig) (credits.Rates, error) {
	rates := credits.Rates{
		TextPerPage:  decimal.NewFromFloat(cfg.TextPerPage),
		ImagePerPage: decimal.NewFromFloat(cfg.ImagePerPage),
		PerQuestion:  decimal.NewFromFloat(cfg.PerQuestion),
	}
	if cfg.RatesFile == "" {
		return rates, nil
	}
	return credits.LoadRates(cfg.RatesFile, rates)
}

func limitsFrom(cfg config.QuizConfig) quiz.Limits {
	return quiz.Limits{
		MinQuestions:    cfg.MinQuestions,
		MaxQuestions:    cfg.MaxQuestions,
		RoundSize:       cfg.RoundSize,
		ClearUpSegments: cfg.ClearUpSegments,
		MaxPages:        cfg.MaxPages,
		MinTextChars:    cfg.MinTextChars,
	}
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
