// Package api exposes the quiz pipelines over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"

	"github.com/p-n-ai/pai-quiz/internal/answer"
	"github.com/p-n-ai/pai-quiz/internal/pipeline"
	"github.com/p-n-ai/pai-quiz/internal/platform/config"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
	"github.com/p-n-ai/pai-quiz/internal/store"
)

// Pipelines runs billed generation work.
type Pipelines interface {
	CreateQuiz(ctx context.Context, req pipeline.QuizRequest) (quiz.Record, error)
	ClearUp(ctx context.Context, req pipeline.ClearUpRequest) (quiz.Record, error)
	Limits() quiz.Limits
}

// Balances reports an owner's remaining credits.
type Balances interface {
	Balance(ctx context.Context, ownerID string) (decimal.Decimal, error)
}

// AnswerChecker grades a single answer.
type AnswerChecker interface {
	Check(ctx context.Context, req answer.Request) (answer.Verdict, error)
}

// ReadinessCheck is one dependency probed by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps holds what the handlers call into.
type Deps struct {
	Pipelines Pipelines
	Records   store.RecordStore
	Balances  Balances
	Checker   AnswerChecker
	Readiness []ReadinessCheck
}

// Server is the HTTP API server.
type Server struct {
	config config.ServerConfig
	router *chi.Mux
	deps   Deps
	auth   *AuthMiddleware
}

// NewServer creates a server. jwtSecret verifies the HS256 access tokens callers present.
func NewServer(cfg config.ServerConfig, jwtSecret string, deps Deps) *Server {
	s := &Server{
		config: cfg,
		deps:   deps,
		auth:   NewAuthMiddleware([]byte(jwtSecret)),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)
	if s.config.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.RequestTimeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Authenticate)

		r.Get("/credits", s.handleGetCredits)
		r.Post("/clearups", s.handleClearUp)
		r.Post("/answers/check", s.handleCheckAnswer)

		r.Route("/quizzes", func(r chi.Router) {
			r.Post("/", s.handleCreateQuiz)
			r.Get("/", s.handleListQuizzes)
			r.Get("/count", s.handleCountQuizzes)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetQuiz)
				r.Delete("/", s.handleDeleteQuiz)
				r.Get("/export", s.handleExportQuiz)
			})
		})
	})

	s.router = r
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
