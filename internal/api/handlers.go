package api

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/p-n-ai/pai-quiz/internal/answer"
	"github.com/p-n-ai/pai-quiz/internal/export"
	"github.com/p-n-ai/pai-quiz/internal/extract"
	"github.com/p-n-ai/pai-quiz/internal/generator"
	"github.com/p-n-ai/pai-quiz/internal/pipeline"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
	"github.com/p-n-ai/pai-quiz/internal/store"
)

// Extracted documents can run to dozens of pages of text.
const maxBodyBytes = 8 << 20

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	for _, c := range s.deps.Readiness {
		if err := c.Check(r.Context()); err != nil {
			slog.Warn("readiness check failed", "check", c.Name, "error", err)
			respondError(w, http.StatusServiceUnavailable, "not_ready", c.Name+" not ready")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// sourceBody is the document part shared by quiz and clear-up requests. Text is raw extracted
// text with form feeds between pages; Subject is text already split into page segments.
type sourceBody struct {
	Subject  []string `json:"subject"`
	Text     string   `json:"text"`
	FileType string   `json:"file_type"`
	Pages    int      `json:"pages"`
	QTypes   []string `json:"qTypes"`
}

func (s *Server) document(b sourceBody) (extract.Document, error) {
	var doc extract.Document
	if b.Text != "" {
		doc = extract.SplitPages(b.Text)
		if b.Pages > 0 {
			doc.Pages = b.Pages
		}
	} else {
		doc = extract.FromSegments(b.Subject, b.Pages)
	}
	limits := s.deps.Pipelines.Limits()
	if err := extract.Validate(doc, limits.MinTextChars, limits.MaxPages); err != nil {
		return extract.Document{}, err
	}
	return doc, nil
}

type createQuizBody struct {
	sourceBody
	Difficulty string `json:"difficulty"`
	Number     int    `json:"number"`
}

func (s *Server) handleCreateQuiz(w http.ResponseWriter, r *http.Request) {
	var body createQuizBody
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(w, http.StatusBadRequest, string(pipeline.KindValidation), "Invalid request body.")
		return
	}
	doc, err := s.document(body.sourceBody)
	if err != nil {
		respondError(w, http.StatusBadRequest, string(pipeline.KindValidation), err.Error())
		return
	}

	rec, err := s.deps.Pipelines.CreateQuiz(r.Context(), pipeline.QuizRequest{
		OwnerID:    OwnerFromContext(r.Context()),
		Subject:    doc.Segments,
		Types:      body.QTypes,
		Difficulty: body.Difficulty,
		Count:      body.Number,
		Provenance: body.FileType,
		Pages:      doc.Pages,
	})
	if err != nil {
		respondPipelineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

type clearUpBody struct {
	sourceBody
	Title string `json:"title"`
}

func (s *Server) handleClearUp(w http.ResponseWriter, r *http.Request) {
	var body clearUpBody
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(w, http.StatusBadRequest, string(pipeline.KindValidation), "Invalid request body.")
		return
	}
	doc, err := s.document(body.sourceBody)
	if err != nil {
		respondError(w, http.StatusBadRequest, string(pipeline.KindValidation), err.Error())
		return
	}

	rec, err := s.deps.Pipelines.ClearUp(r.Context(), pipeline.ClearUpRequest{
		OwnerID:    OwnerFromContext(r.Context()),
		Segments:   doc.Segments,
		Types:      body.QTypes,
		Provenance: body.FileType,
		Pages:      doc.Pages,
		Title:      body.Title,
	})
	if err != nil {
		respondPipelineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	page := 0
	if raw := r.URL.Query().Get("page"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p < 0 {
			respondError(w, http.StatusBadRequest, string(pipeline.KindValidation), "page must be a non-negative integer")
			return
		}
		page = p
	}

	owner := OwnerFromContext(r.Context())
	records, err := s.deps.Records.List(r.Context(), owner, page)
	if err != nil {
		slog.Error("failed to list quizzes", "owner_id", owner, "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "Could not load quizzes.")
		return
	}
	total, err := s.deps.Records.Count(r.Context(), owner)
	if err != nil {
		slog.Error("failed to count quizzes", "owner_id", owner, "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "Could not load quizzes.")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"quizzes":   records,
		"length":    total,
		"page":      page,
		"page_size": store.PageSize,
	})
}

func (s *Server) handleCountQuizzes(w http.ResponseWriter, r *http.Request) {
	owner := OwnerFromContext(r.Context())
	total, err := s.deps.Records.Count(r.Context(), owner)
	if err != nil {
		slog.Error("failed to count quizzes", "owner_id", owner, "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "Could not count quizzes.")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"total": total})
}

func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadRecord(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteQuiz(w http.ResponseWriter, r *http.Request) {
	owner := OwnerFromContext(r.Context())
	err := s.deps.Records.Delete(r.Context(), owner, chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "Quiz not found.")
	case err != nil:
		slog.Error("failed to delete quiz", "owner_id", owner, "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "Could not delete quiz.")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleExportQuiz(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadRecord(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, rec); err != nil {
		slog.Error("failed to export quiz", "record_id", rec.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "Could not export quiz.")
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="quiz-`+rec.ID+`.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("export write interrupted", "record_id", rec.ID, "error", err)
	}
}

func (s *Server) handleCheckAnswer(w http.ResponseWriter, r *http.Request) {
	var req answer.Request
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, string(pipeline.KindValidation), "Invalid request body.")
		return
	}

	verdict, err := s.deps.Checker.Check(r.Context(), req)
	var rej *generator.RejectionError
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, verdict)
	case errors.Is(err, answer.ErrMissingInput):
		respondError(w, http.StatusBadRequest, string(pipeline.KindValidation), "Question and answer are required.")
	case errors.As(err, &rej):
		respondError(w, http.StatusBadRequest, string(pipeline.KindValidation), rej.Message)
	default:
		respondPipelineError(w, r, pipeline.Classify(err))
	}
}

func (s *Server) handleGetCredits(w http.ResponseWriter, r *http.Request) {
	owner := OwnerFromContext(r.Context())
	balance, err := s.deps.Balances.Balance(r.Context(), owner)
	if err != nil {
		slog.Error("failed to read balance", "owner_id", owner, "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "Could not fetch credits.")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"credits": balance.StringFixed(2)})
}

func (s *Server) loadRecord(w http.ResponseWriter, r *http.Request) (quiz.Record, bool) {
	owner := OwnerFromContext(r.Context())
	rec, err := s.deps.Records.Get(r.Context(), owner, chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "Quiz not found.")
		return quiz.Record{}, false
	case err != nil:
		slog.Error("failed to load quiz", "owner_id", owner, "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "Could not load quiz.")
		return quiz.Record{}, false
	}
	return rec, true
}
