// Package pipeline runs the credit-metered quiz and clear-up pipelines.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/p-n-ai/pai-quiz/internal/credits"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
	"github.com/p-n-ai/pai-quiz/internal/store"
)

// Generator is the oracle capability both pipelines share.
type Generator interface {
	QuizGenerator
	SegmentCleaner
}

// ServiceConfig holds dependencies for the pipeline service.
type ServiceConfig struct {
	Generator Generator
	Records   store.RecordStore
	Ledger    *credits.Ledger
	Locker    credits.Locker    // defaults to an in-process locker
	Events    store.EventLogger // defaults to a no-op logger
	Limits    quiz.Limits       // zero value means quiz.DefaultLimits()
	Now       func() time.Time
}

// Service validates, prices, runs and persists quiz and clear-up requests.
type Service struct {
	rounds  *RoundOrchestrator
	clearUp *ClearUpOrchestrator
	records store.RecordStore
	ledger  *credits.Ledger
	locker  credits.Locker
	events  store.EventLogger
	limits  quiz.Limits
	now     func() time.Time
}

// NewService creates a pipeline service.
func NewService(cfg ServiceConfig) *Service {
	limits := cfg.Limits
	if limits == (quiz.Limits{}) {
		limits = quiz.DefaultLimits()
	}
	locker := cfg.Locker
	if locker == nil {
		locker = credits.NewLocalLocker()
	}
	events := cfg.Events
	if events == nil {
		events = store.NopEventLogger{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		rounds:  NewRoundOrchestrator(cfg.Generator),
		clearUp: NewClearUpOrchestrator(cfg.Generator, limits.ClearUpSegments),
		records: cfg.Records,
		ledger:  cfg.Ledger,
		locker:  locker,
		events:  events,
		limits:  limits,
		now:     now,
	}
}

// Limits returns the limits the service validates against.
func (s *Service) Limits() quiz.Limits {
	return s.limits
}

// QuizRequest is a caller's request to author a new quiz.
type QuizRequest struct {
	OwnerID    string
	Subject    []string
	Types      []string
	Difficulty string
	Count      int
	Provenance string
	// Pages is the measured page count of the source; zero means one page per segment.
	Pages int
}

// ClearUpRequest is a caller's request to extract the questions already in a document.
type ClearUpRequest struct {
	OwnerID    string
	Segments   []string
	Types      []string
	Provenance string
	Pages      int
	Title      string
}

type validated struct {
	types      []quiz.QuestionType
	provenance quiz.Provenance
	pages      int
}

func (s *Service) validateCommon(owner string, segments, types []string, provenance string, pages int) (validated, error) {
	if strings.TrimSpace(owner) == "" {
		return validated{}, validationError("owner is required")
	}
	if !hasText(segments) {
		return validated{}, validationError("subject is empty")
	}
	qTypes, err := quiz.ParseQuestionTypes(types)
	if err != nil {
		return validated{}, validationError("%v", err)
	}
	prov, err := quiz.ParseProvenance(provenance)
	if err != nil {
		return validated{}, validationError("%v", err)
	}
	if pages == 0 {
		pages = len(segments)
	}
	if pages < 0 {
		return validated{}, validationError("page count must be positive, got %d", pages)
	}
	if s.limits.MaxPages > 0 && pages > s.limits.MaxPages {
		return validated{}, validationError("document has %d pages, the maximum is %d", pages, s.limits.MaxPages)
	}
	return validated{types: qTypes, provenance: prov, pages: pages}, nil
}

// CreateQuiz authors a new quiz of req.Count questions over as many rounds as needed. On
// success the record is persisted and the owner charged for the questions accepted.
func (s *Service) CreateQuiz(ctx context.Context, req QuizRequest) (quiz.Record, error) {
	v, err := s.validateCommon(req.OwnerID, req.Subject, req.Types, req.Provenance, req.Pages)
	if err != nil {
		return quiz.Record{}, err
	}
	difficulty, err := quiz.ParseDifficulty(req.Difficulty)
	if err != nil {
		return quiz.Record{}, validationError("%v", err)
	}
	if err := s.limits.CheckCount(req.Count); err != nil {
		return quiz.Record{}, validationError("%v", err)
	}
	plan, err := Plan(req.Count, s.limits.RoundSize)
	if err != nil {
		return quiz.Record{}, validationError("%v", err)
	}

	rates := s.ledger.Rates()
	base, err := rates.Estimate(v.pages, v.provenance)
	if err != nil {
		return quiz.Record{}, validationError("%v", err)
	}
	preflight := rates.QuizPreflight(base, req.Count)

	unlock, err := s.lockAndPreflight(ctx, req.OwnerID, preflight)
	if err != nil {
		return quiz.Record{}, err
	}
	defer unlock()

	// Once dispatched, a run is not cancelled by the caller going away.
	work := context.WithoutCancel(ctx)

	slog.Info("quiz generation started",
		"owner_id", req.OwnerID,
		"count", req.Count,
		"rounds", len(plan),
		"difficulty", difficulty,
		"preflight", preflight.String(),
	)

	result, err := s.rounds.Run(work, req.Subject, v.types, difficulty, plan)
	if err != nil {
		s.logFailure(req.OwnerID, quiz.KindQuiz, err)
		return quiz.Record{}, err
	}

	rec := quiz.Record{
		OwnerID:        req.OwnerID,
		Kind:           quiz.KindQuiz,
		CreatedAt:      s.now().UTC(),
		Provenance:     v.provenance,
		QuestionTypes:  v.types,
		Difficulty:     difficulty,
		Title:          result.Topic,
		QuestionCount:  len(result.Questions),
		CreditsCharged: credits.Finalize(base, rates.PerQuestion, len(result.Questions)),
		Questions:      result.Questions,
	}
	if err := s.persistAndCharge(work, &rec); err != nil {
		return quiz.Record{}, err
	}

	s.logEvent(ctx, store.EventQuizCreated, rec)
	return rec, nil
}

// ClearUp extracts the questions in the first segments of a document and charges the page
// estimate. Segments past the cap are reported in SkippedSegments.
func (s *Service) ClearUp(ctx context.Context, req ClearUpRequest) (quiz.Record, error) {
	v, err := s.validateCommon(req.OwnerID, req.Segments, req.Types, req.Provenance, req.Pages)
	if err != nil {
		return quiz.Record{}, err
	}

	base, err := s.ledger.Rates().Estimate(v.pages, v.provenance)
	if err != nil {
		return quiz.Record{}, validationError("%v", err)
	}
	charge := credits.Finalize(base, decimal.Zero, 0)

	unlock, err := s.lockAndPreflight(ctx, req.OwnerID, charge)
	if err != nil {
		return quiz.Record{}, err
	}
	defer unlock()

	work := context.WithoutCancel(ctx)

	slog.Info("clear-up started",
		"owner_id", req.OwnerID,
		"segments", len(req.Segments),
		"charge", charge.String(),
	)

	questions, skipped, err := s.clearUp.Run(work, req.Segments, v.types)
	if err != nil {
		s.logFailure(req.OwnerID, quiz.KindClearUp, err)
		return quiz.Record{}, err
	}

	now := s.now().UTC()
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = fmt.Sprintf("Quiz-%d", now.UnixMilli())
	}

	rec := quiz.Record{
		OwnerID:         req.OwnerID,
		Kind:            quiz.KindClearUp,
		CreatedAt:       now,
		Provenance:      v.provenance,
		QuestionTypes:   v.types,
		Title:           title,
		QuestionCount:   len(questions),
		CreditsCharged:  charge,
		SkippedSegments: skipped,
		Questions:       questions,
	}
	if err := s.persistAndCharge(work, &rec); err != nil {
		return quiz.Record{}, err
	}

	s.logEvent(ctx, store.EventClearUpCreated, rec)
	return rec, nil
}

// lockAndPreflight serializes the owner's preflight..commit window and checks the balance.
// The returned unlock must be called once the charge is committed or abandoned.
func (s *Service) lockAndPreflight(ctx context.Context, owner string, amount decimal.Decimal) (func(), error) {
	unlock, err := s.locker.Lock(ctx, owner)
	if err != nil {
		return nil, ledgerFailure(fmt.Errorf("lock owner: %w", err))
	}

	if err := s.ledger.Preflight(ctx, owner, amount); err != nil {
		unlock()
		if errors.Is(err, credits.ErrInsufficientCredits) {
			slog.Info("preflight rejected", "owner_id", owner, "amount", amount.String())
			return nil, insufficientCredits(err)
		}
		return nil, ledgerFailure(err)
	}
	return unlock, nil
}

// persistAndCharge stores the record and only then debits the owner. If the debit fails
// the record is removed again so nothing stays persisted without being paid for.
func (s *Service) persistAndCharge(ctx context.Context, rec *quiz.Record) error {
	if err := s.records.Insert(ctx, rec); err != nil {
		slog.Error("persist record failed", "owner_id", rec.OwnerID, "kind", rec.Kind, "error", err)
		return persistenceFailure(err)
	}

	if err := s.ledger.Commit(ctx, rec.OwnerID, rec.CreditsCharged); err != nil {
		slog.Error("commit charge failed", "owner_id", rec.OwnerID, "record_id", rec.ID, "error", err)
		if derr := s.records.Delete(ctx, rec.OwnerID, rec.ID); derr != nil {
			slog.Error("compensating delete failed", "owner_id", rec.OwnerID, "record_id", rec.ID, "error", derr)
		}
		if errors.Is(err, credits.ErrInsufficientCredits) {
			return insufficientCredits(err)
		}
		return ledgerFailure(err)
	}

	slog.Info("record created",
		"owner_id", rec.OwnerID,
		"record_id", rec.ID,
		"kind", rec.Kind,
		"question_count", rec.QuestionCount,
		"credits", rec.CreditsCharged.StringFixed(credits.Places),
	)
	return nil
}

// logEvent records a committed run. ctx is the caller's context: when it is already done the
// record is stored and charged but the response will not reach anyone, so the record id is
// logged for support to hand back.
func (s *Service) logEvent(ctx context.Context, eventType string, rec quiz.Record) {
	undelivered := ctx.Err() != nil
	if undelivered {
		slog.Warn("caller gone before result delivered",
			"owner_id", rec.OwnerID,
			"record_id", rec.ID,
			"kind", rec.Kind,
			"credits", rec.CreditsCharged.StringFixed(credits.Places),
			"error", ctx.Err(),
		)
	}

	if err := s.events.LogEvent(store.Event{
		OwnerID:   rec.OwnerID,
		RecordID:  rec.ID,
		EventType: eventType,
		Data: map[string]any{
			"question_count":   rec.QuestionCount,
			"credits":          rec.CreditsCharged.StringFixed(credits.Places),
			"skipped_segments": rec.SkippedSegments,
			"undelivered":      undelivered,
		},
	}); err != nil {
		slog.Warn("log event failed", "type", eventType, "error", err)
	}
}

func (s *Service) logFailure(owner string, kind quiz.Kind, err error) {
	slog.Warn("generation failed", "owner_id", owner, "kind", kind, "failure", KindOf(err), "error", err)
	if lerr := s.events.LogEvent(store.Event{
		OwnerID:   owner,
		EventType: store.EventGenerationFailed,
		Data: map[string]any{
			"pipeline": string(kind),
			"failure":  string(KindOf(err)),
		},
	}); lerr != nil {
		slog.Warn("log event failed", "type", store.EventGenerationFailed, "error", lerr)
	}
}

func hasText(segments []string) bool {
	for _, s := range segments {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}
