package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/p-n-ai/pai-quiz/internal/generator"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

// SegmentCleaner extracts the questions already present in one segment.
type SegmentCleaner interface {
	ClearUp(ctx context.Context, req generator.ClearUpRequest) (generator.Payload, error)
}

// ClearUpOrchestrator cleans up to maxSegments segments concurrently and flattens the
// results in segment order.
type ClearUpOrchestrator struct {
	gen         SegmentCleaner
	maxSegments int
}

// NewClearUpOrchestrator creates a clear-up orchestrator.
func NewClearUpOrchestrator(gen SegmentCleaner, maxSegments int) *ClearUpOrchestrator {
	if maxSegments <= 0 {
		maxSegments = quiz.DefaultLimits().ClearUpSegments
	}
	return &ClearUpOrchestrator{gen: gen, maxSegments: maxSegments}
}

// Run returns the flattened questions and the number of segments dropped by the cap. The
// first failing segment fails the whole batch.
func (o *ClearUpOrchestrator) Run(ctx context.Context, segments []string, types []quiz.QuestionType) ([]quiz.Question, int, error) {
	selected := segments
	skipped := 0
	if len(selected) > o.maxSegments {
		skipped = len(selected) - o.maxSegments
		selected = selected[:o.maxSegments]
		slog.Warn("clear-up segments over cap dropped", "segments", len(segments), "cap", o.maxSegments, "skipped", skipped)
	}

	results := make([][]quiz.Question, len(selected))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxSegments)

	for i, segment := range selected {
		if strings.TrimSpace(segment) == "" {
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			payload, err := o.gen.ClearUp(gctx, generator.ClearUpRequest{
				Segment: segment,
				Types:   types,
			})
			if err != nil {
				slog.Warn("clear-up segment failed", "segment", i+1, "error", err)
				return err
			}
			results[i] = acceptQuestions(payload.Questions, types, 0)
			slog.Info("clear-up segment complete", "segment", i+1, "accepted", len(results[i]))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, Classify(err)
	}

	questions := []quiz.Question{}
	for _, r := range results {
		questions = append(questions, r...)
	}
	if len(questions) == 0 {
		return nil, 0, emptyResult()
	}
	return questions, skipped, nil
}
