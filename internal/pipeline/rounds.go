package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/p-n-ai/pai-quiz/internal/generator"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

// QuizGenerator runs one generation round.
type QuizGenerator interface {
	GenerateQuiz(ctx context.Context, req generator.QuizRequest) (generator.Payload, error)
}

// Result is the accumulated output of a run.
type Result struct {
	Topic     string
	Questions []quiz.Question
}

// RoundOrchestrator runs a plan's rounds strictly in order. Each round is told about every
// question accepted so far, so rounds can never run concurrently.
type RoundOrchestrator struct {
	gen QuizGenerator
}

// NewRoundOrchestrator creates a round orchestrator.
func NewRoundOrchestrator(gen QuizGenerator) *RoundOrchestrator {
	return &RoundOrchestrator{gen: gen}
}

// Run executes the plan. Any failure aborts the whole run and nothing accumulated so far is
// returned.
func (o *RoundOrchestrator) Run(ctx context.Context, subject []string, types []quiz.QuestionType, difficulty quiz.Difficulty, plan []int) (Result, error) {
	joined := strings.Join(subject, "\n\n")
	accepted := []quiz.Question{}
	var topic string

	for i, n := range plan {
		payload, err := o.gen.GenerateQuiz(ctx, generator.QuizRequest{
			Subject:    joined,
			Types:      types,
			Difficulty: difficulty,
			Count:      n,
			Exclude:    generator.QuestionTexts(accepted),
		})
		if err != nil {
			slog.Warn("quiz round failed", "round", i+1, "rounds", len(plan), "size", n, "error", err)
			return Result{}, Classify(err)
		}

		got := acceptQuestions(payload.Questions, types, n)
		accepted = append(accepted, got...)
		topic = payload.Topic

		slog.Info("quiz round complete",
			"round", i+1,
			"rounds", len(plan),
			"size", n,
			"returned", len(payload.Questions),
			"accepted", len(got),
		)
	}

	if len(accepted) == 0 {
		return Result{}, emptyResult()
	}
	return Result{Topic: topic, Questions: accepted}, nil
}

// acceptQuestions keeps questions of the requested types, in order, up to limit. A limit of
// zero or less means no limit. Every question here already passed Validate in the generator,
// where a malformed question fails the whole round as a parse failure. A well-formed question
// of a type nobody asked for is only filtered out, because the rest of the reply is usable.
func acceptQuestions(questions []quiz.Question, types []quiz.QuestionType, limit int) []quiz.Question {
	allowed := make(map[quiz.QuestionType]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}

	out := make([]quiz.Question, 0, len(questions))
	for _, q := range questions {
		if len(allowed) > 0 && !allowed[q.Type] {
			slog.Warn("dropping question of unrequested type", "type", q.Type)
			continue
		}
		if limit > 0 && len(out) == limit {
			slog.Warn("oracle returned more questions than requested", "requested", limit, "returned", len(questions))
			break
		}
		out = append(out, q)
	}
	return out
}
