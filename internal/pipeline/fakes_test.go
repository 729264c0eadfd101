package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/p-n-ai/pai-quiz/internal/generator"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

func mcq(text string) quiz.Question {
	return quiz.Question{
		Type:     quiz.TypeMCQ,
		Question: text,
		Choices: []quiz.Choice{
			{Answer: "yes", Correct: true},
			{Answer: "no", Correct: false},
		},
		Explanation: "because",
	}
}

func mcqs(prefix string, n int) []quiz.Question {
	out := make([]quiz.Question, n)
	for i := range n {
		out[i] = mcq(fmt.Sprintf("%s-%d?", prefix, i+1))
	}
	return out
}

// fakeGenerator records every request and answers through the configured functions.
type fakeGenerator struct {
	mu        sync.Mutex
	quizReqs  []generator.QuizRequest
	clearReqs []generator.ClearUpRequest
	onQuiz    func(round int, req generator.QuizRequest) (generator.Payload, error)
	onClearUp func(req generator.ClearUpRequest) (generator.Payload, error)
}

func (f *fakeGenerator) GenerateQuiz(ctx context.Context, req generator.QuizRequest) (generator.Payload, error) {
	if err := ctx.Err(); err != nil {
		return generator.Payload{}, &generator.TransportError{Err: err}
	}
	f.mu.Lock()
	f.quizReqs = append(f.quizReqs, req)
	round := len(f.quizReqs)
	f.mu.Unlock()

	if f.onQuiz == nil {
		return generator.Payload{Topic: "Topic", Questions: mcqs(fmt.Sprintf("r%d", round), req.Count)}, nil
	}
	return f.onQuiz(round, req)
}

func (f *fakeGenerator) ClearUp(_ context.Context, req generator.ClearUpRequest) (generator.Payload, error) {
	f.mu.Lock()
	f.clearReqs = append(f.clearReqs, req)
	f.mu.Unlock()

	if f.onClearUp == nil {
		return generator.Payload{Questions: []quiz.Question{mcq(req.Segment + "?")}}, nil
	}
	return f.onClearUp(req)
}

func (f *fakeGenerator) quizCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.quizReqs)
}

func (f *fakeGenerator) clearUpCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clearReqs)
}
