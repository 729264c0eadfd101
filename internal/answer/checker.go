// Package answer grades a free-text answer to a generated question.
package answer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/p-n-ai/pai-quiz/internal/ai"
	"github.com/p-n-ai/pai-quiz/internal/generator"
)

// ErrMissingInput is returned when the question or answer is blank.
var ErrMissingInput = errors.New("question and answer are required")

const defaultInvalidReason = "Invalid input: not a question or not an answer."

// Request is one answer to check.
type Request struct {
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	Explanation string `json:"explanation"`
}

// Verdict is the grading outcome.
type Verdict struct {
	Valid   bool `json:"valid"`
	Correct bool `json:"correct"`
}

// Checker asks the oracle whether an answer is correct. Checks are not billed.
type Checker struct {
	completer ai.Completer
}

// NewChecker creates a checker over an AI completer.
func NewChecker(completer ai.Completer) *Checker {
	return &Checker{completer: completer}
}

// Check grades req. An oracle verdict of {valid:false} comes back as a
// *generator.RejectionError carrying the oracle's reason.
func (c *Checker) Check(ctx context.Context, req Request) (Verdict, error) {
	if strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.Answer) == "" {
		return Verdict{}, ErrMissingInput
	}

	resp, err := c.completer.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "user", Content: gradingPrompt(req)},
		},
		Task:       ai.TaskGrading,
		MaxTokens:  256,
		JSONOutput: true,
	})
	if err != nil {
		return Verdict{}, &generator.TransportError{Err: err}
	}

	return parseVerdict(resp.Content)
}

func parseVerdict(raw string) (Verdict, error) {
	var out struct {
		Valid   *bool  `json:"valid"`
		Correct *bool  `json:"correct"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(generator.Clean(raw)), &out); err != nil {
		return Verdict{}, &generator.ParseError{Raw: raw, Err: fmt.Errorf("decode verdict: %w", err)}
	}
	if out.Valid == nil {
		return Verdict{}, &generator.ParseError{Raw: raw, Err: errors.New("verdict has no valid field")}
	}
	if !*out.Valid {
		reason := strings.TrimSpace(out.Reason)
		if reason == "" {
			reason = defaultInvalidReason
		}
		return Verdict{}, &generator.RejectionError{Message: reason}
	}
	if out.Correct == nil {
		return Verdict{}, &generator.ParseError{Raw: raw, Err: errors.New("valid verdict has no correct field")}
	}
	return Verdict{Valid: true, Correct: *out.Correct}, nil
}

func gradingPrompt(req Request) string {
	var sb strings.Builder

	sb.WriteString("You are given two inputs:\n")
	fmt.Fprintf(&sb, "question: {%s}\n\n", req.Question)
	fmt.Fprintf(&sb, "answer: {%s}\n\n", req.Answer)

	sb.WriteString("Your task:\n")
	sb.WriteString("1. Check if the inputs are valid: question must be a genuine question, answer must be a genuine attempt to answer it.\n")
	fmt.Fprintf(&sb, "   If either is invalid, output only: { \"valid\": false, \"reason\": %q }\n", defaultInvalidReason)
	sb.WriteString("2. If valid, decide whether the answer correctly addresses the question, compared to this explanation:\n")
	fmt.Fprintf(&sb, "explanation: {%s}\n\n", req.Explanation)
	sb.WriteString("If correct, output: { \"valid\": true, \"correct\": true }\n")
	sb.WriteString("If incorrect, output: { \"valid\": true, \"correct\": false }\n\n")
	sb.WriteString("Output must be a single JSON object with no text outside it.\n")

	return sb.String()
}
