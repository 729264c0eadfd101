// Package generator turns quiz requests into oracle prompts and oracle replies into
// validated questions.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/p-n-ai/pai-quiz/internal/ai"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

const (
	defaultMaxTokens   = 8192
	defaultTemperature = 0.7
)

// Payload is a parsed, contract-conforming oracle reply.
type Payload struct {
	Topic     string          `json:"topic"`
	Questions []quiz.Question `json:"questions"`
}

// Client submits prompts to the oracle and parses what comes back. It never retries.
type Client struct {
	completer   ai.Completer
	maxTokens   int
	temperature float64
}

// Option configures a Client.
type Option func(*Client)

// WithMaxTokens caps the oracle's output length.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		c.maxTokens = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Client) {
		c.temperature = t
	}
}

// NewClient creates a generator client over an AI completer (usually an *ai.Router).
func NewClient(completer ai.Completer, opts ...Option) *Client {
	c := &Client{
		completer:   completer,
		maxTokens:   defaultMaxTokens,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateQuiz runs one quiz generation round.
func (c *Client) GenerateQuiz(ctx context.Context, req QuizRequest) (Payload, error) {
	return c.Generate(ctx, ai.TaskGeneration, QuizPrompt(req), ModeQuiz)
}

// ClearUp extracts the questions present in one segment.
func (c *Client) ClearUp(ctx context.Context, req ClearUpRequest) (Payload, error) {
	return c.Generate(ctx, ai.TaskClearUp, ClearUpPrompt(req), ModeClearUp)
}

// Generate submits a rendered prompt and parses the reply. Errors are *TransportError,
// *ParseError or *RejectionError.
func (c *Client) Generate(ctx context.Context, task ai.TaskType, prompt string, mode Mode) (Payload, error) {
	resp, err := c.completer.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Task:        task,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		JSONOutput:  true,
	})
	if err != nil {
		return Payload{}, &TransportError{Err: err}
	}

	return Parse(resp.Content, mode)
}

// Parse cleans a raw oracle reply and decodes it against the response contract.
func Parse(raw string, mode Mode) (Payload, error) {
	cleaned := Clean(raw)
	doc := []byte(cleaned)

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(doc, &probe); err != nil {
		return Payload{}, &ParseError{Raw: raw, Err: fmt.Errorf("not a JSON object: %w", err)}
	}

	if _, ok := probe["status"]; ok {
		if err := validate(rejectSchema, doc); err != nil {
			return Payload{}, &ParseError{Raw: raw, Err: err}
		}
		var rej struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(doc, &rej); err != nil {
			return Payload{}, &ParseError{Raw: raw, Err: err}
		}
		return Payload{}, &RejectionError{Message: rej.Message}
	}

	if err := validate(schemaFor(mode), doc); err != nil {
		return Payload{}, &ParseError{Raw: raw, Err: err}
	}

	var p Payload
	if err := json.Unmarshal(doc, &p); err != nil {
		return Payload{}, &ParseError{Raw: raw, Err: fmt.Errorf("decode %s payload: %w", mode, err)}
	}
	// A question that breaks its type's shape means the reply ignored the contract, so none of
	// it is trusted. Off-type questions are well formed and are filtered later by the pipeline.
	for i, q := range p.Questions {
		if err := q.Validate(); err != nil {
			return Payload{}, &ParseError{Raw: raw, Err: fmt.Errorf("question %d: %w", i, err)}
		}
	}
	if p.Questions == nil {
		p.Questions = []quiz.Question{}
	}
	p.Topic = strings.TrimSpace(p.Topic)

	return p, nil
}

// Clean strips code fences and a leading "json" language tag from an oracle reply.
func Clean(raw string) string {
	s := strings.ReplaceAll(raw, "`", "")
	s = strings.TrimSpace(s)
	if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
		s = strings.TrimSpace(s[4:])
	}
	return s
}

// ExclusionList renders question texts as a JSON array for the prompt.
func ExclusionList(texts []string) string {
	normalized := make([]string, 0, len(texts))
	for _, t := range texts {
		t = norm.NFC.String(strings.Join(strings.Fields(t), " "))
		if t != "" {
			normalized = append(normalized, t)
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return "[]"
	}
	return strings.TrimSpace(buf.String())
}

// QuestionTexts returns the question text of every question, in order.
func QuestionTexts(questions []quiz.Question) []string {
	texts := make([]string, len(questions))
	for i, q := range questions {
		texts[i] = q.Question
	}
	return texts
}
