package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-quiz/internal/ai"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

const validQuiz = `{
  "topic": "Cell Biology",
  "questions": [
    {"type": "MCQ", "question": "Which organelle produces ATP?", "options": [{"answer": "Mitochondria", "correct": true}, {"answer": "Nucleus", "correct": false}], "explanation": "Respiration."},
    {"type": "TF", "question": "Plant cells have walls.", "options": [{"answer": true, "correct": true}, {"answer": false, "correct": false}], "explanation": "Cellulose."},
    {"type": "SAQ", "question": "Name the cell's control centre.", "answers": "Nucleus", "explanation": "It holds DNA."},
    {"type": "FIB", "question": "Ribosomes make ____.", "answers": ["proteins", "protein"], "explanation": "Translation."}
  ]
}`

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced upper tag", "```JSON {\"a\":1}```", `{"a":1}`},
		{"bare tag", "json {\"a\":1}", `{"a":1}`},
		{"keeps json inside values", `{"topic":"json parsing"}`, `{"topic":"json parsing"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.raw); got != tt.want {
				t.Errorf("Clean() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse_ValidQuiz(t *testing.T) {
	p, err := Parse("```json\n"+validQuiz+"\n```", ModeQuiz)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.Topic != "Cell Biology" {
		t.Errorf("Topic = %q, want Cell Biology", p.Topic)
	}
	if len(p.Questions) != 4 {
		t.Fatalf("got %d questions, want 4", len(p.Questions))
	}
	wantTypes := []quiz.QuestionType{quiz.TypeMCQ, quiz.TypeTF, quiz.TypeSAQ, quiz.TypeFIB}
	for i, q := range p.Questions {
		if q.Type != wantTypes[i] {
			t.Errorf("question %d type = %s, want %s", i, q.Type, wantTypes[i])
		}
	}
	if len(p.Questions[3].Answers) != 2 {
		t.Errorf("FIB answers = %v, want 2 entries", p.Questions[3].Answers)
	}
}

func TestParse_Rejection(t *testing.T) {
	_, err := Parse(`{"status": "error", "message": "Invalid entry."}`, ModeQuiz)

	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("Parse() error = %v, want *RejectionError", err)
	}
	if rej.Message != "Invalid entry." {
		t.Errorf("Message = %q, want verbatim oracle message", rej.Message)
	}
}

func TestParse_Failures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		mode Mode
	}{
		{"not json", "Sure! Here is your quiz:", ModeQuiz},
		{"array", `[1,2,3]`, ModeQuiz},
		{"missing topic", `{"questions": []}`, ModeQuiz},
		{"missing questions", `{"topic": "x"}`, ModeClearUp},
		{"unknown type", `{"topic": "x", "questions": [{"type": "ESSAY", "question": "Discuss."}]}`, ModeQuiz},
		{"tf with three options", `{"topic": "x", "questions": [{"type": "TF", "question": "q", "options": [{"answer": true, "correct": true}, {"answer": false, "correct": false}, {"answer": true, "correct": false}]}]}`, ModeQuiz},
		{"tf string answers", `{"topic": "x", "questions": [{"type": "TF", "question": "q", "options": [{"answer": "True", "correct": true}, {"answer": "False", "correct": false}]}]}`, ModeQuiz},
		{"tf both true", `{"topic": "x", "questions": [{"type": "TF", "question": "q", "options": [{"answer": true, "correct": true}, {"answer": true, "correct": false}]}]}`, ModeQuiz},
		{"mcq without correct", `{"topic": "x", "questions": [{"type": "MCQ", "question": "q", "options": [{"answer": "a", "correct": false}, {"answer": "b", "correct": false}]}]}`, ModeQuiz},
		{"saq array answers", `{"topic": "x", "questions": [{"type": "SAQ", "question": "q", "answers": ["a"]}]}`, ModeQuiz},
		{"malformed rejection", `{"status": "error"}`, ModeQuiz},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw, tt.mode)
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Parse() error = %v, want *ParseError", err)
			}
		})
	}
}

func TestParse_ClearUpWithoutTopic(t *testing.T) {
	p, err := Parse(`{"questions": [{"type": "SAQ", "question": "Define osmosis.", "answers": "Diffusion of water"}]}`, ModeClearUp)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.Topic != "" || len(p.Questions) != 1 {
		t.Errorf("Parse() = %+v", p)
	}
}

func TestParse_EmptyQuestionsIsNotAParseFailure(t *testing.T) {
	p, err := Parse(`{"topic": "x", "questions": []}`, ModeQuiz)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.Questions == nil || len(p.Questions) != 0 {
		t.Errorf("Questions = %#v, want empty non-nil slice", p.Questions)
	}
}

func TestClient_GenerateQuiz(t *testing.T) {
	mock := ai.NewMockProvider(validQuiz)
	client := NewClient(mock, WithMaxTokens(1000), WithTemperature(0.2))

	p, err := client.GenerateQuiz(context.Background(), QuizRequest{
		Subject:    "Cells are the basic unit of life.",
		Types:      []quiz.QuestionType{quiz.TypeMCQ, quiz.TypeTF},
		Difficulty: quiz.DifficultyBasic,
		Count:      4,
		Exclude:    []string{"What is a cell?"},
	})
	if err != nil {
		t.Fatalf("GenerateQuiz() error = %v", err)
	}
	if len(p.Questions) != 4 {
		t.Errorf("got %d questions, want 4", len(p.Questions))
	}

	req := mock.LastRequest
	if req.Task != ai.TaskGeneration {
		t.Errorf("Task = %s, want generation", req.Task)
	}
	if !req.JSONOutput {
		t.Error("JSONOutput should be requested")
	}
	if req.MaxTokens != 1000 || req.Temperature != 0.2 {
		t.Errorf("MaxTokens/Temperature = %d/%v, want 1000/0.2", req.MaxTokens, req.Temperature)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
		t.Fatalf("unexpected messages: %+v", req.Messages)
	}
	if !strings.Contains(req.Messages[1].Content, `["What is a cell?"]`) {
		t.Error("prompt should carry the exclusion list")
	}
}

func TestClient_ClearUpUsesClearUpTask(t *testing.T) {
	mock := ai.NewMockProvider(`{"questions": []}`)
	client := NewClient(mock)

	if _, err := client.ClearUp(context.Background(), ClearUpRequest{
		Segment: "1. What is 2+2? (a) 3 (b) 4",
		Types:   []quiz.QuestionType{quiz.TypeMCQ},
	}); err != nil {
		t.Fatalf("ClearUp() error = %v", err)
	}
	if mock.LastRequest.Task != ai.TaskClearUp {
		t.Errorf("Task = %s, want clearup", mock.LastRequest.Task)
	}
}

func TestClient_TransportError(t *testing.T) {
	mock := &ai.MockProvider{Err: context.DeadlineExceeded}
	client := NewClient(mock)

	_, err := client.GenerateQuiz(context.Background(), QuizRequest{Subject: "x", Count: 1})

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("TransportError should unwrap to the provider error")
	}
	if mock.Calls() != 1 {
		t.Errorf("Calls() = %d, want exactly 1 (no retries)", mock.Calls())
	}
}

func TestClient_ParseFailureIsNotRetried(t *testing.T) {
	mock := ai.NewScriptedMockProvider("not json at all", validQuiz)
	client := NewClient(mock)

	_, err := client.GenerateQuiz(context.Background(), QuizRequest{Subject: "x", Count: 1})

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if mock.Calls() != 1 {
		t.Errorf("Calls() = %d, want 1", mock.Calls())
	}
}

func TestExclusionList(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		want  string
	}{
		{"nil", nil, "[]"},
		{"collapses whitespace", []string{"  What   is\n a cell? "}, `["What is a cell?"]`},
		{"drops blanks", []string{"A?", "   ", "B?"}, `["A?","B?"]`},
		{"no html escaping", []string{"Is 1 < 2 & 3 > 2?"}, `["Is 1 < 2 & 3 > 2?"]`},
		{"nfc", []string{"Café?"}, "[\"Café?\"]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExclusionList(tt.texts); got != tt.want {
				t.Errorf("ExclusionList() = %s, want %s", got, tt.want)
			}
		})
	}
}
