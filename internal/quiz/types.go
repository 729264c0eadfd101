// Package quiz defines the quiz domain: question shapes, generation options and
// the persisted quiz record.
package quiz

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// QuestionType is the discriminant of a Question.
type QuestionType string

const (
	TypeMCQ QuestionType = "MCQ"
	TypeTF  QuestionType = "TF"
	TypeSAQ QuestionType = "SAQ"
	TypeFIB QuestionType = "FIB"
)

// QuestionTypes lists every supported question type in prompt order.
var QuestionTypes = []QuestionType{TypeMCQ, TypeTF, TypeSAQ, TypeFIB}

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case TypeMCQ, TypeTF, TypeSAQ, TypeFIB:
		return true
	}
	return false
}

// ParseQuestionTypes validates a requested set of question types and removes duplicates.
func ParseQuestionTypes(raw []string) ([]QuestionType, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("at least one question type is required")
	}
	seen := make(map[QuestionType]bool, len(raw))
	types := make([]QuestionType, 0, len(raw))
	for _, r := range raw {
		t := QuestionType(strings.ToUpper(strings.TrimSpace(r)))
		if !t.Valid() {
			return nil, fmt.Errorf("invalid question type %q", r)
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		types = append(types, t)
	}
	return types, nil
}

// Difficulty is the requested difficulty level of a generated quiz.
type Difficulty string

const (
	DifficultyBasic        Difficulty = "Basic"
	DifficultyRegular      Difficulty = "Regular"
	DifficultyIntermediate Difficulty = "Intermediate"
	DifficultyAdvanced     Difficulty = "Advanced"
	DifficultyExpert       Difficulty = "Expert"
)

// Difficulties lists the difficulty levels from easiest to hardest.
var Difficulties = []Difficulty{
	DifficultyBasic,
	DifficultyRegular,
	DifficultyIntermediate,
	DifficultyAdvanced,
	DifficultyExpert,
}

// ParseDifficulty matches a difficulty level case-insensitively.
func ParseDifficulty(raw string) (Difficulty, error) {
	for _, d := range Difficulties {
		if strings.EqualFold(string(d), strings.TrimSpace(raw)) {
			return d, nil
		}
	}
	return "", fmt.Errorf("invalid difficulty level %q", raw)
}

// Provenance is the declared origin kind of the source document.
type Provenance string

const (
	ProvenanceText  Provenance = "text pdf"
	ProvenanceImage Provenance = "image pdf"
)

// ParseProvenance accepts the upload kinds "text" and "image" as well as the stored forms.
func ParseProvenance(raw string) (Provenance, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "text", string(ProvenanceText):
		return ProvenanceText, nil
	case "image", string(ProvenanceImage):
		return ProvenanceImage, nil
	default:
		return "", fmt.Errorf("invalid file type %q", raw)
	}
}

// Kind tells which pipeline produced a record.
type Kind string

const (
	KindQuiz    Kind = "Quiz"
	KindClearUp Kind = "Clear-up"
)

// Record is the persisted result of a quiz or clear-up run. It is immutable once stored.
type Record struct {
	ID              string          `json:"id"`
	OwnerID         string          `json:"uid"`
	Kind            Kind            `json:"type"`
	CreatedAt       time.Time       `json:"created_at"`
	Provenance      Provenance      `json:"generated_from"`
	QuestionTypes   []QuestionType  `json:"question_types"`
	Difficulty      Difficulty      `json:"difficulty,omitempty"`
	Title           string          `json:"title"`
	QuestionCount   int             `json:"number"`
	CreditsCharged  decimal.Decimal `json:"credits"`
	SkippedSegments int             `json:"skipped_segments,omitempty"`
	Questions       []Question      `json:"questions"`
}

// Limits bounds what a caller may request.
type Limits struct {
	MinQuestions    int
	MaxQuestions    int
	RoundSize       int
	ClearUpSegments int
	MaxPages        int
	MinTextChars    int
}

// DefaultLimits returns the production limits.
func DefaultLimits() Limits {
	return Limits{
		MinQuestions:    5,
		MaxQuestions:    100,
		RoundSize:       20,
		ClearUpSegments: 10,
		MaxPages:        50,
		MinTextChars:    100,
	}
}

// CheckCount validates a requested question count against the limits.
func (l Limits) CheckCount(n int) error {
	if n < l.MinQuestions || n > l.MaxQuestions {
		return fmt.Errorf("number of questions must be between %d and %d, got %d", l.MinQuestions, l.MaxQuestions, n)
	}
	return nil
}
