package quiz

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Choice is one option of a multiple choice question.
type Choice struct {
	Answer  string `json:"answer"`
	Correct bool   `json:"correct"`
}

// TruthOption is one of the two options of a true/false question.
type TruthOption struct {
	Answer  bool `json:"answer"`
	Correct bool `json:"correct"`
}

// Question is a tagged union keyed by Type. Choices is set for MCQ, TruthOptions for
// TF and Answers for SAQ and FIB. FIB may carry several acceptable answers.
type Question struct {
	Type         QuestionType
	Question     string
	Choices      []Choice
	TruthOptions []TruthOption
	Answers      []string
	Explanation  string
}

// wireQuestion is the JSON shape shared with the generator and the store.
type wireQuestion struct {
	Type        QuestionType    `json:"type"`
	Question    string          `json:"question"`
	Options     json.RawMessage `json:"options,omitempty"`
	Answers     json.RawMessage `json:"answers,omitempty"`
	Explanation string          `json:"explanation,omitempty"`
}

func (q Question) MarshalJSON() ([]byte, error) {
	w := wireQuestion{
		Type:        q.Type,
		Question:    q.Question,
		Explanation: q.Explanation,
	}

	var err error
	switch q.Type {
	case TypeMCQ:
		w.Options, err = json.Marshal(q.Choices)
	case TypeTF:
		w.Options, err = json.Marshal(q.TruthOptions)
	case TypeSAQ:
		if len(q.Answers) != 1 {
			return nil, fmt.Errorf("SAQ needs exactly one answer, got %d", len(q.Answers))
		}
		w.Answers, err = json.Marshal(q.Answers[0])
	case TypeFIB:
		if len(q.Answers) == 1 {
			w.Answers, err = json.Marshal(q.Answers[0])
		} else {
			w.Answers, err = json.Marshal(q.Answers)
		}
	default:
		return nil, fmt.Errorf("unknown question type %q", q.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("marshal %s question: %w", q.Type, err)
	}

	return json.Marshal(w)
}

func (q *Question) UnmarshalJSON(data []byte) error {
	var w wireQuestion
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	out := Question{
		Type:        w.Type,
		Question:    w.Question,
		Explanation: w.Explanation,
	}

	switch w.Type {
	case TypeMCQ:
		if err := json.Unmarshal(w.Options, &out.Choices); err != nil {
			return fmt.Errorf("decode MCQ options: %w", err)
		}
	case TypeTF:
		if err := json.Unmarshal(w.Options, &out.TruthOptions); err != nil {
			return fmt.Errorf("decode TF options: %w", err)
		}
	case TypeSAQ, TypeFIB:
		answers, err := decodeAnswers(w.Answers)
		if err != nil {
			return fmt.Errorf("decode %s answers: %w", w.Type, err)
		}
		out.Answers = answers
	default:
		return fmt.Errorf("unknown question type %q", w.Type)
	}

	*q = out
	return nil
}

// decodeAnswers accepts either a single string or an array of strings.
func decodeAnswers(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("answers missing")
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, err
	}
	return many, nil
}

// Validate checks the per-variant invariants of a question.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("%s question has empty text", q.Type)
	}

	switch q.Type {
	case TypeMCQ:
		if len(q.Choices) < 2 {
			return fmt.Errorf("MCQ needs at least 2 options, got %d", len(q.Choices))
		}
		correct := 0
		for _, c := range q.Choices {
			if c.Correct {
				correct++
			}
		}
		if correct == 0 {
			return fmt.Errorf("MCQ has no correct option")
		}
	case TypeTF:
		if len(q.TruthOptions) != 2 {
			return fmt.Errorf("TF needs exactly 2 options, got %d", len(q.TruthOptions))
		}
		if q.TruthOptions[0].Answer == q.TruthOptions[1].Answer {
			return fmt.Errorf("TF options must cover both true and false")
		}
		if q.TruthOptions[0].Correct == q.TruthOptions[1].Correct {
			return fmt.Errorf("TF needs exactly one correct option")
		}
	case TypeSAQ:
		if len(q.Answers) != 1 {
			return fmt.Errorf("SAQ needs exactly one answer, got %d", len(q.Answers))
		}
		if strings.TrimSpace(q.Answers[0]) == "" {
			return fmt.Errorf("SAQ has an empty answer")
		}
	case TypeFIB:
		if len(q.Answers) == 0 {
			return fmt.Errorf("%s has no answer", q.Type)
		}
		for _, a := range q.Answers {
			if strings.TrimSpace(a) == "" {
				return fmt.Errorf("%s has an empty answer", q.Type)
			}
		}
	default:
		return fmt.Errorf("unknown question type %q", q.Type)
	}
	return nil
}
