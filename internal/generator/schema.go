package generator

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ContractVersion identifies the prompt/response schema pair. Bump it whenever the
// expected keys or discriminants change so drift shows up as parse failures.
const ContractVersion = "2"

const questionSchema = `{
  "oneOf": [
    {
      "type": "object",
      "required": ["type", "question", "options"],
      "properties": {
        "type": {"enum": ["MCQ"]},
        "question": {"type": "string", "minLength": 1},
        "options": {
          "type": "array",
          "minItems": 2,
          "items": {
            "type": "object",
            "required": ["answer", "correct"],
            "properties": {
              "answer": {"type": "string"},
              "correct": {"type": "boolean"}
            }
          }
        },
        "explanation": {"type": "string"}
      }
    },
    {
      "type": "object",
      "required": ["type", "question", "options"],
      "properties": {
        "type": {"enum": ["TF"]},
        "question": {"type": "string", "minLength": 1},
        "options": {
          "type": "array",
          "minItems": 2,
          "maxItems": 2,
          "items": {
            "type": "object",
            "required": ["answer", "correct"],
            "properties": {
              "answer": {"type": "boolean"},
              "correct": {"type": "boolean"}
            }
          }
        },
        "explanation": {"type": "string"}
      }
    },
    {
      "type": "object",
      "required": ["type", "question", "answers"],
      "properties": {
        "type": {"enum": ["SAQ"]},
        "question": {"type": "string", "minLength": 1},
        "answers": {"type": "string"},
        "explanation": {"type": "string"}
      }
    },
    {
      "type": "object",
      "required": ["type", "question", "answers"],
      "properties": {
        "type": {"enum": ["FIB"]},
        "question": {"type": "string", "minLength": 1},
        "answers": {
          "oneOf": [
            {"type": "string"},
            {"type": "array", "minItems": 1, "items": {"type": "string"}}
          ]
        },
        "explanation": {"type": "string"}
      }
    }
  ]
}`

// Mode selects which payload shape a response must match.
type Mode int

const (
	// ModeQuiz expects {topic, questions}.
	ModeQuiz Mode = iota
	// ModeClearUp expects {questions}; topic is optional.
	ModeClearUp
)

func (m Mode) String() string {
	if m == ModeClearUp {
		return "clearup"
	}
	return "quiz"
}

func payloadSchema(requireTopic bool) string {
	required := `["questions"]`
	if requireTopic {
		required = `["topic", "questions"]`
	}
	return `{
  "type": "object",
  "required": ` + required + `,
  "properties": {
    "topic": {"type": "string"},
    "questions": {"type": "array", "items": ` + questionSchema + `}
  }
}`
}

const rejectionSchema = `{
  "type": "object",
  "required": ["status", "message"],
  "properties": {
    "status": {"enum": ["error"]},
    "message": {"type": "string"}
  }
}`

var (
	quizPayloadSchema    = mustSchema(payloadSchema(true))
	clearUpPayloadSchema = mustSchema(payloadSchema(false))
	rejectSchema         = mustSchema(rejectionSchema)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile response schema: %v", err))
	}
	return s
}

func schemaFor(m Mode) *gojsonschema.Schema {
	if m == ModeClearUp {
		return clearUpPayloadSchema
	}
	return quizPayloadSchema
}

// validate checks a JSON document against a schema and folds the violations into one error.
func validate(schema *gojsonschema.Schema, doc []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("validate document: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("contract v%s violated: %s", ContractVersion, strings.Join(msgs, "; "))
}
