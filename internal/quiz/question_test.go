package quiz

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func sampleQuestions() []Question {
	return []Question{
		{
			Type:     TypeMCQ,
			Question: "Which organelle produces ATP?",
			Choices: []Choice{
				{Answer: "Mitochondria", Correct: true},
				{Answer: "Ribosome"},
				{Answer: "Golgi body"},
			},
			Explanation: "Mitochondria run cellular respiration.",
		},
		{
			Type:     TypeTF,
			Question: "DNA is double stranded.",
			TruthOptions: []TruthOption{
				{Answer: true, Correct: true},
				{Answer: false},
			},
			Explanation: "Watson and Crick described the double helix.",
		},
		{
			Type:        TypeSAQ,
			Question:    "Name the process plants use to make food.",
			Answers:     []string{"Photosynthesis"},
			Explanation: "Light energy is converted into chemical energy.",
		},
		{
			Type:        TypeFIB,
			Question:    "The powerhouse of the cell is the ____.",
			Answers:     []string{"mitochondrion", "mitochondria"},
			Explanation: "Both spellings are accepted.",
		},
	}
}

func TestQuestion_RoundTrip(t *testing.T) {
	for _, q := range sampleQuestions() {
		t.Run(string(q.Type), func(t *testing.T) {
			data, err := json.Marshal(q)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}

			var got Question
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if !reflect.DeepEqual(got, q) {
				t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, q)
			}
		})
	}
}

func TestQuestion_SAQSeveralAnswersNeverMarshalled(t *testing.T) {
	q := Question{Type: TypeSAQ, Question: "Name two noble gases.", Answers: []string{"Neon", "Argon"}}
	if err := q.Validate(); err == nil {
		t.Error("Validate() should reject an SAQ with several answers")
	}
	if _, err := json.Marshal(q); err == nil {
		t.Error("Marshal() should refuse an SAQ it cannot round trip")
	}

	var got Question
	if err := json.Unmarshal([]byte(`{"type":"SAQ","question":"q","answers":["Neon","Argon"]}`), &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if err := got.Validate(); err == nil {
		t.Error("decoded SAQ with an answer array should fail validation")
	}
}

func TestQuestion_WireShape(t *testing.T) {
	data, err := json.Marshal(sampleQuestions()[2])
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), `"answers":"Photosynthesis"`) {
		t.Errorf("SAQ answers should be a plain string, got %s", data)
	}

	data, err = json.Marshal(sampleQuestions()[1])
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), `"options":[{"answer":true,"correct":true},{"answer":false,"correct":false}]`) {
		t.Errorf("TF options have unexpected shape: %s", data)
	}
}

func TestQuestion_UnmarshalFIBSingleString(t *testing.T) {
	var q Question
	err := json.Unmarshal([]byte(`{"type":"FIB","question":"2 + 2 = ____","answers":"4"}`), &q)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !reflect.DeepEqual(q.Answers, []string{"4"}) {
		t.Errorf("Answers = %v, want [4]", q.Answers)
	}
}

func TestQuestion_UnmarshalUnknownType(t *testing.T) {
	var q Question
	if err := json.Unmarshal([]byte(`{"type":"ESSAY","question":"Discuss."}`), &q); err == nil {
		t.Fatal("Unmarshal() should reject unknown question types")
	}
}

func TestQuestion_Validate(t *testing.T) {
	tests := []struct {
		name    string
		q       Question
		wantErr bool
	}{
		{"valid mcq", sampleQuestions()[0], false},
		{"valid tf", sampleQuestions()[1], false},
		{"valid saq", sampleQuestions()[2], false},
		{"valid fib", sampleQuestions()[3], false},
		{"empty text", Question{Type: TypeSAQ, Answers: []string{"x"}}, true},
		{"mcq single option", Question{Type: TypeMCQ, Question: "q", Choices: []Choice{{Answer: "a", Correct: true}}}, true},
		{"mcq no correct", Question{Type: TypeMCQ, Question: "q", Choices: []Choice{{Answer: "a"}, {Answer: "b"}}}, true},
		{"tf same values", Question{Type: TypeTF, Question: "q", TruthOptions: []TruthOption{{Answer: true, Correct: true}, {Answer: true}}}, true},
		{"tf both correct", Question{Type: TypeTF, Question: "q", TruthOptions: []TruthOption{{Answer: true, Correct: true}, {Answer: false, Correct: true}}}, true},
		{"tf three options", Question{Type: TypeTF, Question: "q", TruthOptions: make([]TruthOption, 3)}, true},
		{"saq no answer", Question{Type: TypeSAQ, Question: "q"}, true},
		{"saq several answers", Question{Type: TypeSAQ, Question: "q", Answers: []string{"a", "b"}}, true},
		{"saq blank answer", Question{Type: TypeSAQ, Question: "q", Answers: []string{" "}}, true},
		{"fib blank answer", Question{Type: TypeFIB, Question: "q", Answers: []string{" "}}, true},
		{"unknown", Question{Type: "ESSAY", Question: "q"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
