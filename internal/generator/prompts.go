package generator

import (
	"fmt"
	"strings"

	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

// QuizRequest is one generation round.
type QuizRequest struct {
	Subject    string
	Types      []quiz.QuestionType
	Difficulty quiz.Difficulty
	Count      int
	// Exclude holds the texts of every question already accepted in earlier rounds.
	Exclude []string
}

// ClearUpRequest asks the oracle to extract the questions already present in one segment.
type ClearUpRequest struct {
	Segment string
	Types   []quiz.QuestionType
	Exclude []string
}

const systemPrompt = `You are a quiz engine that only ever answers with a single JSON object. No prose, no comments, no code fences.`

const outputTypes = `Output Types (contract v` + ContractVersion + `):
type MCQ = { type: "MCQ"; question: string; options: { answer: string; correct: boolean }[]; explanation: string };
type TF = { type: "TF"; question: string; options: [{ answer: true; correct: boolean }, { answer: false; correct: boolean }]; explanation: string };
type SAQ = { type: "SAQ"; question: string; answers: string; explanation: string };
type FIB = { type: "FIB"; question: string; answers: string | string[]; explanation: string };
type Questions = { topic: string; questions: (MCQ | TF | SAQ | FIB)[] };
type QuizError = { status: "error"; message: string };`

// Rejection messages the oracle is told to use.
const (
	RejectInvalidEntry       = "Invalid entry."
	RejectDifficultyMismatch = "Difficulty level doesn't match subject."
	RejectTooAbstract        = "Subject too abstract or general, please enter a more specified value."
	RejectNotExamMaterial    = "Invalid input: input must be an exam paper, quiz, or academic query."
)

var difficultyGuide = map[quiz.Difficulty]string{
	quiz.DifficultyBasic:        "recall/definitions (simple facts, terms, concepts, common knowledge)",
	quiz.DifficultyRegular:      "foundational, non-trivial (understanding principles, straightforward reasoning)",
	quiz.DifficultyIntermediate: "reasoning/application (apply knowledge to solve problems, analyze, explain concepts)",
	quiz.DifficultyAdvanced:     "deep/multi-step (complex problem-solving, critical thinking, multi-step reasoning within material scope)",
	quiz.DifficultyExpert:       "tricky/problem-solving (challenging questions requiring creative thinking, synthesis, potentially beyond immediate scope)",
}

// QuizPrompt renders the instruction for one quiz generation round.
func QuizPrompt(req QuizRequest) string {
	var sb strings.Builder

	sb.WriteString("Generate a quiz in JSON format. Output only a JSON object of type Questions.\n\n")

	sb.WriteString("Rules:\n")
	sb.WriteString("1. Stick strictly to the subject, even if it is long.\n")
	fmt.Fprintf(&sb, "2. The number of questions must exactly equal %d. No fewer, no more, unless:\n", req.Count)
	sb.WriteString("   - If duplicates are unavoidable, omit repeated questions.\n")
	fmt.Fprintf(&sb, "   - It is acceptable to generate fewer than %d questions rather than duplicating any question.\n", req.Count)
	fmt.Fprintf(&sb, "3. Only use these question types: %s.\n\n", joinTypes(req.Types))

	sb.WriteString("Validation:\n")
	sb.WriteString("- If the input is not an academic topic, essay, book, lecture note, or any educational text (e.g., exam paper, non-educational content, vague/unrelated topic, casual query, command, or general conversation):\n")
	fmt.Fprintf(&sb, "  { \"status\": \"error\", \"message\": %q }\n", RejectInvalidEntry)
	sb.WriteString("- If the difficulty is unreasonable for the subject:\n")
	fmt.Fprintf(&sb, "  { \"status\": \"error\", \"message\": %q }\n", RejectDifficultyMismatch)
	sb.WriteString("- If the subject is an abbreviation, vague, conversational, general, or non-educational:\n")
	fmt.Fprintf(&sb, "  { \"status\": \"error\", \"message\": %q }\n\n", RejectTooAbstract)

	sb.WriteString("Difficulty Levels:\n")
	for _, d := range quiz.Difficulties {
		fmt.Fprintf(&sb, "- %s: %s\n", d, difficultyGuide[d])
	}
	sb.WriteString("\n")

	sb.WriteString(outputTypes)
	sb.WriteString("\n\n")

	sb.WriteString("Exclusions:\n")
	sb.WriteString("- Do not replicate or rewrite any question from the following list.\n")
	sb.WriteString("- Each generated question must be unique and not a variation of any question in the list below:\n")
	sb.WriteString(ExclusionList(req.Exclude))
	sb.WriteString("\n\n")

	sb.WriteString("Input:\n")
	fmt.Fprintf(&sb, "- subject: %q\n", req.Subject)
	fmt.Fprintf(&sb, "- difficulty: %q\n", req.Difficulty)
	fmt.Fprintf(&sb, "- number of questions: %d\n", req.Count)
	fmt.Fprintf(&sb, "- question types: %s\n", joinTypes(req.Types))

	return sb.String()
}

// ClearUpPrompt renders the instruction that extracts and normalizes existing questions.
func ClearUpPrompt(req ClearUpRequest) string {
	var sb strings.Builder

	sb.WriteString("You are processing extracted exam paper, quiz, or query text.\n\n")

	sb.WriteString("INPUT TEXT:\n")
	sb.WriteString(req.Segment)
	sb.WriteString("\n\n")

	sb.WriteString("PREVIOUSLY EXTRACTED QUESTIONS:\n")
	sb.WriteString(ExclusionList(req.Exclude))
	sb.WriteString("\n\n")

	sb.WriteString("RULE:\n")
	sb.WriteString("- If the input is not an exam paper, quiz, or academic query, return:\n")
	fmt.Fprintf(&sb, "  { \"status\": \"error\", \"message\": %q }\n", RejectNotExamMaterial)
	sb.WriteString("  and do not process further.\n\n")

	sb.WriteString("TASK:\n")
	sb.WriteString("- Clean and parse the input.\n")
	fmt.Fprintf(&sb, "- Extract only the following question types: %s. Ignore everything else.\n\n", joinTypes(req.Types))

	sb.WriteString("RULES:\n")
	sb.WriteString("1. Remove numbering, page refs, whitespace, unrelated text.\n")
	sb.WriteString("2. Keep only complete questions; if incomplete, repair into concise, well-formed wording.\n")
	sb.WriteString("3. Convert \"True\"/\"False\" into booleans.\n")
	sb.WriteString("4. Exclude any question (exact/partial, case/punctuation variations) already listed above, and remove duplicates within this batch. If uncertain, exclude.\n")
	sb.WriteString("5. explanation may be an empty string when the source gives none; topic may be omitted.\n\n")

	sb.WriteString(outputTypes)
	sb.WriteString("\n\n")
	sb.WriteString("Output strictly: { \"questions\": [ ... ] }\n")

	return sb.String()
}

func joinTypes(types []quiz.QuestionType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}
