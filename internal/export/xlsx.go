// Package export renders stored quiz records as spreadsheets.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-quiz/internal/credits"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

const (
	summarySheet   = "Summary"
	questionsSheet = "Questions"
)

// ContentType is the MIME type of the workbook WriteXLSX produces.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var questionHeader = []any{"#", "Type", "Question", "Options", "Answer", "Explanation"}

// WriteXLSX writes rec as a two-sheet workbook: a summary and one row per question.
func WriteXLSX(w io.Writer, rec quiz.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(questionsSheet); err != nil {
		return fmt.Errorf("add questions sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	types := make([]string, len(rec.QuestionTypes))
	for i, t := range rec.QuestionTypes {
		types[i] = string(t)
	}
	summary := [][]any{
		{"Title", rec.Title},
		{"Type", string(rec.Kind)},
		{"Generated from", string(rec.Provenance)},
		{"Question types", strings.Join(types, ", ")},
		{"Difficulty", string(rec.Difficulty)},
		{"Questions", rec.QuestionCount},
		{"Credits", rec.CreditsCharged.StringFixed(credits.Places)},
		{"Created at", rec.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST")},
	}
	for i, row := range summary {
		if err := f.SetSheetRow(summarySheet, cell(1, i+1), &row); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", cell(1, len(summary)), bold); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 18); err != nil {
		return fmt.Errorf("size summary: %w", err)
	}

	if err := f.SetSheetRow(questionsSheet, "A1", &questionHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SetCellStyle(questionsSheet, "A1", cell(len(questionHeader), 1), bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	for i, q := range rec.Questions {
		row := questionRow(i+1, q)
		if err := f.SetSheetRow(questionsSheet, cell(1, i+2), &row); err != nil {
			return fmt.Errorf("write question %d: %w", i+1, err)
		}
	}
	if err := f.SetColWidth(questionsSheet, "C", "F", 48); err != nil {
		return fmt.Errorf("size questions: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func questionRow(n int, q quiz.Question) []any {
	var options, answer []string

	switch q.Type {
	case quiz.TypeMCQ:
		for _, c := range q.Choices {
			options = append(options, c.Answer)
			if c.Correct {
				answer = append(answer, c.Answer)
			}
		}
	case quiz.TypeTF:
		for _, o := range q.TruthOptions {
			v := strconv.FormatBool(o.Answer)
			options = append(options, v)
			if o.Correct {
				answer = append(answer, v)
			}
		}
	default:
		answer = q.Answers
	}

	return []any{n, string(q.Type), q.Question, strings.Join(options, "\n"), strings.Join(answer, " | "), q.Explanation}
}

func cell(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		// col and row are always positive here.
		panic(err)
	}
	return name
}
