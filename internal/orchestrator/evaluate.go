package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
)

// ErrNoQuestions is returned when an evaluation file holds no questions.
var ErrNoQuestions = errors.New("no evaluation questions")

// EvalQuestion is one entry of an evaluation question set. Question sets
// written for the HTTP evaluator use ideal_answer for the reference answer.
type EvalQuestion struct {
	Question    string `json:"question"`
	GroundTruth string `json:"ground_truth,omitempty"`
	IdealAnswer string `json:"ideal_answer,omitempty"`
}

// Reference returns the expected answer, preferring ideal_answer.
func (q EvalQuestion) Reference() string {
	if q.IdealAnswer != "" {
		return q.IdealAnswer
	}
	return q.GroundTruth
}

// EvalRow is one row of the generated RAG evaluation dataset.
type EvalRow struct {
	Question    string   `json:"question"`
	Contexts    []string `json:"contexts"`
	GroundTruth string   `json:"ground_truth"`
	Answer      string   `json:"answer"`
}

// LoadQuestions reads a JSON array of evaluation questions.
func LoadQuestions(path string) ([]EvalQuestion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}
	var questions []EvalQuestion
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("failed to decode questions in %s: %w", path, err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoQuestions, path)
	}
	return questions, nil
}

// Evaluate asks every question and records the answer with the source texts
// it was grounded on. A failed question does not stop the run; its row gets
// an "ERROR: ..." answer and no contexts. progress, when non-nil, is called
// after each row.
func (p *Pipeline) Evaluate(ctx context.Context, questions []EvalQuestion, progress func(i int, row EvalRow)) ([]EvalRow, error) {
	rows := make([]EvalRow, 0, len(questions))
	failed := 0
	for i, q := range questions {
		if err := ctx.Err(); err != nil {
			return rows, err
		}

		row := EvalRow{
			Question:    q.Question,
			Contexts:    []string{},
			GroundTruth: q.Reference(),
		}
		result, err := p.Ask(ctx, q.Question)
		if err != nil {
			row.Answer = "ERROR: " + err.Error()
			failed++
		} else {
			row.Answer = strings.TrimSpace(result.Answer.Text)
			for _, s := range result.Sources {
				row.Contexts = append(row.Contexts, s.Text)
			}
		}
		rows = append(rows, row)
		if progress != nil {
			progress(i, row)
		}
	}
	log.Printf("[Pipeline] Evaluated %d questions (%d failed)", len(rows), failed)
	return rows, nil
}

// WriteDataset writes evaluation rows as an indented JSON array.
func WriteDataset(path string, rows []EvalRow) error {
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	return nil
}
