package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/scholar/internal/orchestrator"
)

var evalOutput string

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [questions.json]",
	Short: "Build a RAG evaluation dataset from a question set",
	Long: `Answer every question in a JSON question set and write the answers, the
retrieved contexts and the reference answers as an evaluation dataset.

The question set is a JSON array of {"question", "ideal_answer"} objects
("ground_truth" is accepted in place of "ideal_answer"). Each output row is
{"question", "contexts", "ground_truth", "answer"}. A question that fails is
recorded with an "ERROR: ..." answer and no contexts.

Examples:
  scholar evaluate questions.json
  scholar evaluate questions.json -o results/rag_dataset.json`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().StringVarP(&evalOutput, "output", "o", "rag_dataset.json", "Path of the dataset to write")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	questions, err := orchestrator.LoadQuestions(args[0])
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}

	app, err := loadConfig()
	if err != nil {
		return err
	}

	pipeline, err := openPipeline(ctx, app, needs{retrieval: true, llm: true})
	if err != nil {
		return fmt.Errorf("%s Failed to create RAG pipeline: %w", errorStyle.Render("Error:"), err)
	}
	defer pipeline.Close()

	fmt.Println()
	fmt.Println(headerStyle.Render(fmt.Sprintf("Generating dataset for %d questions", len(questions))))
	fmt.Println()

	failed := 0
	rows, err := pipeline.Evaluate(ctx, questions, func(i int, row orchestrator.EvalRow) {
		mark := successStyle.Render("✓")
		if strings.HasPrefix(row.Answer, "ERROR: ") {
			mark = errorStyle.Render("✗")
			failed++
		}
		counter := mutedStyle.Render(fmt.Sprintf("[%d/%d]", i+1, len(questions)))
		fmt.Printf("%s %s %s\n", counter, mark, preview(row.Question, 70))
	})
	if err != nil {
		return fmt.Errorf("%s Evaluation interrupted: %w", errorStyle.Render("Error:"), err)
	}

	if err := orchestrator.WriteDataset(evalOutput, rows); err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}

	fmt.Println()
	fmt.Println(successStyle.Render(fmt.Sprintf("✓ Dataset created: %s", evalOutput)))
	if failed > 0 {
		fmt.Println(mutedStyle.Render(fmt.Sprintf("%d of %d questions failed", failed, len(rows))))
	}
	return nil
}
