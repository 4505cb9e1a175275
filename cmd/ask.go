package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/scholar/internal/chunk"
)

var (
	topK           int
	maxContextSize int
	verbose        bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the play",
	Long: `Ask a natural language question about the play using RAG (Retrieval-Augmented Generation).

This command:
1. Embeds the question once
2. Searches every collection (scene, explanation, context, speaker)
3. Ranks all hits by weighted confidence
4. Generates an answer grounded in the ranked context, citing Act and Scene

Required environment variables:
  OPENAI_API_KEY     - OpenAI API key for embeddings (and the openai provider)
  GEMINI_API_KEY     - for the gemini provider
  MILVUS_ADDRESS     - Milvus server address (default: localhost:19530)

Examples:
  scholar ask "Why does Brutus join the conspiracy?"
  scholar ask "What does the soothsayer say?" --topk 3
  scholar ask "How does Antony turn the crowd?" --verbose`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().IntVar(&topK, "topk", 0, "Number of hits to retrieve from each collection (default from config)")
	askCmd.Flags().IntVar(&maxContextSize, "max-context", -1, "Maximum number of ranked results placed in the prompt, 0 for all (default from config)")
	askCmd.Flags().BoolVar(&verbose, "verbose", false, "Show detailed progress and the ranked sources")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := args[0]
	ctx := context.Background()

	app, err := loadConfig()
	if err != nil {
		return err
	}
	if topK > 0 {
		app.Retrieval.TopK = topK
	}
	if maxContextSize >= 0 {
		app.Retrieval.MaxContext = maxContextSize
	}

	questionStyle := summaryStyle
	answerStyle := textStyle

	// Print question
	fmt.Println()
	fmt.Println(headerStyle.Render("Question:"))
	fmt.Println(questionStyle.Render(question))
	fmt.Println()

	if verbose {
		fmt.Println(mutedStyle.Render("→ Initializing RAG pipeline..."))
	}
	pipeline, err := openPipeline(ctx, app, needs{retrieval: true, llm: true})
	if err != nil {
		return fmt.Errorf("%s Failed to create RAG pipeline: %w", errorStyle.Render("Error:"), err)
	}
	defer pipeline.Close()

	if verbose {
		fmt.Println(successStyle.Render("✓ RAG pipeline initialized"))
		fmt.Println(mutedStyle.Render("→ Retrieving relevant context and generating answer..."))
	}

	result, err := pipeline.Ask(ctx, question)
	if err != nil {
		return fmt.Errorf("%s Failed to generate answer: %w", errorStyle.Render("Error:"), err)
	}

	// Print answer
	fmt.Println(headerStyle.Render("Answer:"))
	fmt.Println()
	fmt.Println(answerStyle.Render(strings.TrimSpace(result.Answer.Text)))
	fmt.Println()

	if !verbose {
		return nil
	}

	// Column widths
	const (
		confWidth  = 10
		colWidth   = 13
		placeWidth = 12
		textWidth  = 60
	)

	fmt.Println(headerStyle.Render("Sources:"))
	fmt.Println(renderRow([]column{
		{text: "CONF", width: confWidth},
		{text: "COLLECTION", width: colWidth},
		{text: "ACT/SCENE", width: placeWidth},
		{text: "TEXT", width: textWidth},
	}, true))
	fmt.Println(separator(confWidth, colWidth, placeWidth, textWidth))

	for _, s := range result.Sources {
		place := fmt.Sprintf("%s/%s", orDash(chunk.Value(s.Act)), orDash(chunk.Value(s.Scene)))
		fmt.Println(renderRow([]column{
			{text: fmt.Sprintf("%.4f", s.Confidence), width: confWidth, color: numberColor, right: true},
			{text: s.Collection, width: colWidth, color: accentColor},
			{text: place, width: placeWidth, color: textColor},
			{text: preview(s.Text, textWidth-2), width: textWidth, color: textColor},
		}, false))
	}
	fmt.Println()
	fmt.Println(mutedStyle.Render("query " + result.QueryID))
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
