package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/scholar/internal/chunk"
	"github.com/Yates-Labs/scholar/internal/orchestrator"
)

var frontMatterPages int

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse a play script into chunk streams",
	Long: `Parse a PDF or plain-text play script and write the speaker, scene and
context window streams as JSONL.

Plain-text sources separate pages with form feeds. The first
front_matter_pages pages are skipped.

Examples:
  scholar parse julius_caesar.pdf
  scholar parse julius_caesar.txt --front-matter 0`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().IntVar(&frontMatterPages, "front-matter", -1, "Number of leading pages to skip (default from config)")
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := loadConfig()
	if err != nil {
		return err
	}
	if frontMatterPages >= 0 {
		app.FrontMatterPages = frontMatterPages
	}

	pages, err := orchestrator.LoadDocument(ctx, args[0])
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}

	pipeline, err := openPipeline(ctx, app, needs{})
	if err != nil {
		return err
	}
	defer pipeline.Close()

	result, err := pipeline.Ingest(ctx, pages)
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}

	streams := pipeline.Config().Streams
	outputStreamTable([]streamRow{
		{chunk.StreamSpeaker, len(result.Speaker), streams.Path(chunk.StreamSpeaker)},
		{chunk.StreamScene, len(result.Scenes), streams.Path(chunk.StreamScene)},
		{chunk.StreamContext, len(result.Windows), streams.Path(chunk.StreamContext)},
	})

	counts := chunk.CountByType(result.Speaker)
	fmt.Println()
	fmt.Println(summaryStyle.Render(fmt.Sprintf("Summary: %d speech, %d narration, %d stage directions across %d pages",
		counts[chunk.TypeSpeech], counts[chunk.TypeNarration], counts[chunk.TypeStageDirection], len(pages))))
	return nil
}

type streamRow struct {
	name  string
	count int
	path  string
}

func outputStreamTable(rows []streamRow) {
	// Column widths
	const (
		nameWidth  = 14
		countWidth = 10
		pathWidth  = 42
	)

	fmt.Println(renderRow([]column{
		{text: "STREAM", width: nameWidth},
		{text: "CHUNKS", width: countWidth},
		{text: "FILE", width: pathWidth},
	}, true))
	fmt.Println(separator(nameWidth, countWidth, pathWidth))

	for _, r := range rows {
		fmt.Println(renderRow([]column{
			{text: r.name, width: nameWidth, color: accentColor},
			{text: fmt.Sprintf("%d", r.count), width: countWidth, color: numberColor, right: true},
			{text: r.path, width: pathWidth, color: textColor},
		}, false))
	}
}
