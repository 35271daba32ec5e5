package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/hypothesis-engine/internal/literature"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

var literatureCmd = &cobra.Command{
	Use:   "literature [goal]",
	Short: "Run a literature review for a research goal",
	Long: `Literature searches PubMed for papers relevant to a research goal and
synthesizes them into a digest of findings, gaps, and contradictions.
Results are cached by goal, so repeating a review is free until the cache
entry is deleted.

Use --csl or --bibtex to export the collected articles for reference
managers.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLiterature,
}

func runLiterature(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	runner, err := buildRunner(cfg)
	if err != nil {
		return err
	}
	client, err := buildLLM(cfg)
	if err != nil {
		return err
	}
	store, err := openCache(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	guidance, _ := cmd.Flags().GetString("guidance")
	orch := literature.New(cfg.Literature, client, runner, store, logger)
	result, err := orch.Review(context.Background(), literature.Request{
		Goal:     strings.Join(args, " "),
		Guidance: guidance,
		Progress: progressPrinter(os.Stdout),
	})
	if err != nil {
		return err
	}

	if cslPath, _ := cmd.Flags().GetString("csl"); cslPath != "" {
		if err := writeExport(result.Articles, cslPath, literature.FormatCSL); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %d articles to %s\n", len(result.Articles), cslPath)
	}
	if bibPath, _ := cmd.Flags().GetString("bibtex"); bibPath != "" {
		if err := writeExport(result.Articles, bibPath, literature.FormatBibTeX); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %d articles to %s\n", len(result.Articles), bibPath)
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatReviewOutput(result, jsonOutput)
}

func formatReviewOutput(result *types.ReviewResult, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if result.Digest == types.ReviewFailedSentinel {
		for _, m := range result.Messages {
			fmt.Println(m)
		}
		return fmt.Errorf("literature review failed")
	}

	if len(result.Queries) > 0 {
		fmt.Println("Queries:")
		for i, q := range result.Queries {
			fmt.Printf("  %d. %s\n", i+1, q)
		}
	}

	if len(result.Articles) > 0 {
		fmt.Printf("\n%-50s  %-6s  %-10s  %s\n", "Title", "Year", "Source", "Used")
		fmt.Println(strings.Repeat("-", 76))
		for _, a := range result.Articles {
			title := a.Title
			if len(title) > 50 {
				title = title[:47] + "..."
			}
			fmt.Printf("%-50s  %-6s  %-10s  %v\n", title, a.Year, a.Source, a.UsedInAnalysis)
		}
	}

	fmt.Printf("\n%s\n", result.Digest)
	return nil
}

func writeExport(articles []types.Article, path string, format func([]types.Article, io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	defer f.Close()
	return format(articles, f)
}

func init() {
	literatureCmd.Flags().String("guidance", "", "optional guidance folded into query generation")
	literatureCmd.Flags().String("csl", "", "write collected articles as CSL-YAML to this path")
	literatureCmd.Flags().String("bibtex", "", "write collected articles as BibTeX to this path")
	literatureCmd.Flags().Bool("json", false, "output the full review result as JSON")

	rootCmd.AddCommand(literatureCmd)
}
