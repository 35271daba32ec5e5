// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/hypothesis-engine/internal/generate"
	"github.com/pdiddy/hypothesis-engine/internal/literature"
	"github.com/pdiddy/hypothesis-engine/internal/llm"
	"github.com/pdiddy/hypothesis-engine/internal/review"
	"github.com/pdiddy/hypothesis-engine/internal/toolgen"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate [goal]",
	Short: "Generate reviewed hypotheses for a research goal",
	Long: `Generate runs the full pipeline for a research goal: a literature review
builds a digest of relevant papers, the generation coordinator fans the
hypothesis budget out across tool-augmented drafting and simulated
scientific debate, and a review phase scores each candidate and reflects
the digest back onto it.

Without a usable literature review the pipeline degrades to debate from
latent knowledge only, and every hypothesis carries a grounding
disclaimer.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

// runResult is the document a generate run emits.
type runResult struct {
	Goal              string              `json:"goal"`
	LiteratureReview  *types.ReviewResult `json:"literature_review,omitempty"`
	Hypotheses        []types.Hypothesis  `json:"hypotheses"`
	DebateTranscripts []string            `json:"debate_transcripts,omitempty"`
	Messages          []string            `json:"messages,omitempty"`
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	applyGenerateFlags(cmd, &cfg)

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

	goal := strings.Join(args, " ")
	guidance, _ := cmd.Flags().GetString("guidance")
	ctx := context.Background()
	progress := progressPrinter(os.Stdout)

	orch := literature.New(cfg.Literature, client, runner, store, logger)
	lit, err := orch.Review(ctx, literature.Request{
		Goal:     goal,
		Guidance: guidance,
		Progress: progress,
	})
	if err != nil {
		return err
	}

	agent, hasAgent := client.(llm.ToolAgent)
	if !hasAgent && (cfg.Generation.EnableToolCalling || cfg.Generation.DevIsolation) {
		logger.Warn("provider lacks native tool use, disabling tool-based generation",
			zap.String("provider", cfg.LLM.Provider))
		cfg.Generation.EnableToolCalling = false
		cfg.Generation.DevIsolation = false
	}
	var toolGen generate.ToolGenerator
	if hasAgent {
		toolGen = toolgen.New(agent, runner, logger)
	}

	coord := generate.New(cfg.Generation, toolGen, generate.NewDebater(client, logger), logger)
	gen, err := coord.Generate(ctx, generate.State{
		SupervisorGuidance: goal,
		Digest:             lit.Digest,
		MCPAvailable:       runner.SourceAvailable(ctx, "literature_review"),
		Progress:           progress,
	})
	if err != nil {
		return err
	}

	rev := review.New(client, logger)
	state := review.State{
		Goal:       goal,
		Digest:     lit.Digest,
		Hypotheses: gen.Hypotheses,
		Progress:   progress,
	}
	reviewed, err := rev.Review(ctx, state)
	if err != nil {
		return err
	}
	state.Hypotheses = reviewed.Hypotheses
	reflected, err := rev.Reflect(ctx, state)
	if err != nil {
		return err
	}

	result := runResult{
		Goal:              goal,
		LiteratureReview:  lit,
		Hypotheses:        reflected.Hypotheses,
		DebateTranscripts: gen.DebateTranscripts,
		Messages:          []string{gen.Message, reviewed.Message, reflected.Message},
	}

	if outPath, _ := cmd.Flags().GetString("output"); outPath != "" {
		if err := writeRunResult(result, outPath); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote run result to %s\n", outPath)
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatGenerateOutput(result, jsonOutput)
}

// applyGenerateFlags overlays explicitly-set flags onto the configuration.
func applyGenerateFlags(cmd *cobra.Command, cfg *types.Config) {
	if cmd.Flags().Changed("count") {
		cfg.Generation.TotalCount, _ = cmd.Flags().GetInt("count")
	}
	if cmd.Flags().Changed("tool-calling") {
		cfg.Generation.EnableToolCalling, _ = cmd.Flags().GetBool("tool-calling")
	}
	if cmd.Flags().Changed("dev-isolation") {
		cfg.Generation.DevIsolation, _ = cmd.Flags().GetBool("dev-isolation")
	}
}

func formatGenerateOutput(result runResult, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if len(result.Hypotheses) == 0 {
		fmt.Println("No hypotheses generated.")
		return nil
	}

	fmt.Printf("\n%-3s  %-5s  %-22s  %s\n", "#", "Score", "Method", "Hypothesis")
	fmt.Println(strings.Repeat("-", 104))
	for i, h := range result.Hypotheses {
		text := h.Text
		if len(text) > 70 {
			text = text[:67] + "..."
		}
		fmt.Printf("%-3d  %5.1f  %-22s  %s\n", i+1, h.Score, h.GenerationMethod, text)
	}

	fmt.Println()
	for _, m := range result.Messages {
		fmt.Println(m)
	}
	fmt.Println("\nUse --json or --output for full hypothesis text, reviews, and transcripts.")
	return nil
}

func writeRunResult(result runResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func init() {
	generateCmd.Flags().Int("count", 0, "hypothesis budget (default from configuration)")
	generateCmd.Flags().String("guidance", "", "optional guidance folded into query generation")
	generateCmd.Flags().Bool("tool-calling", true, "allow the tool-based generation strategy")
	generateCmd.Flags().Bool("dev-isolation", false, "force a 100% tool-based allocation")
	generateCmd.Flags().String("output", "", "write the full run result as JSON to this path")
	generateCmd.Flags().Bool("json", false, "output the full run result as JSON")

	rootCmd.AddCommand(generateCmd)
}
