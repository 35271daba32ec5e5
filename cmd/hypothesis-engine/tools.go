package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect the tool registry and its backing servers",
	Long: `Tools lists the literature tools the registry exposes to the pipeline and
probes whether their backing sources are reachable. The built-in registry
ships a PubMed toolset; overlay files can add, retarget, or disable tools
without a rebuild.`,
}

// --- list subcommand ---

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered literature tools",
	Long: `List shows the tools the registry exposes after overlays are applied.
Disabled tools are hidden unless --all is given.`,
	RunE: runToolsList,
}

// toolRow is one listing entry.
type toolRow struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Server      string `json:"server"`
	RemoteName  string `json:"remote_name"`
	SourceType  string `json:"source_type"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description,omitempty"`
}

func runToolsList(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	runner, err := buildRunner(cfg)
	if err != nil {
		return err
	}
	reg := runner.Registry()

	byID := reg.EnabledTools()
	if all, _ := cmd.Flags().GetBool("all"); all {
		byID = reg.Config().AllTools()
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]toolRow, 0, len(ids))
	for _, id := range ids {
		t := byID[id]
		rows = append(rows, toolRow{
			ID:          t.ID,
			Category:    t.Category,
			Server:      t.Server,
			RemoteName:  t.RemoteName,
			SourceType:  t.SourceType,
			Enabled:     t.IsEnabled(),
			Description: t.Description,
		})
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatToolsOutput(rows, jsonOutput)
}

func formatToolsOutput(rows []toolRow, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No tools registered.")
		return nil
	}

	fmt.Printf("%-30s  %-12s  %-10s  %-10s  %s\n",
		"Tool", "Category", "Server", "Source", "Enabled")
	fmt.Println(strings.Repeat("-", 76))
	for _, r := range rows {
		fmt.Printf("%-30s  %-12s  %-10s  %-10s  %v\n",
			r.ID, r.Category, r.Server, r.SourceType, r.Enabled)
	}

	fmt.Printf("\n%d tools\n", len(rows))
	return nil
}

// --- probe subcommand ---

var toolsProbeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Probe workflow sources for availability",
	Long: `Probe runs each workflow's availability check against its backing source
and reports the result. Workflows without a configured check count as
available. Exits non-zero when any source is unreachable.`,
	RunE: runToolsProbe,
}

func runToolsProbe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	runner, err := buildRunner(cfg)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(runner.Registry().Config().Workflows))
	for name := range runner.Registry().Config().Workflows {
		names = append(names, name)
	}
	sort.Strings(names)

	ctx := context.Background()
	unavailable := 0
	for _, name := range names {
		status := "available"
		if !runner.SourceAvailable(ctx, name) {
			status = "unavailable"
			unavailable++
		}
		fmt.Printf("%-20s  %s\n", name, status)
	}

	if unavailable > 0 {
		return fmt.Errorf("%d of %d workflow sources unavailable", unavailable, len(names))
	}
	return nil
}

func init() {
	toolsListCmd.Flags().Bool("all", false, "include disabled tools")
	toolsListCmd.Flags().Bool("json", false, "output tools as JSON")

	toolsCmd.AddCommand(toolsListCmd)
	toolsCmd.AddCommand(toolsProbeCmd)
	rootCmd.AddCommand(toolsCmd)
}
