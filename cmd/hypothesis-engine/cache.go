package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/hypothesis-engine/internal/cache"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage cached literature reviews",
	Long: `Cache manages the SQLite store of completed literature reviews. Reviews
are keyed by research goal; a cached review is returned verbatim until its
entry is deleted.`,
}

// mustOpenCache opens the review cache, rejecting configurations that
// disabled it.
func mustOpenCache(cfg types.Config) (*cache.Store, error) {
	store, err := openCache(cfg)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("review caching is disabled: literature.cache_path is empty")
	}
	return store, nil
}

// --- list subcommand ---

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached reviews, newest first",
	RunE:  runCacheList,
}

func runCacheList(cmd *cobra.Command, args []string) error {
	store, err := mustOpenCache(loadConfig())
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(context.Background())
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No cached reviews.")
		return nil
	}

	fmt.Printf("%-60s  %-8s  %s\n", "Goal", "Articles", "Created")
	fmt.Println(strings.Repeat("-", 88))
	for _, e := range entries {
		goal := e.Goal
		if len(goal) > 60 {
			goal = goal[:57] + "..."
		}
		fmt.Printf("%-60s  %-8d  %s\n", goal, e.Articles, e.CreatedAt.Format("2006-01-02 15:04"))
	}

	fmt.Printf("\n%d cached reviews\n", len(entries))
	return nil
}

// --- show subcommand ---

var cacheShowCmd = &cobra.Command{
	Use:   "show [goal]",
	Short: "Show the cached review for a goal",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCacheShow,
}

func runCacheShow(cmd *cobra.Command, args []string) error {
	store, err := mustOpenCache(loadConfig())
	if err != nil {
		return err
	}
	defer store.Close()

	goal := strings.Join(args, " ")
	result, ok, err := store.Get(context.Background(), goal)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no cached review for goal %q", goal)
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatReviewOutput(result, jsonOutput)
}

// --- delete subcommand ---

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete [goal]",
	Short: "Delete the cached review for a goal",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCacheDelete,
}

func runCacheDelete(cmd *cobra.Command, args []string) error {
	store, err := mustOpenCache(loadConfig())
	if err != nil {
		return err
	}
	defer store.Close()

	goal := strings.Join(args, " ")
	existed, err := store.Delete(context.Background(), goal)
	if err != nil {
		return err
	}
	if !existed {
		return fmt.Errorf("no cached review for goal %q", goal)
	}
	fmt.Printf("Deleted cached review for %q\n", goal)
	return nil
}

// --- clear subcommand ---

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all cached reviews",
	RunE:  runCacheClear,
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	store, err := mustOpenCache(loadConfig())
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Clear(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d cached reviews\n", n)
	return nil
}

func init() {
	cacheListCmd.Flags().Bool("json", false, "output entries as JSON")
	cacheShowCmd.Flags().Bool("json", false, "output the full review result as JSON")

	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheDeleteCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
