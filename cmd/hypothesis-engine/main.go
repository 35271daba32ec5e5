// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the hypothesis-engine CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/hypothesis-engine/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// logger is the process-wide structured logger, built from the configured
// log level before any subcommand runs.
var logger *zap.Logger

// rootCmd is the base command for the hypothesis-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "hypothesis-engine",
	Short: "Literature-grounded generation of scientific research hypotheses",
	Long: `hypothesis-engine generates research hypotheses grounded in the scientific
literature. A review phase searches PubMed for papers relevant to a research
goal and synthesizes them into a digest; generation fans a hypothesis budget
out across tool-augmented drafting and simulated scientific debate; a final
review phase scores the candidates and reflects the digest back onto them.

Each phase is reachable as a subcommand: literature runs a review on its
own, generate runs the full pipeline, and tools and cache inspect the
supporting infrastructure.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}

		logger, err = newLogger(loadConfig().LogLevel)
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./hypothesis-engine.yaml or ~/.config/hypothesis-engine/config.yaml)")
}

func initConfig() {
	// A local .env file supplies environment overrides during development.
	_ = godotenv.Load()

	configDefaults()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("hypothesis-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "hypothesis-engine"))
		}
	}

	viper.SetEnvPrefix("HYPOTHESIS_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
