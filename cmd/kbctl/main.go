package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/stemsi/examkb/internal/config"
	"github.com/stemsi/examkb/internal/logger"
	"github.com/stemsi/examkb/internal/repository"
	"github.com/stemsi/examkb/internal/service"
)

var Version = "dev"

var (
	rulesFile string
	logLevel  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "kbctl",
		Short:        "kbctl - exam question knowledge base tooling",
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&rulesFile, "rules", "", "rules YAML file (default RULES_FILE or embedded rules)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (default LOG_LEVEL)")

	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(recorrectCmd())
	rootCmd.AddCommand(reserveCmd())
	rootCmd.AddCommand(classifyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig applies the persistent flags on top of the environment.
func loadConfig() (*config.Config, zerolog.Logger) {
	cfg := config.Load()
	if rulesFile != "" {
		cfg.RulesFile = rulesFile
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	// stdout carries the JSON output.
	return cfg, logger.SetupTo(os.Stderr, cfg.LogLevel, cfg.LogFormat)
}

// openPipeline opens the configured store and wires the pipeline on it.
func openPipeline(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*service.Pipeline, func(), error) {
	store, closeStore, err := repository.OpenQuestionStore(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	p, err := service.NewPipeline(cfg, store, log)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return p, closeStore, nil
}
