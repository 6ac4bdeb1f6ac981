package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stemsi/examkb/internal/service"
)

func importCmd() *cobra.Command {
	var (
		dir         string
		pattern     string
		variant     string
		policy      string
		year        int
		round       int
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import exam documents from a directory",
		Long: `Parse every matching document, validate the extracted questions and insert
the new ones. Existing questions are never overwritten. The batch report is
printed to stdout as JSON.

Examples:
  kbctl import --dir ./texts
  kbctl import --dir ./texts --pattern "*_2019.md" --year 2019 --policy flag`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := loadConfig()

			sources, err := discoverSources(dir, pattern, year, round, variant)
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				return fmt.Errorf("no files match %s in %s", pattern, dir)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, closeStore, err := openPipeline(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer closeStore()

			report, runErr := p.Batch.Run(ctx, sources, service.BatchOptions{
				Policy:      policy,
				Variant:     variant,
				Concurrency: concurrency,
			})

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "directory containing the documents")
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "*.md", "glob of files to import")
	cmd.Flags().StringVar(&variant, "variant", "", "parser variant: standard, numbered, bracketed, labeled")
	cmd.Flags().StringVar(&policy, "policy", "", "invalid-record policy: drop or flag")
	cmd.Flags().IntVar(&year, "year", 0, "exam year for every file (default: first number in each file name)")
	cmd.Flags().IntVar(&round, "round", 0, "exam round (default 1)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "sources processed in parallel (default BATCH_CONCURRENCY)")
	_ = cmd.MarkFlagRequired("dir")

	return cmd
}
