package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/stemsi/examkb/internal/model"
)

func reserveCmd() *cobra.Command {
	var year, round, from, to int

	cmd := &cobra.Command{
		Use:   "reserve",
		Short: "Insert placeholder rows for missing question numbers",
		Long: `Insert incomplete template rows for numbers in [from, to] that have no
question yet, with the subject taken from the number ranges. Existing
questions are left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := loadConfig()
			ctx := context.Background()

			p, closeStore, err := openPipeline(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer closeStore()

			res, err := p.Revisions.ReservePlaceholders(ctx, year, round, from, to)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "exam year")
	cmd.Flags().IntVar(&round, "round", model.DefaultExamRound, "exam round")
	cmd.Flags().IntVar(&from, "from", model.MinQuestionNumber, "first question number")
	cmd.Flags().IntVar(&to, "to", model.MaxQuestionNumber, "last question number")
	_ = cmd.MarkFlagRequired("year")

	return cmd
}
