package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"
)

func recorrectCmd() *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "recorrect",
		Short: "Re-apply the OCR correction table to stored question texts",
		Long: `Rewrite stored question texts that the current correction table would change.
Every rewrite is stored with a revision row holding the previous text.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := loadConfig()
			ctx := context.Background()

			p, closeStore, err := openPipeline(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer closeStore()

			res, err := p.Revisions.Recorrect(ctx, year)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "exam year to scan (default all years)")

	return cmd
}
