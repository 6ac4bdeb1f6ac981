package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stemsi/examkb/internal/classify"
	"github.com/stemsi/examkb/internal/keyword"
	"github.com/stemsi/examkb/internal/rules"
	"github.com/stemsi/examkb/internal/textfix"
)

type classification struct {
	Text     string   `json:"text"`
	Subject  string   `json:"subject"`
	ByNumber string   `json:"by_number,omitempty"`
	Keywords []string `json:"keywords"`
}

func classifyCmd() *cobra.Command {
	var number int

	cmd := &cobra.Command{
		Use:   "classify [text]",
		Short: "Show the subject and keywords the pipeline derives for a text",
		Long: `Classify a question text without touching the store. The text is read from
the argument or, when absent, from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := loadConfig()

			rs, err := rules.Load(cfg.RulesFile)
			if err != nil {
				return err
			}
			cls, err := classify.FromRules(rs)
			if err != nil {
				return err
			}

			text := strings.Join(args, " ")
			if text == "" {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(raw)
			}
			text = textfix.New(rs.Corrections).Correct(text)

			out := classification{
				Text:     text,
				Subject:  cls.Classify(text),
				Keywords: keyword.New(rs.Stopwords, keyword.DefaultMax).Extract(text),
			}
			if number > 0 {
				out.ByNumber = cls.ClassifyNumber(number)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().IntVar(&number, "number", 0, "also show the subject assigned to this question number")

	return cmd
}
