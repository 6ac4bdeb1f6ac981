package service

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stemsi/examkb/internal/classify"
	"github.com/stemsi/examkb/internal/config"
	"github.com/stemsi/examkb/internal/keyword"
	"github.com/stemsi/examkb/internal/repository"
	"github.com/stemsi/examkb/internal/rules"
	"github.com/stemsi/examkb/internal/textfix"
)

// Pipeline bundles the services that share one rule set and store.
type Pipeline struct {
	Rules      *rules.Rules
	Corrector  *textfix.Corrector
	Classifier *classify.Classifier
	Importer   *ImportService
	Batch      *BatchService
	Revisions  *RevisionService
}

// NewPipeline wires the pipeline from cfg. The rule set is loaded from
// cfg.RulesFile, or the embedded default when unset.
func NewPipeline(cfg *config.Config, store repository.QuestionStore, log zerolog.Logger) (*Pipeline, error) {
	rs, err := rules.Load(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	return NewPipelineWithRules(cfg, rs, store, log)
}

// NewPipelineWithRules wires the pipeline around an already loaded rule set.
func NewPipelineWithRules(cfg *config.Config, rs *rules.Rules, store repository.QuestionStore, log zerolog.Logger) (*Pipeline, error) {
	classifier, err := classify.FromRules(rs)
	if err != nil {
		return nil, fmt.Errorf("build classifier: %w", err)
	}
	corrector := textfix.New(rs.Corrections)
	keywords := keyword.New(rs.Stopwords, keyword.DefaultMax)

	importer := NewImportService(store, classifier, keywords, ImportOptions{
		StoreTimeout:         cfg.StoreTimeout,
		SubjectRangeFallback: cfg.SubjectRangeFallback,
	}, log)

	batch, err := NewBatchService(importer, corrector, BatchDefaults{
		Policy:        cfg.InvalidPolicy,
		MinBodyLength: cfg.MinBodyLength,
		Variant:       cfg.ParserVariant,
		Concurrency:   cfg.BatchConcurrency,
	}, log)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("corrections", corrector.Len()).
		Int("subjects", len(rs.Subjects)).
		Bool("range_fallback", cfg.SubjectRangeFallback && classifier.HasRanges()).
		Msg("Pipeline ready")

	return &Pipeline{
		Rules:      rs,
		Corrector:  corrector,
		Classifier: classifier,
		Importer:   importer,
		Batch:      batch,
		Revisions:  NewRevisionService(store, corrector, classifier, cfg.StoreTimeout, log),
	}, nil
}
