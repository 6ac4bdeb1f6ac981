package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	govalidator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stemsi/examkb/internal/model"
	"github.com/stemsi/examkb/internal/parser"
	"github.com/stemsi/examkb/internal/record"
	"github.com/stemsi/examkb/internal/textfix"
)

var optionsValidate = govalidator.New(govalidator.WithRequiredStructEnabled())

// BatchOptions overrides the service defaults for one run. Zero values keep
// the defaults.
type BatchOptions struct {
	ID            string
	Policy        string `validate:"omitempty,oneof=drop flag"`
	MinBodyLength int    `validate:"omitempty,min=1,max=200"`
	Variant       string `validate:"omitempty,oneof=standard numbered bracketed labeled"`
	Concurrency   int    `validate:"omitempty,min=1,max=64"`
	// Progress receives source and batch events. It is called from the
	// per-source goroutines and must be safe for concurrent use.
	Progress func(model.ProgressEvent) `validate:"-"`
}

// BatchDefaults are the configured pipeline defaults.
type BatchDefaults struct {
	Policy        string `validate:"omitempty,oneof=drop flag"`
	MinBodyLength int    `validate:"min=0,max=200"`
	Variant       string `validate:"omitempty,oneof=standard numbered bracketed labeled"`
	Concurrency   int    `validate:"min=0,max=64"`
}

// BatchService drives the parse, validate and import pipeline over a set of
// sources and always produces a report.
type BatchService struct {
	importer  QuestionImporter
	corrector *textfix.Corrector
	defaults  BatchDefaults
	log       zerolog.Logger
}

// NewBatchService creates a new BatchService. It fails when the defaults are
// invalid.
func NewBatchService(importer QuestionImporter, corrector *textfix.Corrector, defaults BatchDefaults, log zerolog.Logger) (*BatchService, error) {
	if err := optionsValidate.Struct(defaults); err != nil {
		return nil, fmt.Errorf("batch defaults: %w", err)
	}
	if defaults.Concurrency <= 0 {
		defaults.Concurrency = 1
	}
	return &BatchService{
		importer:  importer,
		corrector: corrector,
		defaults:  defaults,
		log:       log.With().Str("component", "batch_service").Logger(),
	}, nil
}

type runSettings struct {
	policy      record.Policy
	validator   record.Validator
	variant     parser.Variant
	concurrency int
	progress    func(model.ProgressEvent)
	id          string
}

func (s *BatchService) settings(opts BatchOptions) (runSettings, error) {
	if err := optionsValidate.Struct(opts); err != nil {
		return runSettings{}, fmt.Errorf("batch options: %w", err)
	}

	policyName := firstNonEmpty(opts.Policy, s.defaults.Policy)
	policy, err := record.ParsePolicy(policyName)
	if err != nil {
		return runSettings{}, err
	}

	variant, err := parser.ParseVariant(firstNonEmpty(opts.Variant, s.defaults.Variant))
	if err != nil {
		return runSettings{}, err
	}

	minBody := opts.MinBodyLength
	if minBody == 0 {
		minBody = s.defaults.MinBodyLength
	}
	concurrency := opts.Concurrency
	if concurrency == 0 {
		concurrency = s.defaults.Concurrency
	}

	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}

	return runSettings{
		policy:      policy,
		validator:   record.NewValidator(minBody),
		variant:     variant,
		concurrency: concurrency,
		progress:    opts.Progress,
		id:          id,
	}, nil
}

// Run processes every source and returns the report. Sources run
// concurrently up to the configured limit; a failure in one source never
// affects another. Cancellation stops work between questions and before
// unstarted sources. The error is non-nil only for invalid options, in which
// case every source is reported as failed.
func (s *BatchService) Run(ctx context.Context, sources []model.Source, opts BatchOptions) (*model.BatchReport, error) {
	report := &model.BatchReport{
		StartedAt: time.Now().UTC(),
		PerSource: make([]model.SourceReport, len(sources)),
	}

	rs, err := s.settings(opts)
	if err != nil {
		report.ID = firstNonEmpty(opts.ID, uuid.New().String())
		for i, src := range sources {
			report.PerSource[i] = newSourceReport(src)
			report.PerSource[i].Errors = append(report.PerSource[i].Errors, err.Error())
		}
		report.FinishedAt = time.Now().UTC()
		report.Summarize()
		return report, err
	}
	report.ID = rs.id

	log := s.log.With().Str("import_id", rs.id).Logger()
	log.Info().
		Int("sources", len(sources)).
		Str("policy", string(rs.policy)).
		Str("variant", string(rs.variant)).
		Int("concurrency", rs.concurrency).
		Msg("Batch started")

	var g errgroup.Group
	g.SetLimit(rs.concurrency)
	for i, src := range sources {
		g.Go(func() error {
			report.PerSource[i] = s.runSource(ctx, i, src, rs, log)
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = time.Now().UTC()
	report.Cancelled = ctx.Err() != nil
	report.Summarize()

	if rs.progress != nil {
		totals := report.Totals
		rs.progress(model.ProgressEvent{
			Type:      model.ProgressBatchFinished,
			ImportID:  rs.id,
			Index:     len(sources),
			Totals:    &totals,
			Timestamp: report.FinishedAt,
		})
	}

	log.Info().
		Int("extracted", report.Totals.Extracted).
		Int("inserted", report.Totals.Inserted).
		Int("skipped_duplicate", report.Totals.SkippedDuplicate).
		Int("rejected_invalid", report.Totals.RejectedInvalid).
		Int("errors", report.Totals.Errors).
		Bool("cancelled", report.Cancelled).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Batch finished")

	return report, nil
}

func (s *BatchService) runSource(ctx context.Context, idx int, src model.Source, rs runSettings, log zerolog.Logger) model.SourceReport {
	rep := newSourceReport(src)
	log = log.With().Int("exam_year", src.ExamYear).Str("source", rep.Source).Logger()

	if ctx.Err() != nil {
		rep.Errors = append(rep.Errors, "cancelled before start")
		return rep
	}

	s.emit(rs, model.ProgressEvent{Type: model.ProgressSourceStarted, Index: idx, ExamYear: src.ExamYear, Source: rep.Source})
	defer func() {
		final := rep
		s.emit(rs, model.ProgressEvent{Type: model.ProgressSourceFinished, Index: idx, ExamYear: src.ExamYear, Source: rep.Source, Report: &final})
	}()

	text, err := readSource(src)
	if err != nil {
		log.Warn().Err(err).Msg("Source unreadable")
		rep.Errors = append(rep.Errors, err.Error())
		return rep
	}

	variant := rs.variant
	if src.Variant != "" {
		if variant, err = parser.ParseVariant(src.Variant); err != nil {
			rep.Errors = append(rep.Errors, err.Error())
			return rep
		}
	}
	p, err := parser.New(s.corrector, variant)
	if err != nil {
		rep.Errors = append(rep.Errors, err.Error())
		return rep
	}

	candidates := p.Parse(text)
	rep.Extracted = len(candidates)
	log.Debug().Str("variant", string(p.Variant())).Int("candidates", len(candidates)).Msg("Source parsed")

	candidates, shadowed := collapseRepeatedNumbers(candidates, rs.validator)
	if shadowed > 0 {
		rep.RejectedInvalid += shadowed
		log.Debug().Int("shadowed", shadowed).Msg("Repeated question numbers collapsed")
	}

	for i, c := range candidates {
		if ctx.Err() != nil {
			rep.Errors = append(rep.Errors, fmt.Sprintf("cancelled: %d questions not processed", len(candidates)-i))
			break
		}

		if src.ExamRound > 0 && c.Round == 0 {
			c.Round = src.ExamRound
		}

		if reasons := rs.validator.Check(c); len(reasons) > 0 {
			if rs.policy != record.PolicyFlag || !record.NumberInRange(c.Number) {
				rep.RejectedInvalid++
				log.Debug().Int("question", c.Number).Interface("reasons", reasons).Msg("Candidate rejected")
				continue
			}
			c.Incomplete = true
		}

		res, err := s.importer.ImportQuestion(ctx, src.ExamYear, c)
		if err != nil {
			log.Error().Err(err).Int("question", c.Number).Msg("Import failed")
			rep.Errors = append(rep.Errors, fmt.Sprintf("q%d: %v", c.Number, err))
			continue
		}
		switch {
		case !res.Inserted:
			rep.SkippedDuplicate++
		case c.Incomplete:
			rep.Inserted++
			rep.Incomplete++
		default:
			rep.Inserted++
		}
	}

	log.Info().
		Int("extracted", rep.Extracted).
		Int("inserted", rep.Inserted).
		Int("skipped_duplicate", rep.SkippedDuplicate).
		Int("rejected_invalid", rep.RejectedInvalid).
		Int("errors", len(rep.Errors)).
		Msg("Source finished")

	return rep
}

// collapseRepeatedNumbers keeps one candidate per question number, in order
// of first appearance. A valid candidate beats an invalid one, then the one
// with more choice texts wins, then the earlier one. It returns how many
// candidates were dropped.
func collapseRepeatedNumbers(candidates []model.Candidate, v record.Validator) ([]model.Candidate, int) {
	type slot struct {
		index int
		valid bool
	}
	seen := make(map[model.QuestionKey]slot, len(candidates))
	out := make([]model.Candidate, 0, len(candidates))

	for _, c := range candidates {
		key := model.QuestionKey{ExamRound: c.Round, QuestionNumber: c.Number}
		valid := v.IsValid(c)
		prev, ok := seen[key]
		if !ok {
			seen[key] = slot{index: len(out), valid: valid}
			out = append(out, c)
			continue
		}
		if betterCandidate(c, valid, out[prev.index], prev.valid) {
			out[prev.index] = c
			seen[key] = slot{index: prev.index, valid: valid}
		}
	}
	return out, len(candidates) - len(out)
}

func betterCandidate(c model.Candidate, valid bool, prev model.Candidate, prevValid bool) bool {
	if valid != prevValid {
		return valid
	}
	return filledChoices(c) > filledChoices(prev)
}

func filledChoices(c model.Candidate) int {
	n := 0
	for _, text := range c.Choices {
		if strings.TrimSpace(text) != "" {
			n++
		}
	}
	return n
}

func (s *BatchService) emit(rs runSettings, ev model.ProgressEvent) {
	if rs.progress == nil {
		return
	}
	ev.ImportID = rs.id
	ev.Timestamp = time.Now().UTC()
	rs.progress(ev)
}

func newSourceReport(src model.Source) model.SourceReport {
	round := src.ExamRound
	if round <= 0 {
		round = model.DefaultExamRound
	}
	return model.SourceReport{
		ExamYear:  src.ExamYear,
		ExamRound: round,
		Source:    src.Label(),
		Errors:    []string{},
	}
}

func readSource(src model.Source) (string, error) {
	if src.Text != "" {
		return src.Text, nil
	}
	if src.Path == "" {
		return "", nil
	}
	raw, err := os.ReadFile(src.Path)
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}
	return string(raw), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
