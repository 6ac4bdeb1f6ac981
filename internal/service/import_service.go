package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/examkb/internal/classify"
	"github.com/stemsi/examkb/internal/keyword"
	"github.com/stemsi/examkb/internal/model"
	"github.com/stemsi/examkb/internal/record"
	"github.com/stemsi/examkb/internal/repository"
)

// ErrNumberOutOfRange is returned for candidates that cannot satisfy the
// question-number invariant of the store.
var ErrNumberOutOfRange = errors.New("question number out of range")

// DefaultStoreTimeout bounds a single store call when none is configured.
const DefaultStoreTimeout = 5 * time.Second

// QuestionImporter stores one parsed candidate.
type QuestionImporter interface {
	ImportQuestion(ctx context.Context, examYear int, c model.Candidate) (model.ImportResult, error)
}

// ImportService is the insert-only importer. Existing questions are never
// overwritten.
type ImportService struct {
	store        repository.QuestionStore
	classifier   *classify.Classifier
	keywords     *keyword.Extractor
	storeTimeout time.Duration
	useRanges    bool
	log          zerolog.Logger
}

// ImportOptions tunes an ImportService.
type ImportOptions struct {
	StoreTimeout time.Duration
	// SubjectRangeFallback classifies by question number when keyword
	// matching yields the unclassified sentinel.
	SubjectRangeFallback bool
}

// NewImportService creates a new ImportService.
func NewImportService(
	store repository.QuestionStore,
	classifier *classify.Classifier,
	keywords *keyword.Extractor,
	opts ImportOptions,
	log zerolog.Logger,
) *ImportService {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = DefaultStoreTimeout
	}
	if keywords == nil {
		keywords = keyword.New(nil, 0)
	}
	return &ImportService{
		store:        store,
		classifier:   classifier,
		keywords:     keywords,
		storeTimeout: opts.StoreTimeout,
		useRanges:    opts.SubjectRangeFallback,
		log:          log.With().Str("component", "import_service").Logger(),
	}
}

// ImportQuestion stores c under (examYear, round, number) unless a question
// with that key exists. The store calls run detached from ctx cancellation so
// a question is either fully written or not at all; each call is bounded by
// the store timeout.
func (s *ImportService) ImportQuestion(ctx context.Context, examYear int, c model.Candidate) (model.ImportResult, error) {
	if !record.NumberInRange(c.Number) {
		return model.ImportResult{}, fmt.Errorf("%w: %d", ErrNumberOutOfRange, c.Number)
	}

	key := model.QuestionKey{
		ExamYear:       examYear,
		ExamRound:      c.ExamRoundOrDefault(),
		QuestionNumber: c.Number,
	}
	detached := context.WithoutCancel(ctx)

	lookupCtx, cancel := context.WithTimeout(detached, s.storeTimeout)
	id, found, err := s.store.FindQuestionID(lookupCtx, key)
	cancel()
	if err != nil {
		return model.ImportResult{}, fmt.Errorf("lookup: %w", err)
	}
	if found {
		return model.ImportResult{Inserted: false, QuestionID: id}, nil
	}

	q := s.BuildQuestion(key, c)

	txCtx, cancel := context.WithTimeout(detached, s.storeTimeout)
	defer cancel()

	id, err = s.store.CreateQuestion(txCtx, q)
	if errors.Is(err, repository.ErrDuplicateQuestion) {
		return model.ImportResult{Inserted: false}, nil
	}
	if err != nil {
		return model.ImportResult{}, fmt.Errorf("insert: %w", err)
	}

	s.log.Debug().
		Int("exam_year", key.ExamYear).
		Int("exam_round", key.ExamRound).
		Int("question", key.QuestionNumber).
		Str("subject", q.Subject).
		Int64("id", id).
		Msg("Question imported")

	return model.ImportResult{Inserted: true, QuestionID: id}, nil
}

// BuildQuestion maps a candidate to the row set written for it.
func (s *ImportService) BuildQuestion(key model.QuestionKey, c model.Candidate) *model.ExamQuestion {
	q := &model.ExamQuestion{
		ExamYear:       key.ExamYear,
		ExamRound:      key.ExamRound,
		QuestionNumber: key.QuestionNumber,
		Subject:        s.subjectFor(c),
		QuestionText:   c.Body,
		QuestionType:   questionType(c),
		Points:         model.DefaultPoints,
		IsIncomplete:   c.Incomplete,
		Keywords:       s.keywords.Extract(c.Body),
	}

	for _, n := range c.ChoiceNumbers() {
		text := strings.TrimSpace(c.Choices[n])
		if text == "" {
			// Bare choice markers carry no text.
			continue
		}
		q.Choices = append(q.Choices, model.Choice{
			ChoiceNumber: n,
			ChoiceText:   text,
			IsCorrect:    c.Answer != "" && strconv.Itoa(n) == c.Answer,
		})
	}

	if c.AnswerSeen || c.Explanation != "" {
		q.Answer = &model.Answer{CorrectAnswer: c.Answer, Explanation: c.Explanation}
	}
	return q
}

func (s *ImportService) subjectFor(c model.Candidate) string {
	if c.Subject != "" {
		return c.Subject
	}
	subject := s.classifier.Classify(c.Body)
	if subject == model.SubjectUnclassified && s.useRanges {
		subject = s.classifier.ClassifyNumber(c.Number)
	}
	return subject
}

// questionType treats a question without choices whose answer is not a
// choice number as short answer.
func questionType(c model.Candidate) model.QuestionType {
	if len(c.Choices) > 0 || c.Answer == "" {
		return model.QuestionTypeMultipleChoice
	}
	if n, err := strconv.Atoi(c.Answer); err == nil && n >= 1 && n <= 5 {
		return model.QuestionTypeMultipleChoice
	}
	return model.QuestionTypeShortAnswer
}
