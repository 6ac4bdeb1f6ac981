package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/examkb/internal/classify"
	"github.com/stemsi/examkb/internal/model"
	"github.com/stemsi/examkb/internal/record"
	"github.com/stemsi/examkb/internal/repository"
	"github.com/stemsi/examkb/internal/textfix"
)

// ErrInvalidRange is returned for placeholder ranges outside the valid
// question numbers or with from > to.
var ErrInvalidRange = errors.New("invalid question number range")

// RevisionReasonRecorrect tags revisions written by Recorrect.
const RevisionReasonRecorrect = "ocr_recorrect"

// RecorrectResult counts the outcome of a re-correction pass.
type RecorrectResult struct {
	Scanned   int `json:"scanned"`
	Revised   int `json:"revised"`
	Conflicts int `json:"conflicts"`
}

// ReserveResult counts the outcome of a placeholder reservation.
type ReserveResult struct {
	Reserved int `json:"reserved"`
	Existing int `json:"existing"`
}

// RevisionService runs the quality passes over already stored questions.
type RevisionService struct {
	store      repository.QuestionStore
	corrector  *textfix.Corrector
	classifier *classify.Classifier
	timeout    time.Duration
	log        zerolog.Logger
}

// NewRevisionService creates a new RevisionService.
func NewRevisionService(
	store repository.QuestionStore,
	corrector *textfix.Corrector,
	classifier *classify.Classifier,
	timeout time.Duration,
	log zerolog.Logger,
) *RevisionService {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &RevisionService{
		store:      store,
		corrector:  corrector,
		classifier: classifier,
		timeout:    timeout,
		log:        log.With().Str("component", "revision_service").Logger(),
	}
}

// Recorrect re-applies the correction table to stored texts of examYear (all
// years when 0). Each changed text is rewritten together with a revision row.
// A text edited concurrently is counted as a conflict and left alone.
func (s *RevisionService) Recorrect(ctx context.Context, examYear int) (RecorrectResult, error) {
	var res RecorrectResult

	listCtx, cancel := context.WithTimeout(ctx, s.timeout)
	texts, err := s.store.ListQuestionTexts(listCtx, examYear)
	cancel()
	if err != nil {
		return res, fmt.Errorf("list question texts: %w", err)
	}

	for _, q := range texts {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++

		fixed := s.corrector.Correct(q.QuestionText)
		if fixed == q.QuestionText {
			continue
		}

		rev := model.Revision{
			QuestionID:   q.ID,
			PreviousText: q.QuestionText,
			NewText:      fixed,
			Reason:       RevisionReasonRecorrect,
		}
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		err := s.store.ReviseQuestionText(writeCtx, rev)
		cancel()
		switch {
		case errors.Is(err, repository.ErrRevisionConflict):
			res.Conflicts++
			s.log.Warn().Int64("id", q.ID).Msg("Question text changed during recorrect")
		case err != nil:
			return res, fmt.Errorf("revise question %d: %w", q.ID, err)
		default:
			res.Revised++
		}
	}

	s.log.Info().
		Int("exam_year", examYear).
		Int("scanned", res.Scanned).
		Int("revised", res.Revised).
		Int("conflicts", res.Conflicts).
		Msg("Recorrect finished")

	return res, nil
}

// ReservePlaceholders inserts incomplete template rows for every number in
// [from, to] that has no question yet. Existing rows are never touched.
func (s *RevisionService) ReservePlaceholders(ctx context.Context, examYear, round, from, to int) (ReserveResult, error) {
	var res ReserveResult
	if examYear <= 0 || from > to || !record.NumberInRange(from) || !record.NumberInRange(to) {
		return res, fmt.Errorf("%w: %d-%d", ErrInvalidRange, from, to)
	}
	if round <= 0 {
		round = model.DefaultExamRound
	}

	for n := from; n <= to; n++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		q := &model.ExamQuestion{
			ExamYear:       examYear,
			ExamRound:      round,
			QuestionNumber: n,
			Subject:        s.classifier.ClassifyNumber(n),
			QuestionType:   model.QuestionTypeMultipleChoice,
			Points:         model.DefaultPoints,
			IsIncomplete:   true,
		}

		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		_, err := s.store.CreateQuestion(writeCtx, q)
		cancel()
		switch {
		case errors.Is(err, repository.ErrDuplicateQuestion):
			res.Existing++
		case err != nil:
			return res, fmt.Errorf("reserve %d: %w", n, err)
		default:
			res.Reserved++
		}
	}

	s.log.Info().
		Int("exam_year", examYear).
		Int("exam_round", round).
		Int("reserved", res.Reserved).
		Int("existing", res.Existing).
		Msg("Placeholders reserved")

	return res, nil
}
