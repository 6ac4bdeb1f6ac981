package repository

import (
	"context"
	"errors"

	"github.com/stemsi/examkb/internal/model"
)

// Store errors.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateQuestion = errors.New("question already exists")
	ErrRevisionConflict  = errors.New("question text changed since it was read")
)

// QuestionStore persists exam questions. Every write is atomic: a failed call
// leaves nothing behind.
type QuestionStore interface {
	// FindQuestionID looks up a question by its dedup key.
	FindQuestionID(ctx context.Context, key model.QuestionKey) (int64, bool, error)
	// CreateQuestion inserts the question with its choices, answer and
	// keywords in one transaction. It returns ErrDuplicateQuestion when the
	// key is already taken.
	CreateQuestion(ctx context.Context, q *model.ExamQuestion) (int64, error)
	GetQuestion(ctx context.Context, key model.QuestionKey) (*model.ExamQuestion, error)
	ListQuestions(ctx context.Context, f model.QuestionFilter) ([]model.ExamQuestion, int, error)
	// ListQuestionTexts returns id, key and text of every question in a year
	// (all years when examYear is 0).
	ListQuestionTexts(ctx context.Context, examYear int) ([]model.ExamQuestion, error)
	// ReviseQuestionText swaps PreviousText for NewText and records the
	// revision. ErrRevisionConflict means the stored text no longer matches.
	ReviseQuestionText(ctx context.Context, rev model.Revision) error
	ListRevisions(ctx context.Context, questionID int64) ([]model.Revision, error)
	// Ping checks that the underlying database is reachable.
	Ping(ctx context.Context) error
}

func normalizeFilter(f model.QuestionFilter) model.QuestionFilter {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

var (
	_ QuestionStore = (*SQLiteQuestionStore)(nil)
	_ QuestionStore = (*PostgresQuestionStore)(nil)
)
