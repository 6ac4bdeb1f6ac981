package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stemsi/examkb/internal/database"
	"github.com/stemsi/examkb/internal/model"
)

// SQLiteQuestionStore is the QuestionStore backed by SQLite.
type SQLiteQuestionStore struct {
	db *sql.DB
}

// NewSQLiteQuestionStore creates a new SQLiteQuestionStore.
func NewSQLiteQuestionStore(db *sql.DB) *SQLiteQuestionStore {
	return &SQLiteQuestionStore{db: db}
}

// Ping checks that the SQLite database is reachable.
func (s *SQLiteQuestionStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// FindQuestionID looks up a question ID by dedup key.
func (s *SQLiteQuestionStore) FindQuestionID(ctx context.Context, key model.QuestionKey) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM exam_questions
		 WHERE exam_year = ? AND exam_round = ? AND question_number = ?`,
		key.ExamYear, key.ExamRound, key.QuestionNumber,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find question: %w", err)
	}
	return id, true, nil
}

// CreateQuestion inserts a question and its children in one transaction.
func (s *SQLiteQuestionStore) CreateQuestion(ctx context.Context, q *model.ExamQuestion) (int64, error) {
	now := time.Now().UTC()

	var id int64
	err := database.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO exam_questions
			   (exam_year, exam_round, question_number, subject, question_text, question_type, points, is_incomplete, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (exam_year, exam_round, question_number) DO NOTHING
			 RETURNING id`,
			q.ExamYear, q.ExamRound, q.QuestionNumber, q.Subject, q.QuestionText,
			string(q.QuestionType), q.Points, q.IsIncomplete, now.Format(time.RFC3339Nano),
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDuplicateQuestion
		}
		if err != nil {
			return fmt.Errorf("insert question: %w", err)
		}

		for _, c := range q.Choices {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO exam_choices (question_id, choice_number, choice_text, is_correct)
				 VALUES (?, ?, ?, ?)`,
				id, c.ChoiceNumber, c.ChoiceText, c.IsCorrect,
			); err != nil {
				return fmt.Errorf("insert choice %d: %w", c.ChoiceNumber, err)
			}
		}

		if q.Answer != nil {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO exam_answers (question_id, correct_answer, explanation) VALUES (?, ?, ?)`,
				id, q.Answer.CorrectAnswer, q.Answer.Explanation,
			); err != nil {
				return fmt.Errorf("insert answer: %w", err)
			}
		}

		for _, kw := range q.Keywords {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO exam_keywords (question_id, keyword) VALUES (?, ?)
				 ON CONFLICT (question_id, keyword) DO NOTHING`,
				id, kw,
			); err != nil {
				return fmt.Errorf("insert keyword: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	q.ID = id
	q.CreatedAt = now
	return id, nil
}

// GetQuestion retrieves a question with its choices, answer and keywords.
func (s *SQLiteQuestionStore) GetQuestion(ctx context.Context, key model.QuestionKey) (*model.ExamQuestion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+questionColumns+` FROM exam_questions
		 WHERE exam_year = ? AND exam_round = ? AND question_number = ?`,
		key.ExamYear, key.ExamRound, key.QuestionNumber,
	)
	q, err := scanSQLiteQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}

	if err := s.loadChildren(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *SQLiteQuestionStore) loadChildren(ctx context.Context, q *model.ExamQuestion) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT choice_number, choice_text, is_correct FROM exam_choices
		 WHERE question_id = ? ORDER BY choice_number`, q.ID,
	)
	if err != nil {
		return fmt.Errorf("list choices: %w", err)
	}
	for rows.Next() {
		var c model.Choice
		if err := rows.Scan(&c.ChoiceNumber, &c.ChoiceText, &c.IsCorrect); err != nil {
			rows.Close()
			return err
		}
		q.Choices = append(q.Choices, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	var a model.Answer
	err = s.db.QueryRowContext(ctx,
		`SELECT correct_answer, explanation FROM exam_answers WHERE question_id = ?`, q.ID,
	).Scan(&a.CorrectAnswer, &a.Explanation)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("get answer: %w", err)
	default:
		q.Answer = &a
	}

	kwRows, err := s.db.QueryContext(ctx,
		`SELECT keyword FROM exam_keywords WHERE question_id = ? ORDER BY id`, q.ID,
	)
	if err != nil {
		return fmt.Errorf("list keywords: %w", err)
	}
	defer kwRows.Close()
	for kwRows.Next() {
		var kw string
		if err := kwRows.Scan(&kw); err != nil {
			return err
		}
		q.Keywords = append(q.Keywords, kw)
	}
	return kwRows.Err()
}

// ListQuestions returns one page of questions (without children) and the total count.
func (s *SQLiteQuestionStore) ListQuestions(ctx context.Context, f model.QuestionFilter) ([]model.ExamQuestion, int, error) {
	f = normalizeFilter(f)

	var (
		conds []string
		args  []interface{}
	)
	if f.ExamYear > 0 {
		conds = append(conds, "exam_year = ?")
		args = append(args, f.ExamYear)
	}
	if f.ExamRound > 0 {
		conds = append(conds, "exam_round = ?")
		args = append(args, f.ExamRound)
	}
	if f.Subject != "" {
		conds = append(conds, "subject = ?")
		args = append(args, f.Subject)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exam_questions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count questions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM exam_questions`+where+
			` ORDER BY exam_year, exam_round, question_number LIMIT ? OFFSET ?`,
		append(args, f.Limit, f.Offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []model.ExamQuestion
	for rows.Next() {
		q, err := scanSQLiteQuestion(rows)
		if err != nil {
			return nil, 0, err
		}
		questions = append(questions, *q)
	}
	return questions, total, rows.Err()
}

// ListQuestionTexts returns the stored texts for a year, or all years when examYear is 0.
func (s *SQLiteQuestionStore) ListQuestionTexts(ctx context.Context, examYear int) ([]model.ExamQuestion, error) {
	query := `SELECT id, exam_year, exam_round, question_number, question_text FROM exam_questions`
	var args []interface{}
	if examYear > 0 {
		query += ` WHERE exam_year = ?`
		args = append(args, examYear)
	}
	query += ` ORDER BY exam_year, exam_round, question_number`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list question texts: %w", err)
	}
	defer rows.Close()

	var out []model.ExamQuestion
	for rows.Next() {
		var q model.ExamQuestion
		if err := rows.Scan(&q.ID, &q.ExamYear, &q.ExamRound, &q.QuestionNumber, &q.QuestionText); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// ReviseQuestionText updates the text and records the revision atomically.
func (s *SQLiteQuestionStore) ReviseQuestionText(ctx context.Context, rev model.Revision) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return database.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE exam_questions SET question_text = ? WHERE id = ? AND question_text = ?`,
			rev.NewText, rev.QuestionID, rev.PreviousText,
		)
		if err != nil {
			return fmt.Errorf("update question text: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrRevisionConflict
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO exam_question_revisions (question_id, previous_text, new_text, reason, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			rev.QuestionID, rev.PreviousText, rev.NewText, rev.Reason, now,
		); err != nil {
			return fmt.Errorf("insert revision: %w", err)
		}
		return nil
	})
}

// ListRevisions returns the revision history of a question, oldest first.
func (s *SQLiteQuestionStore) ListRevisions(ctx context.Context, questionID int64) ([]model.Revision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question_id, previous_text, new_text, reason, created_at
		 FROM exam_question_revisions WHERE question_id = ? ORDER BY id`, questionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	var out []model.Revision
	for rows.Next() {
		var (
			r       model.Revision
			created string
		)
		if err := rows.Scan(&r.ID, &r.QuestionID, &r.PreviousText, &r.NewText, &r.Reason, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = parseSQLiteTime(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ─── Scanning helpers ─────────────────────────────────────────────────

const questionColumns = `id, exam_year, exam_round, question_number, subject, question_text,
	question_type, points, is_incomplete, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteQuestion(row rowScanner) (*model.ExamQuestion, error) {
	var (
		q       model.ExamQuestion
		qType   string
		created string
	)
	if err := row.Scan(&q.ID, &q.ExamYear, &q.ExamRound, &q.QuestionNumber, &q.Subject,
		&q.QuestionText, &qType, &q.Points, &q.IsIncomplete, &created); err != nil {
		return nil, err
	}
	q.QuestionType = model.QuestionType(qType)
	q.CreatedAt = parseSQLiteTime(created)
	return &q, nil
}

func parseSQLiteTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
