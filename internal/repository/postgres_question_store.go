package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examkb/internal/model"
)

// PostgresQuestionStore is the QuestionStore backed by PostgreSQL.
type PostgresQuestionStore struct {
	pool *pgxpool.Pool
}

// NewPostgresQuestionStore creates a new PostgresQuestionStore.
func NewPostgresQuestionStore(pool *pgxpool.Pool) *PostgresQuestionStore {
	return &PostgresQuestionStore{pool: pool}
}

// Ping checks that the PostgreSQL pool is reachable.
func (s *PostgresQuestionStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// FindQuestionID looks up a question ID by dedup key.
func (s *PostgresQuestionStore) FindQuestionID(ctx context.Context, key model.QuestionKey) (int64, bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM exam_questions
		 WHERE exam_year = $1 AND exam_round = $2 AND question_number = $3`,
		key.ExamYear, key.ExamRound, key.QuestionNumber,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find question: %w", err)
	}
	return id, true, nil
}

// CreateQuestion inserts a question and its children in one transaction.
func (s *PostgresQuestionStore) CreateQuestion(ctx context.Context, q *model.ExamQuestion) (int64, error) {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO exam_questions
			   (exam_year, exam_round, question_number, subject, question_text, question_type, points, is_incomplete)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (exam_year, exam_round, question_number) DO NOTHING
			 RETURNING id, created_at`,
			q.ExamYear, q.ExamRound, q.QuestionNumber, q.Subject, q.QuestionText,
			string(q.QuestionType), q.Points, q.IsIncomplete,
		).Scan(&q.ID, &q.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDuplicateQuestion
		}
		if err != nil {
			return fmt.Errorf("insert question: %w", err)
		}

		if len(q.Choices) > 0 {
			batch := &pgx.Batch{}
			for _, c := range q.Choices {
				batch.Queue(
					`INSERT INTO exam_choices (question_id, choice_number, choice_text, is_correct)
					 VALUES ($1, $2, $3, $4)`,
					q.ID, c.ChoiceNumber, c.ChoiceText, c.IsCorrect,
				)
			}
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("insert choices: %w", err)
			}
		}

		if q.Answer != nil {
			if _, err := tx.Exec(ctx,
				`INSERT INTO exam_answers (question_id, correct_answer, explanation) VALUES ($1, $2, $3)`,
				q.ID, q.Answer.CorrectAnswer, q.Answer.Explanation,
			); err != nil {
				return fmt.Errorf("insert answer: %w", err)
			}
		}

		if len(q.Keywords) > 0 {
			if _, err := tx.Exec(ctx,
				`INSERT INTO exam_keywords (question_id, keyword)
				 SELECT $1, k FROM UNNEST($2::text[]) AS k
				 ON CONFLICT (question_id, keyword) DO NOTHING`,
				q.ID, q.Keywords,
			); err != nil {
				return fmt.Errorf("insert keywords: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		q.ID = 0
		return 0, err
	}
	return q.ID, nil
}

// GetQuestion retrieves a question with its choices, answer and keywords.
func (s *PostgresQuestionStore) GetQuestion(ctx context.Context, key model.QuestionKey) (*model.ExamQuestion, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM exam_questions
		 WHERE exam_year = $1 AND exam_round = $2 AND question_number = $3`,
		key.ExamYear, key.ExamRound, key.QuestionNumber,
	)
	q, err := scanPostgresQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT choice_number, choice_text, is_correct FROM exam_choices
		 WHERE question_id = $1 ORDER BY choice_number`, q.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("list choices: %w", err)
	}
	q.Choices, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Choice, error) {
		var c model.Choice
		err := row.Scan(&c.ChoiceNumber, &c.ChoiceText, &c.IsCorrect)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan choices: %w", err)
	}

	var a model.Answer
	err = s.pool.QueryRow(ctx,
		`SELECT correct_answer, explanation FROM exam_answers WHERE question_id = $1`, q.ID,
	).Scan(&a.CorrectAnswer, &a.Explanation)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("get answer: %w", err)
	default:
		q.Answer = &a
	}

	kwRows, err := s.pool.Query(ctx,
		`SELECT keyword FROM exam_keywords WHERE question_id = $1 ORDER BY id`, q.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
	}
	q.Keywords, err = pgx.CollectRows(kwRows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan keywords: %w", err)
	}

	return q, nil
}

// ListQuestions returns one page of questions (without children) and the total count.
func (s *PostgresQuestionStore) ListQuestions(ctx context.Context, f model.QuestionFilter) ([]model.ExamQuestion, int, error) {
	f = normalizeFilter(f)

	var (
		conds []string
		args  []interface{}
	)
	if f.ExamYear > 0 {
		args = append(args, f.ExamYear)
		conds = append(conds, fmt.Sprintf("exam_year = $%d", len(args)))
	}
	if f.ExamRound > 0 {
		args = append(args, f.ExamRound)
		conds = append(conds, fmt.Sprintf("exam_round = $%d", len(args)))
	}
	if f.Subject != "" {
		args = append(args, f.Subject)
		conds = append(conds, fmt.Sprintf("subject = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exam_questions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count questions: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := s.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM exam_questions`+where+
			fmt.Sprintf(` ORDER BY exam_year, exam_round, question_number LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []model.ExamQuestion
	for rows.Next() {
		q, err := scanPostgresQuestion(rows)
		if err != nil {
			return nil, 0, err
		}
		questions = append(questions, *q)
	}
	return questions, total, rows.Err()
}

// ListQuestionTexts returns the stored texts for a year, or all years when examYear is 0.
func (s *PostgresQuestionStore) ListQuestionTexts(ctx context.Context, examYear int) ([]model.ExamQuestion, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, exam_year, exam_round, question_number, question_text FROM exam_questions
		 WHERE $1 = 0 OR exam_year = $1
		 ORDER BY exam_year, exam_round, question_number`, examYear,
	)
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
func (s *PostgresQuestionStore) ReviseQuestionText(ctx context.Context, rev model.Revision) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE exam_questions SET question_text = $1 WHERE id = $2 AND question_text = $3`,
			rev.NewText, rev.QuestionID, rev.PreviousText,
		)
		if err != nil {
			return fmt.Errorf("update question text: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrRevisionConflict
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO exam_question_revisions (question_id, previous_text, new_text, reason)
			 VALUES ($1, $2, $3, $4)`,
			rev.QuestionID, rev.PreviousText, rev.NewText, rev.Reason,
		); err != nil {
			return fmt.Errorf("insert revision: %w", err)
		}
		return nil
	})
}

// ListRevisions returns the revision history of a question, oldest first.
func (s *PostgresQuestionStore) ListRevisions(ctx context.Context, questionID int64) ([]model.Revision, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, question_id, previous_text, new_text, reason, created_at
		 FROM exam_question_revisions WHERE question_id = $1 ORDER BY id`, questionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	var out []model.Revision
	for rows.Next() {
		var r model.Revision
		if err := rows.Scan(&r.ID, &r.QuestionID, &r.PreviousText, &r.NewText, &r.Reason, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanPostgresQuestion(row pgx.Row) (*model.ExamQuestion, error) {
	var (
		q     model.ExamQuestion
		qType string
	)
	if err := row.Scan(&q.ID, &q.ExamYear, &q.ExamRound, &q.QuestionNumber, &q.Subject,
		&q.QuestionText, &qType, &q.Points, &q.IsIncomplete, &q.CreatedAt); err != nil {
		return nil, err
	}
	q.QuestionType = model.QuestionType(qType)
	return &q, nil
}
