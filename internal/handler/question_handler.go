package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examkb/internal/model"
	"github.com/stemsi/examkb/internal/repository"
	"github.com/stemsi/examkb/internal/response"
	"github.com/stemsi/examkb/internal/validator"
)

const defaultPerPage = 20

// QuestionReader is the read side of the question store.
type QuestionReader interface {
	GetQuestion(ctx context.Context, key model.QuestionKey) (*model.ExamQuestion, error)
	ListQuestions(ctx context.Context, f model.QuestionFilter) ([]model.ExamQuestion, int, error)
	ListRevisions(ctx context.Context, questionID int64) ([]model.Revision, error)
}

// QuestionHandler serves stored exam questions.
type QuestionHandler struct {
	store QuestionReader
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(store QuestionReader) *QuestionHandler {
	return &QuestionHandler{store: store}
}

// ListQuestions godoc
// GET /api/v1/questions?exam_year=&exam_round=&subject=&page=&per_page=
// Lists questions ordered by year, round and number.
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	var q model.QuestionListQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	page := max(q.Page, 1)
	perPage := q.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}

	questions, total, err := h.store.ListQuestions(c.Request.Context(), model.QuestionFilter{
		ExamYear:  q.ExamYear,
		ExamRound: q.ExamRound,
		Subject:   q.Subject,
		Limit:     perPage,
		Offset:    (page - 1) * perPage,
	})
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if questions == nil {
		questions = []model.ExamQuestion{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"questions": questions}, response.NewPagination(page, perPage, total))
}

// GetQuestion godoc
// GET /api/v1/questions/:exam_year/:number?exam_round=
// Returns one question with its choices, answer and keywords.
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	key, ok := parseQuestionKey(c)
	if !ok {
		return
	}

	q, err := h.store.GetQuestion(c.Request.Context(), key)
	if errors.Is(err, repository.ErrNotFound) {
		response.Fail(c, http.StatusNotFound, response.ErrQuestionNotFound)
		return
	}
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question": q})
}

// ListRevisions godoc
// GET /api/v1/questions/:exam_year/:number/revisions?exam_round=
// Returns the text revision history of one question.
func (h *QuestionHandler) ListRevisions(c *gin.Context) {
	key, ok := parseQuestionKey(c)
	if !ok {
		return
	}

	q, err := h.store.GetQuestion(c.Request.Context(), key)
	if errors.Is(err, repository.ErrNotFound) {
		response.Fail(c, http.StatusNotFound, response.ErrQuestionNotFound)
		return
	}
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	revs, err := h.store.ListRevisions(c.Request.Context(), q.ID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if revs == nil {
		revs = []model.Revision{}
	}

	response.Success(c, http.StatusOK, gin.H{"revisions": revs})
}

// parseQuestionKey reads the key from the path and query. It writes the
// error response itself and reports false on bad input.
func parseQuestionKey(c *gin.Context) (model.QuestionKey, bool) {
	year, err := strconv.Atoi(c.Param("exam_year"))
	if err != nil || year <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return model.QuestionKey{}, false
	}
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number < model.MinQuestionNumber || number > model.MaxQuestionNumber {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return model.QuestionKey{}, false
	}

	round := model.DefaultExamRound
	if raw := c.Query("exam_round"); raw != "" {
		round, err = strconv.Atoi(raw)
		if err != nil || round <= 0 {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
				map[string]string{"exam_round": "exam_round must be a positive integer"})
			return model.QuestionKey{}, false
		}
	}

	return model.QuestionKey{ExamYear: year, ExamRound: round, QuestionNumber: number}, true
}
