package model

import (
	"sort"
	"time"
)

// QuestionType distinguishes multiple-choice from free-answer questions.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
)

// Numbering and defaults shared by the parser, validator and store.
const (
	MinQuestionNumber = 1
	MaxQuestionNumber = 150
	DefaultExamRound  = 1
	DefaultPoints     = 1
)

// ExamQuestion is a stored exam question. (ExamYear, ExamRound, QuestionNumber)
// is unique.
type ExamQuestion struct {
	ID             int64        `json:"id"`
	ExamYear       int          `json:"exam_year"`
	ExamRound      int          `json:"exam_round"`
	QuestionNumber int          `json:"question_number"`
	Subject        string       `json:"subject"`
	QuestionText   string       `json:"question_text"`
	QuestionType   QuestionType `json:"question_type"`
	Points         int          `json:"points"`
	IsIncomplete   bool         `json:"is_incomplete"`
	CreatedAt      time.Time    `json:"created_at"`
	Choices        []Choice     `json:"choices,omitempty"`
	Answer         *Answer      `json:"answer,omitempty"`
	Keywords       []string     `json:"keywords,omitempty"`
}

// Choice is one numbered option of a multiple-choice question.
type Choice struct {
	ChoiceNumber int    `json:"choice_number"`
	ChoiceText   string `json:"choice_text"`
	IsCorrect    bool   `json:"is_correct"`
}

// Answer holds the recorded answer and optional explanation.
type Answer struct {
	CorrectAnswer string `json:"correct_answer"`
	Explanation   string `json:"explanation,omitempty"`
}

// QuestionKey is the deduplication key of a question.
type QuestionKey struct {
	ExamYear       int
	ExamRound      int
	QuestionNumber int
}

// QuestionFilter narrows a question listing.
type QuestionFilter struct {
	ExamYear  int
	ExamRound int
	Subject   string
	Limit     int
	Offset    int
}

// Revision records a rewrite of a stored question text.
type Revision struct {
	ID           int64     `json:"id"`
	QuestionID   int64     `json:"question_id"`
	PreviousText string    `json:"previous_text"`
	NewText      string    `json:"new_text"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

// ImportResult is the outcome of importing one candidate.
type ImportResult struct {
	Inserted   bool  `json:"inserted"`
	QuestionID int64 `json:"question_id,omitempty"`
}

// Candidate is a parsed question that has not been validated or stored yet.
type Candidate struct {
	Number      int
	Round       int
	Body        string
	Choices     map[int]string
	Answer      string
	Explanation string
	Subject     string
	AnswerSeen  bool
	Incomplete  bool
}

// ChoiceNumbers returns the captured choice numbers in ascending order.
func (c Candidate) ChoiceNumbers() []int {
	nums := make([]int, 0, len(c.Choices))
	for n := range c.Choices {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// ExamRoundOrDefault returns Round, or DefaultExamRound when unset.
func (c Candidate) ExamRoundOrDefault() int {
	if c.Round > 0 {
		return c.Round
	}
	return DefaultExamRound
}

// QuestionListQuery is the query string of the question listing endpoint.
type QuestionListQuery struct {
	ExamYear  int    `form:"exam_year" binding:"omitempty,min=1"`
	ExamRound int    `form:"exam_round" binding:"omitempty,min=1"`
	Subject   string `form:"subject" binding:"omitempty,max=50"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PerPage   int    `form:"per_page" binding:"omitempty,min=1,max=100"`
}
