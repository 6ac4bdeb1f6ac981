package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/examkb/internal/database"
	"github.com/stemsi/examkb/internal/migrations"
	"github.com/stemsi/examkb/internal/model"
	"github.com/stemsi/examkb/internal/repository"
	"github.com/stemsi/examkb/internal/response"
	"github.com/stemsi/examkb/internal/service"
	"github.com/stemsi/examkb/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

type envelope struct {
	Data       json.RawMessage      `json:"data"`
	Error      *response.ErrorBody  `json:"error"`
	Pagination *response.Pagination `json:"pagination"`
}

func doRequest(t *testing.T, r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return w, env
}

// ─── Imports ────────────────────────────────────────────────────────

type fakeJobs struct {
	submitted []model.CreateImportRequest
	states    map[string]*model.ImportState
	err       error
}

func (f *fakeJobs) Submit(_ context.Context, req model.CreateImportRequest, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.submitted = append(f.submitted, req)
	return "3f0c8a52-6a8e-4b7e-9f61-0d0c4b1c2a11", nil
}

func (f *fakeJobs) Status(_ context.Context, id string) (*model.ImportState, error) {
	if f.err != nil {
		return nil, f.err
	}
	st, ok := f.states[id]
	if !ok {
		return nil, service.ErrImportNotFound
	}
	return st, nil
}

func (f *fakeJobs) SubscribeProgress(context.Context, string) *redis.PubSub {
	panic("not used")
}

func importRouter(jobs *fakeJobs) *gin.Engine {
	h := NewImportHandler(jobs, zerolog.Nop())
	r := gin.New()
	r.POST("/imports", h.CreateImport)
	r.GET("/imports/:id", h.GetImport)
	return r
}

func TestCreateImport(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		jobsErr    error
		wantStatus int
		wantCode   response.ErrCode
	}{
		{
			name:       "accepted",
			body:       gin.H{"sources": []gin.H{{"exam_year": 7, "text": "1. 본문"}}, "policy": "flag"},
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "no sources",
			body:       gin.H{"sources": []gin.H{}},
			wantStatus: http.StatusBadRequest,
			wantCode:   response.ErrValidation,
		},
		{
			name:       "blank text",
			body:       gin.H{"sources": []gin.H{{"exam_year": 7, "text": "  \n\t "}}},
			wantStatus: http.StatusBadRequest,
			wantCode:   response.ErrValidation,
		},
		{
			name:       "bad policy",
			body:       gin.H{"sources": []gin.H{{"exam_year": 7, "text": "x"}}, "policy": "keep"},
			wantStatus: http.StatusBadRequest,
			wantCode:   response.ErrValidation,
		},
		{
			name:       "bad variant",
			body:       gin.H{"sources": []gin.H{{"exam_year": 7, "text": "x", "variant": "roman"}}},
			wantStatus: http.StatusBadRequest,
			wantCode:   response.ErrValidation,
		},
		{
			name:       "queue down",
			body:       gin.H{"sources": []gin.H{{"exam_year": 7, "text": "x"}}},
			jobsErr:    errors.New("redis down"),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   response.ErrQueueUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := &fakeJobs{err: tt.jobsErr}
			w, env := doRequest(t, importRouter(jobs), http.MethodPost, "/imports", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantCode != "" {
				if env.Error == nil || env.Error.Code != tt.wantCode {
					t.Errorf("error = %+v, want %s", env.Error, tt.wantCode)
				}
				return
			}
			var data struct {
				ImportID string `json:"import_id"`
			}
			if err := json.Unmarshal(env.Data, &data); err != nil || data.ImportID == "" {
				t.Errorf("data = %s", env.Data)
			}
			if len(jobs.submitted) != 1 || jobs.submitted[0].Policy != "flag" {
				t.Errorf("submitted = %+v", jobs.submitted)
			}
		})
	}
}

func TestGetImport(t *testing.T) {
	const id = "3f0c8a52-6a8e-4b7e-9f61-0d0c4b1c2a11"
	jobs := &fakeJobs{states: map[string]*model.ImportState{
		id: {ID: id, Status: model.ImportStatusCompleted, Report: &model.BatchReport{ID: id}},
	}}
	r := importRouter(jobs)

	w, env := doRequest(t, r, http.MethodGet, "/imports/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var data struct {
		Import model.ImportState `json:"import"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Import.Status != model.ImportStatusCompleted || data.Import.Report == nil {
		t.Errorf("import = %+v", data.Import)
	}

	if w, _ := doRequest(t, r, http.MethodGet, "/imports/not-a-uuid", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", w.Code)
	}
	if w, env := doRequest(t, r, http.MethodGet, "/imports/6f1d2c1e-0000-4000-8000-000000000000", nil); w.Code != http.StatusNotFound || env.Error.Code != response.ErrImportNotFound {
		t.Errorf("missing status = %d", w.Code)
	}
}

// ─── Questions ──────────────────────────────────────────────────────

func questionRouter(t *testing.T) (*gin.Engine, repository.QuestionStore) {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "kb.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Up(db, migrations.DialectSQLite); err != nil {
		t.Fatal(err)
	}
	store := repository.NewSQLiteQuestionStore(db)

	h := NewQuestionHandler(store)
	r := gin.New()
	r.GET("/questions", h.ListQuestions)
	r.GET("/questions/:exam_year/:number", h.GetQuestion)
	r.GET("/questions/:exam_year/:number/revisions", h.ListRevisions)
	return r, store
}

func seedQuestion(t *testing.T, store repository.QuestionStore, year, round, number int) *model.ExamQuestion {
	t.Helper()
	q := &model.ExamQuestion{
		ExamYear: year, ExamRound: round, QuestionNumber: number,
		Subject: model.SubjectPathology, QuestionText: "다음 중 소나무재선충병의 매개충은?",
		QuestionType: model.QuestionTypeMultipleChoice, Points: 1,
		Choices: []model.Choice{{ChoiceNumber: 1, ChoiceText: "솔수염하늘소", IsCorrect: true}},
		Answer:  &model.Answer{CorrectAnswer: "1"},
	}
	if _, err := store.CreateQuestion(context.Background(), q); err != nil {
		t.Fatal(err)
	}
	return q
}

func TestListQuestions(t *testing.T) {
	r, store := questionRouter(t)
	for n := 1; n <= 3; n++ {
		seedQuestion(t, store, 7, 1, n)
	}
	seedQuestion(t, store, 8, 1, 1)

	w, env := doRequest(t, r, http.MethodGet, "/questions?exam_year=7&page=2&per_page=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	if env.Pagination == nil || env.Pagination.TotalItems != 3 || env.Pagination.TotalPages != 2 || env.Pagination.Page != 2 {
		t.Errorf("pagination = %+v", env.Pagination)
	}
	var data struct {
		Questions []model.ExamQuestion `json:"questions"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if len(data.Questions) != 1 || data.Questions[0].QuestionNumber != 3 {
		t.Errorf("questions = %+v", data.Questions)
	}

	if w, env := doRequest(t, r, http.MethodGet, "/questions?per_page=500", nil); w.Code != http.StatusBadRequest || env.Error.Fields["per_page"] == "" {
		t.Errorf("per_page=500 status = %d fields = %+v", w.Code, env.Error)
	}
}

func TestGetQuestion(t *testing.T) {
	r, store := questionRouter(t)
	seedQuestion(t, store, 7, 1, 5)
	seedQuestion(t, store, 7, 2, 5)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantRound  int
	}{
		{"default round", "/questions/7/5", http.StatusOK, 1},
		{"explicit round", "/questions/7/5?exam_round=2", http.StatusOK, 2},
		{"missing", "/questions/7/6", http.StatusNotFound, 0},
		{"bad number", "/questions/7/151", http.StatusBadRequest, 0},
		{"bad year", "/questions/abc/5", http.StatusBadRequest, 0},
		{"bad round", "/questions/7/5?exam_round=0", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := doRequest(t, r, http.MethodGet, tt.path, nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var data struct {
				Question model.ExamQuestion `json:"question"`
			}
			if err := json.Unmarshal(env.Data, &data); err != nil {
				t.Fatal(err)
			}
			if data.Question.ExamRound != tt.wantRound || len(data.Question.Choices) != 1 {
				t.Errorf("question = %+v", data.Question)
			}
		})
	}
}

func TestListRevisions(t *testing.T) {
	r, store := questionRouter(t)
	q := seedQuestion(t, store, 7, 1, 2)
	err := store.ReviseQuestionText(context.Background(), model.Revision{
		QuestionID: q.ID, PreviousText: q.QuestionText, NewText: "수정된 본문입니다", Reason: "manual",
	})
	if err != nil {
		t.Fatal(err)
	}

	w, env := doRequest(t, r, http.MethodGet, "/questions/7/2/revisions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var data struct {
		Revisions []model.Revision `json:"revisions"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if len(data.Revisions) != 1 || data.Revisions[0].NewText != "수정된 본문입니다" {
		t.Errorf("revisions = %+v", data.Revisions)
	}
}

// ─── Health ─────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantStatus int
	}{
		{"all ok", map[string]HealthCheck{"store": func(context.Context) error { return nil }}, http.StatusOK},
		{"redis down", map[string]HealthCheck{
			"store": func(context.Context) error { return nil },
			"redis": func(context.Context) error { return errors.New("dial tcp: refused") },
		}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/health", NewHealthHandler(tt.checks).Health)
			w, _ := doRequest(t, r, http.MethodGet, "/health", nil)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

// ─── WebSocket ──────────────────────────────────────────────────────

func TestProgressStreamRejectsBeforeUpgrade(t *testing.T) {
	h := NewWSHandler(&fakeJobs{states: map[string]*model.ImportState{}}, zerolog.Nop(), nil)
	r := gin.New()
	r.GET("/ws/imports/:id/progress", h.ImportProgressStream)

	if w, _ := doRequest(t, r, http.MethodGet, "/ws/imports/nope/progress", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", w.Code)
	}
	if w, _ := doRequest(t, r, http.MethodGet, "/ws/imports/6f1d2c1e-0000-4000-8000-000000000000/progress", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d", w.Code)
	}
}

func TestBuildUpgraderOrigins(t *testing.T) {
	u := buildUpgrader([]string{"https://kb.example"})
	tests := []struct {
		origin string
		want   bool
	}{
		{"https://kb.example", true},
		{"HTTPS://KB.EXAMPLE", true},
		{"https://evil.example", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", tt.origin)
		if got := u.CheckOrigin(req); got != tt.want {
			t.Errorf("CheckOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
	if !buildUpgrader(nil).CheckOrigin(httptest.NewRequest(http.MethodGet, "/", nil)) {
		t.Error("empty allow list should permit all origins")
	}
}
