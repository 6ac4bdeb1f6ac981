package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stemsi/examkb/internal/model"
)

func TestRecorrect(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	p := newTestPipeline(t, store)

	clean := &model.ExamQuestion{ExamYear: 7, ExamRound: 1, QuestionNumber: 1, Subject: model.SubjectPathology,
		QuestionText: "뿌리혹선충의 피해 증상은?", QuestionType: model.QuestionTypeMultipleChoice, Points: 1}
	dirty := &model.ExamQuestion{ExamYear: 7, ExamRound: 1, QuestionNumber: 2, Subject: model.SubjectPathology,
		QuestionText: "뿌리에 GALLS 이 형성되는 병은?", QuestionType: model.QuestionTypeMultipleChoice, Points: 1}
	other := &model.ExamQuestion{ExamYear: 8, ExamRound: 1, QuestionNumber: 1, Subject: model.SubjectPathology,
		QuestionText: "줄기에 GALLS 형성", QuestionType: model.QuestionTypeMultipleChoice, Points: 1}
	for _, q := range []*model.ExamQuestion{clean, dirty, other} {
		if _, err := store.CreateQuestion(ctx, q); err != nil {
			t.Fatal(err)
		}
	}

	res, err := p.Revisions.Recorrect(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if res.Scanned != 2 || res.Revised != 1 || res.Conflicts != 0 {
		t.Errorf("result = %+v", res)
	}

	got, err := store.GetQuestion(ctx, model.QuestionKey{ExamYear: 7, ExamRound: 1, QuestionNumber: 2})
	if err != nil {
		t.Fatal(err)
	}
	if got.QuestionText != "뿌리에 혹 이 형성되는 병은?" {
		t.Errorf("QuestionText = %q", got.QuestionText)
	}

	revs, err := store.ListRevisions(ctx, dirty.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(revs) != 1 || revs[0].Reason != RevisionReasonRecorrect || revs[0].PreviousText != dirty.QuestionText {
		t.Errorf("revisions = %+v", revs)
	}

	// Year 8 was out of scope.
	untouched, err := store.GetQuestion(ctx, model.QuestionKey{ExamYear: 8, ExamRound: 1, QuestionNumber: 1})
	if err != nil {
		t.Fatal(err)
	}
	if untouched.QuestionText != other.QuestionText {
		t.Errorf("year 8 text = %q", untouched.QuestionText)
	}

	again, err := p.Revisions.Recorrect(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if again.Revised != 0 {
		t.Errorf("second pass revised %d", again.Revised)
	}
}

func TestReservePlaceholders(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	p := newTestPipeline(t, store)

	if _, err := p.Importer.ImportQuestion(ctx, 7, vectorCandidate(24)); err != nil {
		t.Fatal(err)
	}

	res, err := p.Revisions.ReservePlaceholders(ctx, 7, 1, 24, 27)
	if err != nil {
		t.Fatal(err)
	}
	if res.Reserved != 3 || res.Existing != 1 {
		t.Errorf("result = %+v, want 3 reserved 1 existing", res)
	}

	kept, err := store.GetQuestion(ctx, model.QuestionKey{ExamYear: 7, ExamRound: 1, QuestionNumber: 24})
	if err != nil {
		t.Fatal(err)
	}
	if kept.IsIncomplete || kept.QuestionText == "" {
		t.Errorf("existing question overwritten: %+v", kept)
	}

	tests := []struct {
		number  int
		subject string
	}{
		{25, model.SubjectPathology},
		{26, model.SubjectEntomology},
		{27, model.SubjectEntomology},
	}
	for _, tt := range tests {
		q, err := store.GetQuestion(ctx, model.QuestionKey{ExamYear: 7, ExamRound: 1, QuestionNumber: tt.number})
		if err != nil {
			t.Fatal(err)
		}
		if !q.IsIncomplete || q.Subject != tt.subject || q.QuestionText != "" {
			t.Errorf("placeholder %d = %+v", tt.number, q)
		}
	}
}

func TestReservePlaceholdersInvalidRange(t *testing.T) {
	p := newTestPipeline(t, newSQLiteStore(t))
	tests := []struct {
		name           string
		year, from, to int
	}{
		{"reversed", 7, 10, 5},
		{"zero", 7, 0, 5},
		{"past max", 7, 140, 151},
		{"no year", 0, 1, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Revisions.ReservePlaceholders(context.Background(), tt.year, 1, tt.from, tt.to)
			if !errors.Is(err, ErrInvalidRange) {
				t.Errorf("err = %v, want ErrInvalidRange", err)
			}
		})
	}
}
