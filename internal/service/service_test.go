package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/examkb/internal/config"
	"github.com/stemsi/examkb/internal/database"
	"github.com/stemsi/examkb/internal/migrations"
	"github.com/stemsi/examkb/internal/model"
	"github.com/stemsi/examkb/internal/repository"
)

func testConfig() *config.Config {
	return &config.Config{
		StoreTimeout:     time.Second,
		BatchConcurrency: 2,
		MinBodyLength:    10,
		InvalidPolicy:    "drop",
		ParserVariant:    "standard",
	}
}

func newSQLiteStore(t *testing.T) *repository.SQLiteQuestionStore {
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
	return repository.NewSQLiteQuestionStore(db)
}

func newTestPipeline(t *testing.T, store repository.QuestionStore) *Pipeline {
	t.Helper()
	p, err := NewPipeline(testConfig(), store, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// examDoc renders well-formed questions for the given numbers.
func examDoc(numbers ...int) string {
	var b strings.Builder
	for _, n := range numbers {
		fmt.Fprintf(&b, "%d. 다음 중 소나무재선충병의 매개충으로 옳은 것은? (%d)\n", n, n)
		fmt.Fprintf(&b, "① 솔수염하늘소 %d\n② 솔잎혹파리 %d\n③ 소나무좀 %d\n④ 매미나방 %d\n", n, n, n, n)
		b.WriteString("정답: ①\n\n")
	}
	return b.String()
}

// fakeStore overrides selected QuestionStore methods. Calling a method that
// is not overridden panics.
type fakeStore struct {
	repository.QuestionStore
	find   func(ctx context.Context, key model.QuestionKey) (int64, bool, error)
	create func(ctx context.Context, q *model.ExamQuestion) (int64, error)
}

func (f *fakeStore) FindQuestionID(ctx context.Context, key model.QuestionKey) (int64, bool, error) {
	if f.find == nil {
		return 0, false, nil
	}
	return f.find(ctx, key)
}

func (f *fakeStore) CreateQuestion(ctx context.Context, q *model.ExamQuestion) (int64, error) {
	return f.create(ctx, q)
}

// importerFunc adapts a function to QuestionImporter.
type importerFunc func(ctx context.Context, examYear int, c model.Candidate) (model.ImportResult, error)

func (f importerFunc) ImportQuestion(ctx context.Context, examYear int, c model.Candidate) (model.ImportResult, error) {
	return f(ctx, examYear, c)
}
