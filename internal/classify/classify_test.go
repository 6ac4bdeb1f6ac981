package classify

import (
	"testing"

	"github.com/stemsi/examkb/internal/model"
	"github.com/stemsi/examkb/internal/rules"
)

func defaultClassifier(t *testing.T) *Classifier {
	t.Helper()
	r, err := rules.Default()
	if err != nil {
		t.Fatal(err)
	}
	c, err := FromRules(r)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestClassify(t *testing.T) {
	c := defaultClassifier(t)

	tests := []struct {
		text string
		want string
	}{
		{"다음 중 소나무재선충병의 매개충은?", model.SubjectPathology},
		{"솔잎혹파리 유충의 월동 장소는?", model.SubjectEntomology},
		{"광합성 명반응에 대한 설명으로 옳은 것은?", model.SubjectPhysiology},
		{"가지치기 시기로 가장 적절한 것은?", model.SubjectManagement},
		{"토양의 양이온교환용량에 대한 설명은?", model.SubjectSoil},
		{"천연갱신 방법으로 옳은 것은?", model.SubjectForestry},
		{"다음 중 옳은 것은?", model.SubjectUnclassified},
		{"", model.SubjectUnclassified},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := c.Classify(tt.text); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.text, got, tt.want)
			}
		})
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	c, err := New([]rules.SubjectPattern{
		{Subject: "A", Pattern: "공통"},
		{Subject: "B", Pattern: "공통|특수"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Classify("공통 특수"); got != "A" {
		t.Errorf("Classify = %s, want A", got)
	}
	if got := c.Classify("특수"); got != "B" {
		t.Errorf("Classify = %s, want B", got)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := defaultClassifier(t)
	text := "흰가루병 병원균과 매개충"
	first := c.Classify(text)
	for i := 0; i < 50; i++ {
		if got := c.Classify(text); got != first {
			t.Fatalf("run %d: got %s, want %s", i, got, first)
		}
	}
}

func TestClassifyNumber(t *testing.T) {
	c := defaultClassifier(t)
	tests := []struct {
		n    int
		want string
	}{
		{1, model.SubjectPathology},
		{25, model.SubjectPathology},
		{26, model.SubjectEntomology},
		{80, model.SubjectSoil},
		{125, model.SubjectManagement},
		{126, model.SubjectUnclassified},
		{0, model.SubjectUnclassified},
	}
	for _, tt := range tests {
		if got := c.ClassifyNumber(tt.n); got != tt.want {
			t.Errorf("ClassifyNumber(%d) = %s, want %s", tt.n, got, tt.want)
		}
	}
}

func TestNewInvalidPattern(t *testing.T) {
	if _, err := New([]rules.SubjectPattern{{Subject: "x", Pattern: "["}}, nil); err == nil {
		t.Error("expected compile error")
	}
}

func TestNilClassifier(t *testing.T) {
	var c *Classifier
	if got := c.Classify("토양"); got != model.SubjectUnclassified {
		t.Errorf("nil Classify = %s", got)
	}
	if c.HasRanges() {
		t.Error("nil classifier reports ranges")
	}
}
