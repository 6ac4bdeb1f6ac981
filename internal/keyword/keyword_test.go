package keyword

import (
	"reflect"
	"testing"
)

func TestExtract(t *testing.T) {
	e := New([]string{"다음", "중", "것은"}, 0)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			"particles trimmed and stopwords removed",
			"다음 중 소나무재선충병의 매개충은?",
			[]string{"소나무재선충병", "매개충"},
		},
		{
			"duplicates removed in order",
			"토양 pH와 토양 pH",
			[]string{"토양", "ph"},
		},
		{
			"short and numeric tokens skipped",
			"C4 식물 1 2 300 가",
			[]string{"c4", "식물"},
		},
		{
			"short stem keeps particle",
			"나무의 잎이",
			[]string{"나무", "잎이"},
		},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Extract(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Extract(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtractCap(t *testing.T) {
	e := New(nil, 3)
	got := e.Extract("가나 다라 마바 사아 자차")
	if len(got) != 3 {
		t.Errorf("got %d keywords, want 3", len(got))
	}
}
