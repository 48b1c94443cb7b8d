package retriever

import (
	"testing"

	"docrag/internal/domain"
)

func fragments(texts ...string) []domain.Fragment {
	out := make([]domain.Fragment, len(texts))
	for i, t := range texts {
		out[i] = domain.Fragment{Chunk: t, Score: float64(len(texts) - i)}
	}
	return out
}

func TestPrecisionAtK(t *testing.T) {
	relevant := ContainsPhrase("fox")
	cases := []struct {
		name      string
		retrieved []domain.Fragment
		wantP     float64
	}{
		{"perfect", fragments("a fox", "the Fox", "FOX"), 1.0},
		{"partial", fragments("a fox", "the fox", "a dog"), 0.666},
		{"none", fragments("x", "y", "z"), 0.0},
		{"empty_retrieved", nil, 0.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := PrecisionAtK(tc.retrieved, relevant)
			if diff := p - tc.wantP; diff > 0.01 || diff < -0.01 {
				t.Errorf("precision = %.3f, want %.3f", p, tc.wantP)
			}
		})
	}
}

func TestRecallAtK(t *testing.T) {
	relevant := ContainsPhrase("fox")
	cases := []struct {
		name      string
		retrieved []domain.Fragment
		total     int
		wantR     float64
	}{
		{"perfect", fragments("fox 1", "fox 2"), 2, 1.0},
		{"partial", fragments("fox 1", "dog"), 3, 0.333},
		{"none", fragments("dog"), 2, 0.0},
		{"empty_relevant", fragments("fox"), 0, 0.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := RecallAtK(tc.retrieved, relevant, tc.total)
			if diff := r - tc.wantR; diff > 0.01 || diff < -0.01 {
				t.Errorf("recall = %.3f, want %.3f", r, tc.wantR)
			}
		})
	}
}

func TestReciprocalRank(t *testing.T) {
	relevant := ContainsPhrase("lazy dog")
	cases := []struct {
		name      string
		retrieved []domain.Fragment
		wantRR    float64
	}{
		{"first", fragments("the lazy dog", "b", "c"), 1.0},
		{"second", fragments("x", "a Lazy Dog", "c"), 0.5},
		{"third", fragments("x", "y", "lazy dog."), 0.333},
		{"missing", fragments("x", "lazy", "dog"), 0.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := ReciprocalRank(tc.retrieved, relevant)
			if diff := rr - tc.wantRR; diff > 0.01 || diff < -0.01 {
				t.Errorf("RR = %.3f, want %.3f", rr, tc.wantRR)
			}
		})
	}
}

func TestCountRelevant(t *testing.T) {
	n := CountRelevant([]string{"The quick brown fox.", "brown fox. Jumps", "lazy dog."}, ContainsPhrase("brown fox"))
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}
