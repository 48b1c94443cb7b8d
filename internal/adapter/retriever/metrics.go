package retriever

import (
	"strings"

	"docrag/internal/domain"
)

// Relevance judges whether a retrieved fragment answers the question.
type Relevance func(fragment string) bool

// ContainsPhrase marks fragments containing phrase, ignoring case, as relevant.
func ContainsPhrase(phrase string) Relevance {
	phrase = strings.ToLower(phrase)
	return func(fragment string) bool {
		return strings.Contains(strings.ToLower(fragment), phrase)
	}
}

// PrecisionAtK is the share of retrieved fragments that are relevant.
func PrecisionAtK(retrieved []domain.Fragment, relevant Relevance) float64 {
	if len(retrieved) == 0 {
		return 0
	}
	hits := 0
	for _, f := range retrieved {
		if relevant(f.Chunk) {
			hits++
		}
	}
	return float64(hits) / float64(len(retrieved))
}

// RecallAtK is the share of the document's relevant chunks that were
// retrieved. total is the number of relevant chunks in the document.
func RecallAtK(retrieved []domain.Fragment, relevant Relevance, total int) float64 {
	if total == 0 {
		return 0
	}
	hits := 0
	for _, f := range retrieved {
		if relevant(f.Chunk) {
			hits++
		}
	}
	return float64(hits) / float64(total)
}

// ReciprocalRank is 1/rank of the first relevant fragment, or 0.
func ReciprocalRank(retrieved []domain.Fragment, relevant Relevance) float64 {
	for i, f := range retrieved {
		if relevant(f.Chunk) {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// CountRelevant counts relevant chunks, typically over every chunk a
// document produced.
func CountRelevant(chunks []string, relevant Relevance) int {
	n := 0
	for _, c := range chunks {
		if relevant(c) {
			n++
		}
	}
	return n
}
