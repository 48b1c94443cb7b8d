package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"docrag/internal/domain"
)

var sentenceBoundary = regexp.MustCompile(`[.?!]\s+`)

// SentenceChunker accumulates whole sentences up to a word budget and seeds
// each new fragment with the tail of the previous one.
type SentenceChunker struct {
	maxWords     int
	overlapWords int
}

func NewSentenceChunker(maxWords, overlapWords int) (*SentenceChunker, error) {
	if maxWords <= 0 {
		return nil, fmt.Errorf("%w: max_words must be positive, got %d", domain.ErrInvalidChunking, maxWords)
	}
	if overlapWords < 0 {
		return nil, fmt.Errorf("%w: overlap_words must not be negative, got %d", domain.ErrInvalidChunking, overlapWords)
	}
	if overlapWords >= maxWords {
		return nil, fmt.Errorf("%w: overlap_words %d must be smaller than max_words %d", domain.ErrInvalidChunking, overlapWords, maxWords)
	}
	return &SentenceChunker{
		maxWords:     maxWords,
		overlapWords: overlapWords,
	}, nil
}

// Chunk never splits a sentence. A sentence longer than the budget still
// lands in a fragment, so the budget is a soft cap.
func (c *SentenceChunker) Chunk(text string) []string {
	var chunks []string
	var current []string

	for _, sentence := range SplitSentences(text) {
		words := strings.Fields(sentence)
		if len(words) == 0 {
			continue
		}

		if len(current) > 0 && len(current)+len(words) > c.maxWords {
			chunks = append(chunks, strings.Join(current, " "))
			current = c.carry(current)
		}
		current = append(current, words...)
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	return chunks
}

// carry returns a fresh slice holding the last overlapWords words of a
// closed fragment.
func (c *SentenceChunker) carry(closed []string) []string {
	n := c.overlapWords
	if n > len(closed) {
		n = len(closed)
	}
	tail := make([]string, n, n+c.maxWords)
	copy(tail, closed[len(closed)-n:])
	return tail
}

// SplitSentences cuts text after '.', '?' or '!' when followed by whitespace.
// Returned sentences are trimmed and non-empty.
func SplitSentences(text string) []string {
	var sentences []string
	start := 0

	for _, loc := range sentenceBoundary.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start : loc[0]+1]); s != "" {
			sentences = append(sentences, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}
