package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func TestSentenceChunkerCarriesOverlap(t *testing.T) {
	c, err := NewSentenceChunker(6, 2)
	require.NoError(t, err)

	chunks := c.Chunk("The quick brown fox. Jumps over the lazy dog. Repeat forever.")

	assert.Equal(t, []string{
		"The quick brown fox.",
		"brown fox. Jumps over the lazy dog.",
		"lazy dog. Repeat forever.",
	}, chunks)
}

func TestSentenceChunkerSingleFragment(t *testing.T) {
	c, err := NewSentenceChunker(50, 20)
	require.NoError(t, err)

	chunks := c.Chunk("One sentence. Another one! A question?")
	assert.Equal(t, []string{"One sentence. Another one! A question?"}, chunks)
}

func TestSentenceChunkerOversizedSentence(t *testing.T) {
	c, err := NewSentenceChunker(3, 1)
	require.NoError(t, err)

	chunks := c.Chunk("Short one. This sentence is far longer than the budget allows. End.")

	require.Len(t, chunks, 3)
	assert.Equal(t, "Short one.", chunks[0])
	assert.Equal(t, "one. This sentence is far longer than the budget allows.", chunks[1])
	assert.Equal(t, "allows. End.", chunks[2])
}

func TestSentenceChunkerEmptyText(t *testing.T) {
	c, err := NewSentenceChunker(50, 20)
	require.NoError(t, err)

	assert.Empty(t, c.Chunk(""))
	assert.Empty(t, c.Chunk("   \n  "))
}

func TestSentenceChunkerRejectsBadPolicy(t *testing.T) {
	_, err := NewSentenceChunker(0, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidChunking)
	_, err = NewSentenceChunker(5, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidChunking)
	_, err = NewSentenceChunker(5, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidChunking)
}

func TestSentenceChunkerZeroOverlap(t *testing.T) {
	c, err := NewSentenceChunker(4, 0)
	require.NoError(t, err)

	chunks := c.Chunk("A b c. D e f. G h.")
	assert.Equal(t, []string{"A b c.", "D e f.", "G h."}, chunks)
}

// Every fragment, once its carried prefix is removed, is a run of whole
// sentences, and the runs together reproduce the source words in order.
func TestSentenceChunkerKeepsSentencesWhole(t *testing.T) {
	text := "Alpha beta gamma. Delta epsilon! Zeta eta theta iota kappa lambda mu? " +
		"Nu xi. Omicron pi rho sigma. Tau upsilon phi chi psi omega. Done."
	sentences := SplitSentences(text)

	for maxWords := 1; maxWords <= 12; maxWords++ {
		for overlap := 0; overlap < maxWords; overlap++ {
			c, err := NewSentenceChunker(maxWords, overlap)
			require.NoError(t, err)

			chunks := c.Chunk(text)
			require.NotEmpty(t, chunks)

			next := 0
			var prev []string
			var rebuilt []string
			for i, chunk := range chunks {
				words := strings.Fields(chunk)
				if i > 0 {
					carried := overlap
					if carried > len(prev) {
						carried = len(prev)
					}
					assert.Equal(t, prev[len(prev)-carried:], words[:carried])
					words = words[carried:]
				}
				require.NotEmpty(t, words, "fragment %d adds no new sentence", i)

				body := strings.Join(words, " ")
				for body != "" {
					require.Less(t, next, len(sentences))
					sentence := strings.Join(strings.Fields(sentences[next]), " ")
					require.True(t, strings.HasPrefix(body, sentence),
						"max=%d overlap=%d fragment %q does not start with sentence %q", maxWords, overlap, body, sentence)
					body = strings.TrimPrefix(strings.TrimPrefix(body, sentence), " ")
					next++
				}

				rebuilt = append(rebuilt, words...)
				prev = strings.Fields(chunk)
			}
			assert.Equal(t, len(sentences), next)
			assert.Equal(t, strings.Fields(text), rebuilt)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("Pi is 3.14 roughly. Really?  Yes!\nOk")
	assert.Equal(t, []string{"Pi is 3.14 roughly.", "Really?", "Yes!", "Ok"}, got)
}
