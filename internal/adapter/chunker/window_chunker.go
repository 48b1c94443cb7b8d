package chunker

import (
	"fmt"
	"strings"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// WindowChunker cuts text into fixed-size sliding windows of units. Units are
// whitespace-separated words, or surface tokens when a tokenizer is supplied.
type WindowChunker struct {
	size      int
	overlap   int
	tokenizer port.Tokenizer
}

// NewWindowChunker validates the window policy. The step size-overlap must be
// at least one unit or the window never advances.
func NewWindowChunker(size, overlap int, tokenizer port.Tokenizer) (*WindowChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", domain.ErrInvalidChunking, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", domain.ErrInvalidChunking, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than size %d", domain.ErrInvalidChunking, overlap, size)
	}
	return &WindowChunker{
		size:      size,
		overlap:   overlap,
		tokenizer: tokenizer,
	}, nil
}

func (c *WindowChunker) Chunk(text string) []string {
	units := c.units(text)
	if len(units) == 0 {
		return nil
	}

	step := c.size - c.overlap
	chunks := make([]string, 0, len(units)/step+1)

	for start := 0; start < len(units); start += step {
		end := start + c.size
		if end > len(units) {
			end = len(units)
		}
		chunks = append(chunks, strings.Join(units[start:end], " "))
		if end == len(units) {
			break
		}
	}

	return chunks
}

func (c *WindowChunker) units(text string) []string {
	if c.tokenizer != nil {
		return c.tokenizer.Segment(text)
	}
	return strings.Fields(text)
}
