package port

// Chunker partitions text into an ordered sequence of non-empty fragments.
// Implementations are deterministic: identical input yields identical output.
type Chunker interface {
	Chunk(text string) []string
}
