package port

type Tokenizer interface {
	// Tokenize returns normalized index terms.
	Tokenize(text string) []string

	// Segment returns surface-form units in source order.
	Segment(text string) []string
}
