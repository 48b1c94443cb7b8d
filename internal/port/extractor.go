package port

// Extractor turns the raw bytes of one document format into plain text.
type Extractor interface {
	Extract(data []byte) (string, error)
}
