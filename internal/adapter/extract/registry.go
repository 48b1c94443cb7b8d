package extract

import (
	"fmt"
	"strings"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// Registry picks an extractor by file extension, restricted to a whitelist.
type Registry struct {
	extractors map[Format]port.Extractor
	allowed    map[string]struct{}
}

// NewRegistry wires the built-in extractors. An empty allowed list accepts
// every extension with a known format.
func NewRegistry(allowed []string) *Registry {
	r := &Registry{
		extractors: map[Format]port.Extractor{
			FormatText: TextExtractor{},
			FormatDOCX: DOCXExtractor{},
			FormatPPTX: PPTXExtractor{},
			FormatPDF:  PDFExtractor{},
			FormatHTML: HTMLExtractor{},
		},
	}
	if len(allowed) > 0 {
		r.allowed = make(map[string]struct{}, len(allowed))
		for _, ext := range allowed {
			r.allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
		}
	}
	return r
}

// Resolve returns the format for a file name, enforcing the whitelist.
func (r *Registry) Resolve(name string) (Format, error) {
	ext := Ext(name)
	if r.allowed != nil && ext != "" {
		if _, ok := r.allowed[ext]; !ok {
			return FormatUnknown, fmt.Errorf("%w: unsupported file type: .%s", domain.ErrUnsupportedInput, ext)
		}
	}
	return ParseFormat(ext)
}

// Extract turns raw file bytes into plain text. Empty files and files with
// no extractable text are rejected.
func (r *Registry) Extract(name string, data []byte) (string, Format, error) {
	format, err := r.Resolve(name)
	if err != nil {
		return "", format, err
	}
	if len(data) == 0 {
		return "", format, fmt.Errorf("%w: %s is empty", domain.ErrUnsupportedInput, name)
	}

	text, err := r.extractors[format].Extract(data)
	if err != nil {
		return "", format, fmt.Errorf("%w: %s: %v", domain.ErrUnsupportedInput, name, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", format, fmt.Errorf("%w: no text found in %s", domain.ErrUnsupportedInput, name)
	}
	return text, format, nil
}
