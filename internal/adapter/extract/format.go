package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"docrag/internal/domain"
)

// Format is the kind of source a document was uploaded as. Each format has
// exactly one extractor.
type Format int

const (
	FormatUnknown Format = iota
	FormatText
	FormatDOCX
	FormatPPTX
	FormatPDF
	FormatHTML
)

var formatNames = map[Format]string{
	FormatUnknown: "unknown",
	FormatText:    "text",
	FormatDOCX:    "docx",
	FormatPPTX:    "pptx",
	FormatPDF:     "pdf",
	FormatHTML:    "html",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

var formatsByExt = map[string]Format{
	"txt":  FormatText,
	"json": FormatText,
	"py":   FormatText,
	"md":   FormatText,
	"docx": FormatDOCX,
	"doc":  FormatDOCX,
	"pptx": FormatPPTX,
	"ppt":  FormatPPTX,
	"pdf":  FormatPDF,
	"html": FormatHTML,
	"htm":  FormatHTML,
}

// Ext returns the lowercased extension of name without the dot.
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// ParseFormat maps a file extension (with or without the dot) to a Format.
func ParseFormat(ext string) (Format, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return FormatUnknown, fmt.Errorf("%w: file has no extension", domain.ErrUnsupportedInput)
	}
	f, ok := formatsByExt[ext]
	if !ok {
		return FormatUnknown, fmt.Errorf("%w: unsupported file type: .%s", domain.ErrUnsupportedInput, ext)
	}
	return f, nil
}
