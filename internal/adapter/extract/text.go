package extract

import (
	"bytes"
	"errors"
	"unicode/utf8"
)

// TextExtractor passes UTF-8 text through, minus a leading byte order mark.
type TextExtractor struct{}

func (TextExtractor) Extract(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", errors.New("not valid UTF-8 text")
	}
	return string(data), nil
}
