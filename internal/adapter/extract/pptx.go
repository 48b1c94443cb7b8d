package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const drawingMLNS = "http://schemas.openxmlformats.org/drawingml/2006/main"

var slideName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// PPTXExtractor collects the text of every shape on every slide, in slide
// order. Each non-empty shape becomes one line.
type PPTXExtractor struct{}

func (PPTXExtractor) Extract(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("not a presentation: %w", err)
	}

	type slide struct {
		n    int
		file *zip.File
	}
	var slides []slide
	for _, f := range reader.File {
		if m := slideName.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slides = append(slides, slide{n, f})
		}
	}
	if len(slides) == 0 {
		return "", errors.New("presentation has no slides")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var texts []string
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return "", err
		}
		shapes, err := shapeTexts(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("slide %d: %w", s.n, err)
		}
		texts = append(texts, shapes...)
	}
	return strings.Join(texts, "\n"), nil
}

// shapeTexts walks one slide's XML. Paragraphs (a:p) inside a shape (p:sp)
// are joined with newlines; shapes that trim to nothing are skipped.
func shapeTexts(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var out []string
	var paras []string
	var para strings.Builder
	depth, inText := 0, false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "sp":
				if depth == 0 {
					paras = paras[:0]
				}
				depth++
			case depth > 0 && t.Name.Space == drawingMLNS && t.Name.Local == "p":
				para.Reset()
			case depth > 0 && t.Name.Space == drawingMLNS && t.Name.Local == "t":
				inText = true
			case depth > 0 && t.Name.Space == drawingMLNS && t.Name.Local == "br":
				para.WriteString("\v")
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		case xml.EndElement:
			switch {
			case t.Name.Local == "sp" && depth > 0:
				depth--
				if depth == 0 {
					if text := strings.TrimSpace(strings.Join(paras, "\n")); text != "" {
						out = append(out, text)
					}
				}
			case depth > 0 && t.Name.Space == drawingMLNS && t.Name.Local == "p":
				paras = append(paras, para.String())
			case t.Name.Local == "t":
				inText = false
			}
		}
	}
}
