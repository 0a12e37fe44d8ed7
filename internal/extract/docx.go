package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	docxBodyPath     = "word/document.xml"
	wordMLNamespace  = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	maxDocxBodyBytes = 64 << 20
)

// DocxText returns the paragraph text of an Office Open XML document.
func DocxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != docxBodyPath {
			continue
		}

		rc, openErr := f.Open()
		if openErr != nil {
			return "", fmt.Errorf("open %s: %w", docxBodyPath, openErr)
		}

		text, parseErr := parseWordML(io.LimitReader(rc, maxDocxBodyBytes))

		return text, errors.Join(parseErr, rc.Close())
	}

	return "", fmt.Errorf("%w: %s is missing", ErrUnsupportedFormat, docxBodyPath)
}

func parseWordML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		sb     strings.Builder
		inText bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode XML: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Space != wordMLNamespace {
				continue
			}
			switch el.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			if el.Name.Space != wordMLNamespace {
				continue
			}
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(el)
			}
		}
	}

	return sb.String(), nil
}
