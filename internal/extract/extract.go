// Package extract turns uploaded files and shared links into plain text
// ready for summarization.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrTooLarge          = errors.New("document is too large")
	ErrNoText            = errors.New("no text found")
)

// Extensions lists the file extensions FromFile understands.
func Extensions() []string {
	return []string{".txt", ".md", ".html", ".htm", ".docx", ".pdf"}
}

// Supported reports whether FromFile understands the extension of name.
func Supported(name string) bool {
	return slices.Contains(Extensions(), strings.ToLower(filepath.Ext(strings.TrimSpace(name))))
}

// FromFile reads at most limit bytes from r and returns the text of the
// document named name. The format is chosen by extension.
func FromFile(name string, r io.Reader, limit int64) (string, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(name)))

	if !Supported(name) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	data, err := readLimited(r, limit)
	if err != nil {
		return "", err
	}

	var text string

	switch ext {
	case ".txt", ".md":
		text = strings.ToValidUTF8(string(data), "")
	case ".html", ".htm":
		text, err = HTMLText(bytes.NewReader(data))
	case ".docx":
		text, err = DocxText(data)
	case ".pdf":
		text, err = PDFText(data)
	}
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", ext, err)
	}

	text = normalizeText(text)
	if text == "" {
		return "", ErrNoText
	}

	return text, nil
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("read document: invalid limit %d", limit)
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}

	return data, nil
}

// normalizeText collapses runs of blanks inside lines and drops empty lines.
func normalizeText(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]

	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		kept = append(kept, line)
	}

	return strings.Join(kept, "\n")
}
