package extract

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// PDFText returns the text of every page of a PDF document, in page order.
// Files the reader cannot open fail with ErrUnsupportedFormat; scanned pages
// without a text layer yield no text.
func PDFText(data []byte) (text string, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: parse PDF: %v", ErrUnsupportedFormat, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open PDF: %v", ErrUnsupportedFormat, err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read PDF text: %w", err)
	}

	out, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read PDF text: %w", err)
	}

	return string(bytes.ToValidUTF8(out, nil)), nil
}
