package extract_test

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"telesumm/internal/extract"
)

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err = w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	if err = zw.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}

	return buf.Bytes()
}

func TestFromFilePlainText(t *testing.T) {
	text, err := extract.FromFile("notes.TXT", strings.NewReader("  first   line \n\n second line\n"), 1024)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if text != "first line\nsecond line" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestFromFileHTML(t *testing.T) {
	html := `<html><head><title>t</title><style>p{}</style></head>
<body><nav>menu</nav><article><h1>Title</h1><p>Body <b>text</b>.</p>
<script>alert(1)</script></article><footer>footer</footer></body></html>`

	text, err := extract.FromFile("page.html", strings.NewReader(html), 4096)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if text != "Title\nBody text." {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestFromFileDocx(t *testing.T) {
	documentXML := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve"> world</w:t></w:r></w:p>
<w:p><w:r><w:t>Second</w:t><w:tab/><w:t>paragraph</w:t></w:r></w:p>
</w:body>
</w:document>`

	data := buildDocx(t, documentXML)

	text, err := extract.FromFile("report.docx", bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if text != "Hello world\nSecond paragraph" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestFromFileDocxWithoutBody(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if _, err := zw.Create("other.xml"); err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}

	_, err := extract.FromFile("broken.docx", &buf, 1<<20)
	if !errors.Is(err, extract.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

// buildPDF lays out a single-page PDF with one text object per line and a
// cross-reference table pointing at the real object offsets.
func buildPDF(lines ...string) []byte {
	var content strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&content, "BT /F1 12 Tf 72 %d Td (%s) Tj ET\n", 720-20*i, line)
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] " +
			"/Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return buf.Bytes()
}

func TestFromFilePDF(t *testing.T) {
	data := buildPDF("Quarterly   report", "Revenue grew in every region.")

	text, err := extract.FromFile("report.pdf", bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if text != "Quarterly report\nRevenue grew in every region." {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestFromFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		limit   int64
		want    error
	}{
		{name: "malformed pdf", file: "paper.pdf", content: "%PDF-1.7", limit: 1024, want: extract.ErrUnsupportedFormat},
		{name: "legacy word", file: "paper.doc", content: "text", limit: 1024, want: extract.ErrUnsupportedFormat},
		{name: "no extension", file: "README", content: "text", limit: 1024, want: extract.ErrUnsupportedFormat},
		{name: "too large", file: "big.txt", content: strings.Repeat("a", 11), limit: 10, want: extract.ErrTooLarge},
		{name: "blank", file: "blank.md", content: " \n\t\n", limit: 1024, want: extract.ErrNoText},
		{name: "binary", file: "bin.txt", content: "\xff\xfe", limit: 1024, want: extract.ErrNoText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extract.FromFile(tt.file, strings.NewReader(tt.content), tt.limit)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestFromFileDropsInvalidUTF8(t *testing.T) {
	text, err := extract.FromFile("mixed.txt", strings.NewReader("caf\xffe ok"), 1024)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if text != "cafe ok" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestSupported(t *testing.T) {
	for _, name := range []string{"a.txt", "b.MD", " c.html ", "d.htm", "e.docx", "f.PDF"} {
		if !extract.Supported(name) {
			t.Fatalf("expected %q to be supported", name)
		}
	}

	for _, name := range []string{"a.odt", "b.doc", "README", ""} {
		if extract.Supported(name) {
			t.Fatalf("expected %q to be unsupported", name)
		}
	}
}

func TestFindURL(t *testing.T) {
	if got := extract.FindURL("please read https://example.com/post?id=1 today"); got != "https://example.com/post?id=1" {
		t.Fatalf("unexpected URL: %q", got)
	}

	if got := extract.FindURL("plain http://example.com is ignored"); got != "" {
		t.Fatalf("expected no URL, got %q", got)
	}
}
