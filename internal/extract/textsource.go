package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/dslipak/pdf"
)

// TextSource yields the plain text of one document.
type TextSource interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// PDFTextSource extracts text with github.com/dslipak/pdf.
type PDFTextSource struct{}

// NewPDFTextSource creates a new PDFTextSource.
func NewPDFTextSource() *PDFTextSource {
	return &PDFTextSource{}
}

// ExtractText implements TextSource. The library panics on some damaged
// files; those panics come back as errors.
func (s *PDFTextSource) ExtractText(ctx context.Context, path string) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("ExtractText: open %q: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("ExtractText: stat %q: %w", path, err)
	}

	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("ExtractText: reading %q: %v", path, r)
		}
	}()

	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return "", fmt.Errorf("ExtractText: parsing %q: %w", path, err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("ExtractText: extracting text from %q: %w", path, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("ExtractText: reading text from %q: %w", path, err)
	}

	return buf.String(), nil
}

var _ TextSource = (*PDFTextSource)(nil)
