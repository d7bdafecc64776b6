// Package ocr reads the text layer of PDF sales reports.
package ocr

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sells-group/pipeline-import/internal/config"
)

// ErrNoTextLayer is returned when a PDF yields no text, typically a scan.
var ErrNoTextLayer = errors.New("ocr: pdf has no text layer")

// Extractor extracts text content from PDF files.
type Extractor interface {
	ExtractText(ctx context.Context, pdfPath string) (string, error)
}

// New creates the pdftotext extractor described by cfg.
func New(cfg config.OCRConfig) *PdfToText {
	p := NewPdfToText(cfg.PdfToTextPath)
	if cfg.TimeoutSecs > 0 {
		p.timeout = time.Duration(cfg.TimeoutSecs) * time.Second
	}
	return p
}

// ReadReport returns the text of the PDF at path. A PDF whose text is only
// whitespace returns ErrNoTextLayer.
func ReadReport(ctx context.Context, ext Extractor, path string) (string, error) {
	text, err := ext.ExtractText(ctx, path)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(strings.ReplaceAll(text, "\f", "")) == "" {
		return "", ErrNoTextLayer
	}
	return text, nil
}
