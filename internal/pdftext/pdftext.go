// Package pdftext extracts text from PDF documents. Procurement paperwork
// is a mix of digital PDFs and flat scans, so extraction is layered: the
// native reader first, then the pdftotext tool for files it cannot read.
// Scanned-image PDFs come back empty; callers degrade to filename-based
// classification rather than failing.
package pdftext

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/licitaflow/compliance-cli/internal/config"
)

// Extraction methods reported in ExtractedText.Method.
const (
	MethodNative    = "native"
	MethodPdfToText = "pdftotext"
	MethodNone      = "none"
)

// minTextLength is the smallest trimmed extraction considered usable;
// below it the next provider in the chain is tried.
const minTextLength = 50

// ExtractedText is the outcome of one extraction attempt.
type ExtractedText struct {
	Text    string `json:"text"`
	Method  string `json:"method"`
	Pages   int    `json:"pages"`
	Success bool   `json:"success"`
}

// Extractor extracts text content from PDF files.
type Extractor interface {
	Extract(ctx context.Context, pdfPath string) (ExtractedText, error)
}

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg config.PDFTextConfig) (Extractor, error) {
	switch cfg.Provider {
	case "auto", "":
		return &chain{extractors: []Extractor{NewNative(), NewPdfToText(cfg.PdfToTextPath)}}, nil
	case "native":
		return NewNative(), nil
	case "pdftotext":
		return NewPdfToText(cfg.PdfToTextPath), nil
	default:
		return nil, eris.Errorf("pdftext: unknown provider %q", cfg.Provider)
	}
}

// chain tries each extractor in order and returns the first usable result.
type chain struct {
	extractors []Extractor
}

func (c *chain) Extract(ctx context.Context, pdfPath string) (ExtractedText, error) {
	var lastErr error
	for _, e := range c.extractors {
		out, err := e.Extract(ctx, pdfPath)
		if err != nil {
			lastErr = err
			continue
		}
		if out.Success {
			return out, nil
		}
	}
	if lastErr != nil {
		return ExtractedText{Method: MethodNone}, lastErr
	}
	return ExtractedText{Method: MethodNone}, nil
}

// usable reports whether extracted text is substantial enough to classify
// by content.
func usable(text string) bool {
	return len(strings.TrimSpace(text)) > minTextLength
}
