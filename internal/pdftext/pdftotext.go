package pdftext

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// PdfToText extracts text from PDFs using the pdftotext CLI tool, which
// copes with files the native reader cannot parse.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty,
// "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// Extract runs pdftotext -layout on the given PDF and reads stdout. Page
// count comes from the form feeds pdftotext emits between pages.
func (p *PdfToText) Extract(ctx context.Context, pdfPath string) (ExtractedText, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", pdfPath, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return ExtractedText{Method: MethodPdfToText},
			eris.Wrapf(err, "pdftext: pdftotext failed for %s: %s", pdfPath, stderr.String())
	}

	text := stdout.String()
	pages := strings.Count(text, "\f")
	if pages == 0 && strings.TrimSpace(text) != "" {
		pages = 1
	}
	return ExtractedText{
		Text:    text,
		Method:  MethodPdfToText,
		Pages:   pages,
		Success: usable(text),
	}, nil
}
