package pdftext

import (
	"context"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
)

// Native extracts text with the pure-Go PDF reader. It handles digital
// PDFs; scanned images yield no text and encrypted files fail, which the
// chain treats as a signal to try the next provider.
type Native struct{}

// NewNative creates a Native extractor.
func NewNative() *Native {
	return &Native{}
}

// Extract reads every page's plain text. Pages that fail to decode are
// skipped rather than failing the document.
func (n *Native) Extract(ctx context.Context, pdfPath string) (out ExtractedText, err error) {
	out.Method = MethodNative

	// The reader panics on some malformed files; treat those as extraction
	// failures, not crashes.
	defer func() {
		if r := recover(); r != nil {
			out = ExtractedText{Method: MethodNative}
			err = eris.Errorf("pdftext: native reader panic on %s: %v", pdfPath, r)
		}
	}()

	f, reader, err := pdf.Open(pdfPath)
	if err != nil {
		return ExtractedText{Method: MethodNative}, eris.Wrapf(err, "pdftext: open %s", pdfPath)
	}
	defer f.Close()

	var builder strings.Builder
	total := reader.NumPage()
	for pageNum := 1; pageNum <= total; pageNum++ {
		if ctx.Err() != nil {
			return ExtractedText{Method: MethodNative}, eris.Wrap(ctx.Err(), "pdftext: extraction canceled")
		}
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		builder.WriteString(content)
		if pageNum < total {
			builder.WriteString("\n\n")
		}
	}

	out.Text = builder.String()
	out.Pages = total
	out.Success = usable(out.Text)
	return out, nil
}
