package pdftext

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licitaflow/compliance-cli/internal/config"
)

func TestNewExtractor_Auto(t *testing.T) {
	ext, err := NewExtractor(config.PDFTextConfig{Provider: "auto"})
	require.NoError(t, err)
	assert.IsType(t, &chain{}, ext)

	ext, err = NewExtractor(config.PDFTextConfig{})
	require.NoError(t, err)
	assert.IsType(t, &chain{}, ext)
}

func TestNewExtractor_Native(t *testing.T) {
	ext, err := NewExtractor(config.PDFTextConfig{Provider: "native"})
	require.NoError(t, err)
	assert.IsType(t, &Native{}, ext)
}

func TestNewExtractor_PdfToText(t *testing.T) {
	ext, err := NewExtractor(config.PDFTextConfig{Provider: "pdftotext", PdfToTextPath: "/usr/bin/pdftotext"})
	require.NoError(t, err)
	assert.IsType(t, &PdfToText{}, ext)
}

func TestNewExtractor_UnknownProvider(t *testing.T) {
	_, err := NewExtractor(config.PDFTextConfig{Provider: "tesseract"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "tesseract"`)
}

func TestPdfToText_BinPath(t *testing.T) {
	p := NewPdfToText("")
	assert.Equal(t, "pdftotext", p.binPath)

	p = NewPdfToText("/custom/pdftotext")
	assert.Equal(t, "/custom/pdftotext", p.binPath)
}

func TestPdfToText_Extract_Success(t *testing.T) {
	// Fake pdftotext that emits more than the usable-text threshold.
	tmpDir := t.TempDir()
	fakeBin := filepath.Join(tmpDir, "pdftotext")
	script := "#!/bin/sh\necho 'CERTIDAO NEGATIVA DE DEBITOS RELATIVOS AOS TRIBUTOS FEDERAIS E A DIVIDA ATIVA'\n"
	require.NoError(t, os.WriteFile(fakeBin, []byte(script), 0o755))

	p := NewPdfToText(fakeBin)
	out, err := p.Extract(context.Background(), "/tmp/dummy.pdf")
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, MethodPdfToText, out.Method)
	assert.Equal(t, 1, out.Pages)
	assert.Contains(t, out.Text, "CERTIDAO NEGATIVA")
}

func TestPdfToText_Extract_BinaryNotFound(t *testing.T) {
	p := NewPdfToText("/nonexistent/pdftotext")
	_, err := p.Extract(context.Background(), "/tmp/test.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext failed")
}

func TestNative_Extract_MissingFile(t *testing.T) {
	n := NewNative()
	_, err := n.Extract(context.Background(), "/nonexistent/file.pdf")
	require.Error(t, err)
}

func TestNative_Extract_NotAPDF(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("plain text, not a pdf"), 0o644))

	n := NewNative()
	out, err := n.Extract(context.Background(), path)
	require.Error(t, err)
	assert.False(t, out.Success)
}

func TestChain_FallsThroughToSecondProvider(t *testing.T) {
	tmpDir := t.TempDir()
	fakeBin := filepath.Join(tmpDir, "pdftotext")
	script := "#!/bin/sh\necho 'ATESTADO DE CAPACIDADE TECNICA EMITIDO PELA PREFEITURA MUNICIPAL PARA FINS DE LICITACAO'\n"
	require.NoError(t, os.WriteFile(fakeBin, []byte(script), 0o755))

	// Not a real PDF, so the native provider fails and the chain falls
	// through to the fake pdftotext.
	path := filepath.Join(tmpDir, "scan.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not pdf bytes"), 0o644))

	ext, err := NewExtractor(config.PDFTextConfig{Provider: "auto", PdfToTextPath: fakeBin})
	require.NoError(t, err)

	out, err := ext.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, MethodPdfToText, out.Method)
}

func TestUsable(t *testing.T) {
	assert.False(t, usable(""))
	assert.False(t, usable("   \n  "))
	assert.False(t, usable("too short"))
	assert.True(t, usable(strings.Repeat("certidao negativa ", 5)))
}
