package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePDF(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestValidateFilename(t *testing.T) {
	t.Parallel()

	v := NewValidator(50)

	t.Run("accepts normal pdf name", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, v.ValidateFilename("cnd_federal.pdf"))
	})

	t.Run("accepts uppercase extension", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, v.ValidateFilename("CONTRATO.PDF"))
	})

	t.Run("rejects empty", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, v.ValidateFilename(""))
	})

	t.Run("rejects traversal", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, v.ValidateFilename("../etc/passwd.pdf"))
	})

	t.Run("rejects hidden files", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, v.ValidateFilename(".sneaky.pdf"))
	})

	t.Run("rejects non-pdf extension", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, v.ValidateFilename("planilha.xlsx"))
	})

	t.Run("rejects overlong names", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, v.ValidateFilename(strings.Repeat("a", 300)+".pdf"))
	})
}

func TestValidatePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	v := NewValidator(50, dir)

	t.Run("accepts file inside base dir", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, v.ValidatePath(filepath.Join(dir, "doc.pdf")))
	})

	t.Run("temp dir is always allowed", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, v.ValidatePath(filepath.Join(os.TempDir(), "upload.pdf")))
	})

	t.Run("rejects escape from base dirs", func(t *testing.T) {
		t.Parallel()
		restricted := NewValidator(50, filepath.Join(dir, "inbox"))
		err := restricted.ValidatePath("/etc/passwd")
		assert.Error(t, err)
	})
}

func TestValidateContent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	v := NewValidator(50, dir)

	t.Run("accepts pdf magic bytes", func(t *testing.T) {
		t.Parallel()
		path := writePDF(t, dir, "ok.pdf", []byte("%PDF-1.7 fake body"))
		assert.NoError(t, v.ValidateContent(path))
	})

	t.Run("rejects wrong magic bytes", func(t *testing.T) {
		t.Parallel()
		path := writePDF(t, dir, "fake.pdf", []byte("PK\x03\x04 zip pretending"))
		assert.Error(t, v.ValidateContent(path))
	})

	t.Run("rejects empty file", func(t *testing.T) {
		t.Parallel()
		path := writePDF(t, dir, "empty.pdf", nil)
		assert.Error(t, v.ValidateContent(path))
	})

	t.Run("rejects missing file", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, v.ValidateContent(filepath.Join(dir, "nope.pdf")))
	})
}

func TestValidateFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	v := NewValidator(50, dir)

	path := writePDF(t, dir, "certidao.pdf", []byte("%PDF-1.4 content"))
	assert.NoError(t, v.ValidateFile(path))

	bad := writePDF(t, dir, "nota.txt", []byte("%PDF-1.4"))
	assert.Error(t, v.ValidateFile(bad))
}

func TestFileSHA256(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writePDF(t, dir, "h.pdf", []byte("%PDF-1.4 stable content"))

	h1, err := FileSHA256(path)
	require.NoError(t, err)
	h2, err := FileSHA256(path)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "cnd_federal.pdf", SanitizeFilename("cnd federal.pdf"))
	assert.Equal(t, "a_b.pdf", SanitizeFilename("a/b.pdf"))
	assert.Equal(t, "unnamed", SanitizeFilename("###"))
	assert.Equal(t, "unnamed", SanitizeFilename(""))
}
