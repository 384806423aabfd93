// Package security gates document files before they reach extraction and
// scrubs sensitive data from anything we log. Company paperwork carries
// CPF/CNPJ numbers and the input directory is user-controlled, so every
// file goes through path, name, and content validation first.
package security

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

const (
	maxFilenameLength = 255
	// DefaultMaxFileSizeMB bounds a single input PDF.
	DefaultMaxFileSizeMB = 50
)

var pdfMagic = []byte("%PDF")

// Filename patterns rejected outright.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\.\./`),       // path traversal
	regexp.MustCompile(`\.\.\\`),      // path traversal, Windows form
	regexp.MustCompile(`^\.`),         // hidden files
	regexp.MustCompile(`[<>:"|?*]`),   // characters invalid on Windows shares
	regexp.MustCompile("[\x00-\x1f]"), // control characters
}

// Validator checks input files before the pipeline touches them. Paths must
// resolve inside one of the allowed base directories.
type Validator struct {
	baseDirs    []string
	maxFileSize int64
}

// NewValidator builds a validator rooted at the given directories. The
// system temp dir is always allowed so uploads written there pass.
// maxSizeMB <= 0 uses DefaultMaxFileSizeMB.
func NewValidator(maxSizeMB int, baseDirs ...string) *Validator {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxFileSizeMB
	}
	dirs := make([]string, 0, len(baseDirs)+1)
	for _, d := range baseDirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			continue
		}
		if real, err := filepath.EvalSymlinks(abs); err == nil {
			abs = real
		}
		dirs = append(dirs, abs)
	}
	if tmp, err := filepath.EvalSymlinks(os.TempDir()); err == nil {
		dirs = append(dirs, tmp)
	} else {
		dirs = append(dirs, os.TempDir())
	}
	return &Validator{
		baseDirs:    dirs,
		maxFileSize: int64(maxSizeMB) * 1024 * 1024,
	}
}

// ValidateFile runs the full gate: filename, path containment, then content.
func (v *Validator) ValidateFile(path string) error {
	if err := v.ValidateFilename(filepath.Base(path)); err != nil {
		return err
	}
	if err := v.ValidatePath(path); err != nil {
		return err
	}
	return v.ValidateContent(path)
}

// ValidateFilename rejects empty, oversized, non-PDF, or dangerous names.
func (v *Validator) ValidateFilename(name string) error {
	if name == "" {
		return eris.New("security: filename is empty")
	}
	if len(name) > maxFilenameLength {
		return eris.Errorf("security: filename too long (%d chars, max %d)", len(name), maxFilenameLength)
	}
	for _, re := range dangerousPatterns {
		if re.MatchString(name) {
			return eris.Errorf("security: filename contains dangerous pattern: %s", name)
		}
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return eris.Errorf("security: invalid file extension %q, only .pdf is accepted", filepath.Ext(name))
	}
	return nil
}

// ValidatePath resolves the path and requires it to live under one of the
// allowed base directories.
func (v *Validator) ValidatePath(path string) error {
	resolved, err := filepath.Abs(path)
	if err != nil {
		return eris.Wrap(err, "security: resolve path")
	}
	if real, err := filepath.EvalSymlinks(resolved); err == nil {
		resolved = real
	}
	for _, base := range v.baseDirs {
		if resolved == base || strings.HasPrefix(resolved, base+string(filepath.Separator)) {
			return nil
		}
	}
	return eris.Errorf("security: path escapes allowed directories: %s", path)
}

// ValidateContent checks size bounds and the PDF magic bytes.
func (v *Validator) ValidateContent(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return eris.Wrapf(err, "security: stat %s", filepath.Base(path))
	}
	if info.IsDir() {
		return eris.Errorf("security: not a file: %s", filepath.Base(path))
	}
	if info.Size() == 0 {
		return eris.Errorf("security: file is empty: %s", filepath.Base(path))
	}
	if info.Size() > v.maxFileSize {
		return eris.Errorf("security: file too large: %.2fMB (max %dMB)",
			float64(info.Size())/1024/1024, v.maxFileSize/1024/1024)
	}

	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "security: open %s", filepath.Base(path))
	}
	defer f.Close()

	header := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, header); err != nil {
		return eris.Wrapf(err, "security: read header of %s", filepath.Base(path))
	}
	if !bytes.Equal(header, pdfMagic) {
		return eris.Errorf("security: not a valid PDF: %s", filepath.Base(path))
	}
	return nil
}

// FileSHA256 hashes file content for the extraction cache key.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "security: open %s", filepath.Base(path))
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", eris.Wrapf(err, "security: hash %s", filepath.Base(path))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^\w\s\-.]`)
var filenameSeparators = regexp.MustCompile(`[\s_]+`)

// SanitizeFilename reduces a name to safe characters for writing into the
// organized output folder. Returns "unnamed" rather than an empty string.
func SanitizeFilename(name string) string {
	if name == "" {
		return "unnamed"
	}
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = filenameSeparators.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "unnamed"
	}
	if len(name) > 200 {
		ext := filepath.Ext(name)
		name = name[:200-len(ext)] + ext
	}
	return name
}
