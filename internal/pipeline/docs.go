package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ListPDFs returns the PDF files directly under dir, in name order. Hidden
// files and subdirectories are skipped; extension matching ignores case since
// scanners emit both .pdf and .PDF.
func ListPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read documents dir %s", dir)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), ".pdf") {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	return paths, nil
}

// NoticeName derives a display name from the notice filename: extension
// stripped, separators collapsed to single spaces.
func NoticeName(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}
