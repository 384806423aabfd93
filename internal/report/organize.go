package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/licitaflow/compliance-cli/internal/model"
	"github.com/licitaflow/compliance-cli/internal/security"
)

// Organize builds the submission folder under destDir: numbered category
// directories with the matched documents copied in, plus CHECKLIST.txt,
// RESUMO.txt, relatorio.json and LEIA-ME.txt. Expired documents and missing
// source files are skipped with a warning rather than failing the run.
// Returns the created directory.
func Organize(r *model.ComplianceReport, destDir string) (string, error) {
	outDir := filepath.Join(destDir, folderName(r.NoticeName, time.Now()))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "report: create output dir %s", outDir)
	}

	for _, cat := range model.AllCategories() {
		if err := os.MkdirAll(filepath.Join(outDir, cat.FolderName()), 0o755); err != nil {
			return "", eris.Wrapf(err, "report: create category dir %s", cat.FolderName())
		}
	}

	copied, skipped := 0, 0
	for _, m := range r.Matches {
		if m.Document == nil {
			continue
		}
		doc := m.Document

		if doc.Expired {
			zap.L().Warn("report: skipping expired document",
				zap.String("file", doc.FileName),
			)
			skipped++
			continue
		}

		dest := uniquePath(filepath.Join(outDir, doc.Category.FolderName()), security.SanitizeFilename(doc.FileName))
		if err := copyFile(doc.FilePath, dest); err != nil {
			zap.L().Warn("report: could not copy document, skipping",
				zap.String("file", doc.FileName),
				zap.Error(err),
			)
			skipped++
			continue
		}
		copied++
	}

	files := []struct {
		name    string
		content string
	}{
		{"CHECKLIST.txt", Checklist(r)},
		{"RESUMO.txt", Summary(r)},
		{"LEIA-ME.txt", readme(r)},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(outDir, f.name), []byte(f.content), 0o644); err != nil {
			return "", eris.Wrapf(err, "report: write %s", f.name)
		}
	}
	if err := WriteJSON(r, filepath.Join(outDir, "relatorio.json")); err != nil {
		return "", err
	}

	zap.L().Info("report: organized submission folder",
		zap.String("dir", outDir),
		zap.Int("copied", copied),
		zap.Int("skipped", skipped),
	)
	return outDir, nil
}

func folderName(noticeName string, now time.Time) string {
	ts := now.Format("20060102_150405")
	clean := sanitizeName(noticeName)
	if clean == "" {
		return "licitacao_" + ts
	}
	return fmt.Sprintf("licitacao_%s_%s", clean, ts)
}

// sanitizeName keeps letters, digits, underscores and hyphens; everything
// else (path separators included) becomes an underscore.
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// uniquePath appends a numeric suffix when name already exists in dir, so
// two documents with the same filename both survive the copy.
func uniquePath(dir, name string) string {
	dest := filepath.Join(dir, name)
	if _, err := os.Stat(dest); err != nil {
		return dest
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		dest = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Stat(dest); err != nil {
			return dest
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func readme(r *model.ComplianceReport) string {
	var b strings.Builder

	b.WriteString(sectionRule + "\n")
	b.WriteString("PASTA ORGANIZADA PARA LICITAÇÃO\n")
	b.WriteString(sectionRule + "\n\n")
	fmt.Fprintf(&b, "Gerada em: %s\n\n", r.GeneratedAt.Format("02/01/2006 às 15:04"))

	b.WriteString("ESTRUTURA DA PASTA:\n\n")
	b.WriteString("  01_Habilitacao_Juridica/    - Documentos de habilitação jurídica\n")
	b.WriteString("  02_Regularidade_Fiscal/     - Certidões e regularidades fiscais\n")
	b.WriteString("  03_Qualificacao_Tecnica/    - Atestados e qualificações técnicas\n")
	b.WriteString("  04_Qualificacao_Economica/  - Balanços e qualificações econômicas\n")
	b.WriteString("  05_Proposta_Comercial/      - Proposta comercial\n")
	b.WriteString("  06_Outros/                  - Outros documentos\n\n")

	b.WriteString("ARQUIVOS DE CONTROLE:\n\n")
	b.WriteString("  CHECKLIST.txt    - Lista completa de documentos exigidos\n")
	b.WriteString("  RESUMO.txt       - Resumo executivo da análise\n")
	b.WriteString("  relatorio.json   - Relatório técnico completo (JSON)\n")
	b.WriteString("  LEIA-ME.txt      - Este arquivo\n\n")

	b.WriteString("STATUS DA DOCUMENTAÇÃO:\n\n")
	b.WriteString(statsBlock(r) + "\n\n")

	b.WriteString("IMPORTANTE:\n\n")
	b.WriteString("1. Esta organização foi gerada automaticamente\n")
	b.WriteString("2. REVISE MANUALMENTE todos os documentos antes do envio\n")
	b.WriteString("3. Confira se os documentos correspondem às exigências do edital\n")
	b.WriteString("4. Verifique datas de validade e informações nos documentos\n")
	b.WriteString("5. A responsabilidade final pela conformidade é do usuário\n")

	return b.String()
}
