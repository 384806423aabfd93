// Package report renders a compliance report as operator-facing artifacts:
// a pt-BR checklist, an executive summary, JSON and XLSX exports, and an
// organized submission folder with the matched documents copied into
// numbered category directories.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/licitaflow/compliance-cli/internal/model"
)

var (
	sectionRule = strings.Repeat("=", 70)
	itemRule    = strings.Repeat("-", 70)
)

// Checklist renders the full document checklist: counts, one section per
// category with a status icon per requirement, unmatched documents, and the
// mandatory manual-review disclaimers.
func Checklist(r *model.ComplianceReport) string {
	var b strings.Builder

	b.WriteString(sectionRule + "\n")
	b.WriteString("CHECKLIST DE DOCUMENTOS PARA LICITAÇÃO\n")
	b.WriteString(sectionRule + "\n\n")
	if r.NoticeName != "" {
		fmt.Fprintf(&b, "Edital: %s\n", r.NoticeName)
	}
	fmt.Fprintf(&b, "Data de verificação: %s\n\n", r.GeneratedAt.Format("2006-01-02"))
	b.WriteString(statsBlock(r) + "\n\n")

	b.WriteString(sectionRule + "\n")
	b.WriteString("DOCUMENTOS EXIGIDOS\n")
	b.WriteString(sectionRule + "\n")

	for _, cat := range model.AllCategories() {
		matches := categoryMatches(r.Matches, cat)
		if len(matches) == 0 {
			continue
		}

		fmt.Fprintf(&b, "\n%s\n", strings.ToUpper(cat.Label()))
		b.WriteString(itemRule + "\n")

		for _, m := range matches {
			fmt.Fprintf(&b, "\n%s %s\n", statusIcon(m.Status), m.Requirement.Name)
			if m.Document != nil {
				fmt.Fprintf(&b, "   Arquivo: %s\n", m.Document.FileName)
			}
			for _, obs := range m.Observations {
				fmt.Fprintf(&b, "   → %s\n", obs)
			}
		}
	}

	if len(r.UnmatchedDocuments) > 0 {
		b.WriteString("\n" + sectionRule + "\n")
		b.WriteString("DOCUMENTOS NÃO ASSOCIADOS\n")
		b.WriteString(sectionRule + "\n\n")

		for _, doc := range r.UnmatchedDocuments {
			fmt.Fprintf(&b, "- %s\n", doc.FileName)
			fmt.Fprintf(&b, "  Tipo: %s\n", doc.DocumentType)
			fmt.Fprintf(&b, "  Categoria: %s\n\n", doc.Category.Label())
		}
	}

	b.WriteString("\n" + sectionRule + "\n")
	b.WriteString("OBSERVAÇÕES IMPORTANTES\n")
	b.WriteString(sectionRule + "\n\n")
	b.WriteString("⚠️  Conferência automática por similaridade de nomes — revisão manual obrigatória.\n")
	b.WriteString("⚠️  REVISE MANUALMENTE todos os documentos antes do envio.\n")
	b.WriteString("⚠️  A responsabilidade final pela conformidade é do usuário.\n")

	return b.String()
}

// Summary renders the short executive summary: counts, pending actions
// grouped by severity, and the overall situation line.
func Summary(r *model.ComplianceReport) string {
	var b strings.Builder

	b.WriteString(sectionRule + "\n")
	b.WriteString("RESUMO DA ANÁLISE DE LICITAÇÃO\n")
	b.WriteString(sectionRule + "\n\n")
	if r.NoticeName != "" {
		fmt.Fprintf(&b, "Edital: %s\n", r.NoticeName)
	}
	fmt.Fprintf(&b, "Data: %s\n\n", r.GeneratedAt.Format("02/01/2006 15:04"))
	b.WriteString(statsBlock(r) + "\n\n")

	b.WriteString(sectionRule + "\n")
	b.WriteString("AÇÕES NECESSÁRIAS\n")
	b.WriteString(sectionRule + "\n\n")

	if r.Statistics.RequirementsMissing > 0 {
		b.WriteString("❓ DOCUMENTOS FALTANTES:\n")
		for _, m := range r.Matches {
			if m.Status == model.MatchStatusMissing {
				fmt.Fprintf(&b, "   - %s\n", m.Requirement.Name)
			}
		}
		b.WriteString("\n")
	}

	if r.Statistics.RequirementsExpired > 0 {
		b.WriteString("❌ DOCUMENTOS VENCIDOS:\n")
		for _, m := range r.Matches {
			if m.Status != model.MatchStatusExpired || m.Document == nil {
				continue
			}
			fmt.Fprintf(&b, "   - %s\n", m.Document.FileName)
			if m.Document.ExpirationDate != nil {
				fmt.Fprintf(&b, "     Vencido em: %s\n", m.Document.ExpirationDate.Format("2006-01-02"))
			}
		}
		b.WriteString("\n")
	}

	if r.Statistics.RequirementsWarning > 0 {
		b.WriteString("⚠️  DOCUMENTOS COM AVISO:\n")
		for _, m := range r.Matches {
			if m.Status != model.MatchStatusWarning || m.Document == nil {
				continue
			}
			fmt.Fprintf(&b, "   - %s\n", m.Document.FileName)
			for _, obs := range m.Observations {
				fmt.Fprintf(&b, "     %s\n", obs)
			}
		}
		b.WriteString("\n")
	}

	if r.IsCompliant() {
		b.WriteString("✅ SITUAÇÃO: DOCUMENTAÇÃO COMPLETA E VÁLIDA\n\n")
	} else {
		b.WriteString("❌ SITUAÇÃO: DOCUMENTAÇÃO INCOMPLETA OU COM PENDÊNCIAS\n\n")
	}

	b.WriteString(sectionRule + "\n")
	b.WriteString("IMPORTANTE\n")
	b.WriteString(sectionRule + "\n\n")
	b.WriteString("⚠️  Revise manualmente todos os documentos antes do envio.\n")
	b.WriteString("⚠️  Verifique o edital para requisitos específicos não detectados.\n")
	b.WriteString("⚠️  Este relatório é apenas uma ferramenta de apoio.\n")

	return b.String()
}

// WriteJSON writes the indented JSON export.
func WriteJSON(r *model.ComplianceReport, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return eris.Wrap(err, "report: marshal report")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "report: write %s", path)
	}
	return nil
}

func statsBlock(r *model.ComplianceReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  ✅ Em dia: %d\n", r.Statistics.RequirementsOK)
	fmt.Fprintf(&b, "  ⚠️  Com aviso: %d\n", r.Statistics.RequirementsWarning)
	fmt.Fprintf(&b, "  ❌ Vencidos: %d\n", r.Statistics.RequirementsExpired)
	fmt.Fprintf(&b, "  ❓ Faltantes: %d\n", r.Statistics.RequirementsMissing)
	fmt.Fprintf(&b, "  📊 Taxa de conformidade: %.1f%%", r.ComplianceRate())
	return b.String()
}

func categoryMatches(matches []model.RequirementMatch, cat model.Category) []model.RequirementMatch {
	var out []model.RequirementMatch
	for _, m := range matches {
		if m.Requirement.Category == cat {
			out = append(out, m)
		}
	}
	return out
}

func statusIcon(s model.MatchStatus) string {
	switch s {
	case model.MatchStatusOK:
		return "✅"
	case model.MatchStatusExpired:
		return "❌"
	case model.MatchStatusMissing:
		return "❓"
	case model.MatchStatusWarning:
		return "⚠️"
	default:
		return "?"
	}
}

// StatusLabel returns the pt-BR label for a match status, used in the XLSX
// export and the serve-mode JSON summaries.
func StatusLabel(s model.MatchStatus) string {
	switch s {
	case model.MatchStatusOK:
		return "Em dia"
	case model.MatchStatusExpired:
		return "Vencido"
	case model.MatchStatusMissing:
		return "Faltante"
	case model.MatchStatusWarning:
		return "Atenção"
	default:
		return string(s)
	}
}
