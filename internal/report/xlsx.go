package report

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/licitaflow/compliance-cli/internal/model"
)

var conformidadeHeader = []string{
	"Documento Exigido",
	"Categoria",
	"Status",
	"Arquivo",
	"Confiança (%)",
	"Validade",
}

// WriteXLSX writes the spreadsheet export: a "Conformidade" sheet with one
// row per match followed by the unmatched documents, and a "Resumo" sheet
// with the statistics.
func WriteXLSX(r *model.ComplianceReport, path string) error {
	f := xlsx.NewFile()

	if err := addConformidade(f, r); err != nil {
		return err
	}
	if err := addResumo(f, r); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save xlsx %s", path)
	}
	return nil
}

func addConformidade(f *xlsx.File, r *model.ComplianceReport) error {
	sheet, err := f.AddSheet("Conformidade")
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range conformidadeHeader {
		header.AddCell().SetString(h)
	}

	for _, m := range r.Matches {
		row := sheet.AddRow()
		row.AddCell().SetString(m.Requirement.Name)
		row.AddCell().SetString(m.Requirement.Category.Label())
		row.AddCell().SetString(StatusLabel(m.Status))

		var file, expiry string
		if m.Document != nil {
			file = m.Document.FileName
			if m.Document.ExpirationDate != nil {
				expiry = m.Document.ExpirationDate.Format("2006-01-02")
			}
		}
		row.AddCell().SetString(file)
		row.AddCell().SetFloatWithFormat(m.Confidence*100, "0.0")
		row.AddCell().SetString(expiry)
	}

	for _, doc := range r.UnmatchedDocuments {
		row := sheet.AddRow()
		row.AddCell().SetString(doc.DocumentType)
		row.AddCell().SetString(doc.Category.Label())
		row.AddCell().SetString("Não associado")
		row.AddCell().SetString(doc.FileName)
		row.AddCell().SetFloatWithFormat(doc.Confidence*100, "0.0")
		var expiry string
		if doc.ExpirationDate != nil {
			expiry = doc.ExpirationDate.Format("2006-01-02")
		}
		row.AddCell().SetString(expiry)
	}

	return nil
}

func addResumo(f *xlsx.File, r *model.ComplianceReport) error {
	sheet, err := f.AddSheet("Resumo")
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	counts := []struct {
		label string
		value int
	}{
		{"Total de exigências", r.Statistics.TotalRequirements},
		{"Em dia", r.Statistics.RequirementsOK},
		{"Com aviso", r.Statistics.RequirementsWarning},
		{"Vencidos", r.Statistics.RequirementsExpired},
		{"Faltantes", r.Statistics.RequirementsMissing},
		{"Documentos analisados", r.Statistics.TotalDocuments},
		{"Documentos associados", r.Statistics.DocumentsMatched},
		{"Documentos não associados", r.Statistics.DocumentsUnmatched},
	}
	for _, c := range counts {
		row := sheet.AddRow()
		row.AddCell().SetString(c.label)
		row.AddCell().SetInt(c.value)
	}

	rate := sheet.AddRow()
	rate.AddCell().SetString("Taxa de conformidade (%)")
	rate.AddCell().SetFloatWithFormat(r.ComplianceRate(), "0.0")

	generated := sheet.AddRow()
	generated.AddCell().SetString("Gerado em")
	generated.AddCell().SetString(r.GeneratedAt.Format(time.RFC3339))

	return nil
}
