package model

import "strings"

// Category represents a procurement qualification category. Both requirements
// and classified documents carry one, and the matching engine treats category
// agreement as its strongest generic signal.
type Category string

const (
	CategoryLegal      Category = "legal_qualification"
	CategoryTax        Category = "tax_compliance"
	CategoryTechnical  Category = "technical_qualification"
	CategoryEconomic   Category = "economic_qualification"
	CategoryCommercial Category = "commercial_proposal"
	CategoryOther      Category = "other"
)

// AllCategories returns all defined categories in display order.
func AllCategories() []Category {
	return []Category{
		CategoryLegal,
		CategoryTax,
		CategoryTechnical,
		CategoryEconomic,
		CategoryCommercial,
		CategoryOther,
	}
}

// ParseCategory parses a raw category string. The second return is false when
// the value is not one of the closed set; callers must coerce to
// CategoryOther (with whatever confidence penalty applies) rather than fail.
func ParseCategory(raw string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range AllCategories() {
		if c == known {
			return c, true
		}
	}
	return CategoryOther, false
}

// Label returns the pt-BR display name used in checklists and reports.
func (c Category) Label() string {
	switch c {
	case CategoryLegal:
		return "Habilitação Jurídica"
	case CategoryTax:
		return "Regularidade Fiscal"
	case CategoryTechnical:
		return "Qualificação Técnica"
	case CategoryEconomic:
		return "Qualificação Econômico-Financeira"
	case CategoryCommercial:
		return "Proposta Comercial"
	default:
		return "Outros Documentos"
	}
}

// FolderName returns the numbered directory name used when organizing
// matched documents into an output folder.
func (c Category) FolderName() string {
	switch c {
	case CategoryLegal:
		return "01_Habilitacao_Juridica"
	case CategoryTax:
		return "02_Regularidade_Fiscal"
	case CategoryTechnical:
		return "03_Qualificacao_Tecnica"
	case CategoryEconomic:
		return "04_Qualificacao_Economica"
	case CategoryCommercial:
		return "05_Proposta_Comercial"
	default:
		return "06_Outros"
	}
}
