package classify

import (
	"strings"

	"github.com/licitaflow/compliance-cli/internal/model"
	"github.com/licitaflow/compliance-cli/internal/normalize"
	"github.com/licitaflow/compliance-cli/internal/validity"
)

// Filename patterns for document types without an expiry: corporate charter,
// CNPJ registration, meeting minutes, technical attestations.
var nonExpiringPatterns = []string{
	"contrato_social", "contrato social", "cnpj", "comprovante_cnpj",
	"ata", "atestado", "estatuto",
}

// Filename patterns for certificates whose compliance window runs from the
// issuance date rather than a printed expiry (judicial and civil
// certificates).
var issuancePatterns = []string{
	"falencia", "concordata", "recuperacao judicial",
	"certidao_civel", "civel", "distribuidor",
}

func matchesAny(folded string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(folded, p) {
			return true
		}
	}
	return false
}

// attachExpiration fills the expiration fields by document type: known
// non-expiring types skip date extraction, judicial certificates validate
// by issuance window, everything else uses the extracted validity date.
func (c *Classifier) attachExpiration(doc *model.ClassifiedDocument, text string) {
	folded := normalize.Fold(doc.FileName)
	now := c.now()

	if matchesAny(folded, nonExpiringPatterns) {
		doc.NonExpiring = true
		return
	}

	if matchesAny(folded, issuancePatterns) {
		if strings.TrimSpace(text) == "" {
			return
		}
		check := validity.ValidateByIssuance(text, c.issuanceDays(), now)
		if check.IssuanceDate == nil {
			return
		}
		doc.Expired = check.Expired
		days := check.DaysRemaining
		doc.DaysUntilExpiration = &days
		doc.ExpirationDate = check.ExpiryFromIssuance(c.issuanceDays())
		return
	}

	if strings.TrimSpace(text) == "" {
		return
	}
	if expires := validity.FindValidityDate(text, now); expires != nil {
		doc.SetExpiration(*expires, now)
	}
}

func (c *Classifier) issuanceDays() int {
	if c.maxIssuanceDays > 0 {
		return c.maxIssuanceDays
	}
	return validity.DefaultMaxIssuanceDays
}
