package validity

import (
	"regexp"
	"time"

	"github.com/licitaflow/compliance-cli/internal/normalize"
)

// DefaultMaxIssuanceDays is the standard compliance window for documents
// valid for a period counted from emission, such as bankruptcy and civil
// certificates.
const DefaultMaxIssuanceDays = 90

// nearLimitDays is how close to the window's end a document must be to be
// flagged for renewal.
const nearLimitDays = 10

// emitido em 01/01/2025, expedida em: 01-01-2025, DATA DE EMISSÃO: 01/01/2025
var issuanceLabelRe = regexp.MustCompile(`(?:emitid[oa]s?\s+em|expedid[oa]s?\s+em|data\s+de\s+emissao|data\s+de\s+expedicao|emissao|expedicao)\s*:?\s*(\d{1,4}[/\-.]\d{1,2}[/\-.]\d{2,4})`)

// IssuanceCheck is the result of validating a document whose compliance
// window is counted from its emission date. A nil IssuanceDate means no
// labeled emission date was found; such documents are treated as unknown,
// never as expired.
type IssuanceCheck struct {
	IssuanceDate  *time.Time `json:"issuance_date,omitempty"`
	Expired       bool       `json:"expired"`
	DaysRemaining int        `json:"days_remaining"`
	NearLimit     bool       `json:"near_limit"`
}

// ValidateByIssuance extracts a labeled issuance date from text and checks
// it against a maximum age in days. maxDays <= 0 uses
// DefaultMaxIssuanceDays.
func ValidateByIssuance(text string, maxDays int, now time.Time) IssuanceCheck {
	if maxDays <= 0 {
		maxDays = DefaultMaxIssuanceDays
	}
	if text == "" {
		return IssuanceCheck{}
	}

	m := issuanceLabelRe.FindStringSubmatch(normalize.Fold(text))
	if m == nil {
		return IssuanceCheck{}
	}
	issued, ok := ParseDate(m[1])
	if !ok {
		return IssuanceCheck{}
	}

	elapsed := daysBetween(issued, now)
	remaining := maxDays - elapsed
	check := IssuanceCheck{
		IssuanceDate:  &issued,
		Expired:       elapsed > maxDays,
		DaysRemaining: remaining,
	}
	check.NearLimit = !check.Expired && remaining > 0 && remaining <= nearLimitDays
	return check
}

// ExpiryFromIssuance converts an issuance check into the equivalent
// expiration date, for carrying issuance-window results on the same
// document fields as labeled expiry dates.
func (c IssuanceCheck) ExpiryFromIssuance(maxDays int) *time.Time {
	if c.IssuanceDate == nil {
		return nil
	}
	if maxDays <= 0 {
		maxDays = DefaultMaxIssuanceDays
	}
	expiry := c.IssuanceDate.AddDate(0, 0, maxDays)
	return &expiry
}
