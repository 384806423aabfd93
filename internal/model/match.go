package model

import "time"

// MatchStatus is the per-requirement outcome after allocation.
type MatchStatus string

const (
	// MatchStatusOK means a valid document covers the requirement.
	MatchStatusOK MatchStatus = "ok"
	// MatchStatusExpired means the best document's validity date has passed.
	MatchStatusExpired MatchStatus = "expired"
	// MatchStatusMissing means no document scored above the match threshold.
	MatchStatusMissing MatchStatus = "missing"
	// MatchStatusWarning means a document matched but needs attention:
	// expiring within 30 days or matched with low confidence.
	MatchStatusWarning MatchStatus = "warning"
)

// AllMatchStatuses returns all defined statuses in severity order.
func AllMatchStatuses() []MatchStatus {
	return []MatchStatus{
		MatchStatusMissing,
		MatchStatusExpired,
		MatchStatusWarning,
		MatchStatusOK,
	}
}

// RequirementMatch pairs one requirement with the document allocated to it,
// if any. Observations carry pt-BR notes surfaced on the checklist, such as
// the manual-review disclaimer for low-confidence matches.
type RequirementMatch struct {
	Requirement  Requirement         `json:"requirement"`
	Document     *ClassifiedDocument `json:"document,omitempty"`
	Confidence   float64             `json:"confidence"`
	Status       MatchStatus         `json:"status"`
	Observations []string            `json:"observations,omitempty"`
}

// Statistics aggregates match outcomes for a report.
type Statistics struct {
	TotalRequirements   int `json:"total_requirements"`
	RequirementsOK      int `json:"requirements_ok"`
	RequirementsExpired int `json:"requirements_expired"`
	RequirementsMissing int `json:"requirements_missing"`
	RequirementsWarning int `json:"requirements_warning"`
	TotalDocuments      int `json:"total_documents"`
	DocumentsMatched    int `json:"documents_matched"`
	DocumentsUnmatched  int `json:"documents_unmatched"`
}

// ComplianceReport is the final artifact of an analysis run.
type ComplianceReport struct {
	NoticeName         string               `json:"notice_name"`
	Matches            []RequirementMatch   `json:"matches"`
	UnmatchedDocuments []ClassifiedDocument `json:"unmatched_documents"`
	Statistics         Statistics           `json:"statistics"`
	GeneratedAt        time.Time            `json:"generated_at"`
}

// ComplianceRate returns the percentage of requirements fully satisfied.
// An empty report scores zero rather than dividing by zero.
func (r ComplianceReport) ComplianceRate() float64 {
	if r.Statistics.TotalRequirements == 0 {
		return 0
	}
	return float64(r.Statistics.RequirementsOK) / float64(r.Statistics.TotalRequirements) * 100
}

// IsCompliant reports whether the company can bid as-is: nothing missing
// and nothing expired. Warnings do not block compliance.
func (r ComplianceReport) IsCompliant() bool {
	return r.Statistics.RequirementsMissing == 0 && r.Statistics.RequirementsExpired == 0
}

// CountByStatus recomputes statistics from the match and unmatched lists.
// TotalDocuments is derived as matched plus unmatched, so both lists must
// be final before calling.
func (r *ComplianceReport) CountByStatus() {
	s := Statistics{
		TotalRequirements:  len(r.Matches),
		TotalDocuments:     len(r.UnmatchedDocuments),
		DocumentsUnmatched: len(r.UnmatchedDocuments),
	}
	for _, m := range r.Matches {
		switch m.Status {
		case MatchStatusOK:
			s.RequirementsOK++
		case MatchStatusExpired:
			s.RequirementsExpired++
		case MatchStatusMissing:
			s.RequirementsMissing++
		case MatchStatusWarning:
			s.RequirementsWarning++
		}
		if m.Document != nil {
			s.DocumentsMatched++
			s.TotalDocuments++
		}
	}
	r.Statistics = s
}
