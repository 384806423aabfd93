// Package match pairs the requirements extracted from a procurement notice
// with the company's classified documents and produces the compliance
// report. Allocation is greedy and priority ordered on purpose: it mirrors
// how an analyst works through a checklist, not an optimal assignment.
package match

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/licitaflow/compliance-cli/internal/config"
	"github.com/licitaflow/compliance-cli/internal/model"
)

// minAcceptScore is re-checked after threshold selection so that lowering
// the configured threshold can widen the candidate search but never accept
// a match this weak.
const minAcceptScore = 0.5

// Comparator allocates documents to requirements and grades the outcome.
type Comparator struct {
	threshold      float64
	warnConfidence float64
	expiryWarnDays int
	now            func() time.Time
}

// NewComparator builds a Comparator from match configuration.
func NewComparator(cfg config.MatchConfig) *Comparator {
	return &Comparator{
		threshold:      cfg.Threshold,
		warnConfidence: cfg.WarnConfidence,
		expiryWarnDays: cfg.ExpiryWarningDays,
		now:            time.Now,
	}
}

// Compare matches requirements against documents and assembles the
// compliance report. Requirements are processed from most to least specific
// (word count, doubled for mandatory ones) so that specific requirements
// claim the best-fitting document before generic ones can steal it. Each
// document is claimed by at most one requirement; claim state is local to
// the call, so repeated calls over the same inputs yield the same report.
func (c *Comparator) Compare(requirements []model.Requirement, documents []model.ClassifiedDocument) *model.ComplianceReport {
	zap.L().Info("match: comparing requirements against documents",
		zap.Int("requirements", len(requirements)),
		zap.Int("documents", len(documents)))

	sorted := make([]model.Requirement, len(requirements))
	copy(sorted, requirements)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Weight() > sorted[j].Weight()
	})

	claimed := make(map[int]struct{}, len(documents))
	matches := make([]model.RequirementMatch, 0, len(sorted))

	for _, req := range sorted {
		bestIdx := -1
		bestScore := 0.0
		for i := range documents {
			if _, taken := claimed[i]; taken {
				continue
			}
			s := Score(req, documents[i])
			if s >= c.threshold && s > bestScore {
				bestIdx = i
				bestScore = s
			}
		}

		if bestIdx < 0 {
			matches = append(matches, c.newMatch(req, nil, 0))
			continue
		}
		if bestScore < minAcceptScore {
			zap.L().Warn("match: best candidate below minimum acceptance, rejecting",
				zap.String("requirement", req.Name),
				zap.Float64("score", bestScore))
			matches = append(matches, c.newMatch(req, nil, 0))
			continue
		}

		claimed[bestIdx] = struct{}{}
		doc := documents[bestIdx]
		zap.L().Debug("match: document claimed",
			zap.String("requirement", req.Name),
			zap.String("file", doc.FileName),
			zap.Float64("score", bestScore))
		matches = append(matches, c.newMatch(req, &doc, bestScore))
	}

	unmatched := make([]model.ClassifiedDocument, 0)
	for i, d := range documents {
		if _, taken := claimed[i]; !taken {
			unmatched = append(unmatched, d)
		}
	}

	report := &model.ComplianceReport{
		Matches:            matches,
		UnmatchedDocuments: unmatched,
		GeneratedAt:        c.now(),
	}
	report.CountByStatus()

	zap.L().Info("match: comparison complete",
		zap.Int("ok", report.Statistics.RequirementsOK),
		zap.Int("warning", report.Statistics.RequirementsWarning),
		zap.Int("expired", report.Statistics.RequirementsExpired),
		zap.Int("missing", report.Statistics.RequirementsMissing),
		zap.Int("unmatched_documents", report.Statistics.DocumentsUnmatched))

	return report
}

func (c *Comparator) newMatch(req model.Requirement, doc *model.ClassifiedDocument, confidence float64) model.RequirementMatch {
	status := c.matchStatus(doc, confidence)
	return model.RequirementMatch{
		Requirement:  req,
		Document:     doc,
		Confidence:   confidence,
		Status:       status,
		Observations: c.observations(status, doc, confidence),
	}
}

// matchStatus grades a single allocation. Expiration outranks confidence:
// an expired document is expired no matter how well it matched.
func (c *Comparator) matchStatus(doc *model.ClassifiedDocument, confidence float64) model.MatchStatus {
	if doc == nil {
		return model.MatchStatusMissing
	}
	if doc.Expired {
		return model.MatchStatusExpired
	}
	if doc.DaysUntilExpiration != nil && *doc.DaysUntilExpiration > 0 && *doc.DaysUntilExpiration < c.expiryWarnDays {
		return model.MatchStatusWarning
	}
	if confidence < c.warnConfidence {
		return model.MatchStatusWarning
	}
	return model.MatchStatusOK
}

// observations renders the pt-BR notes shown next to a checklist entry.
func (c *Comparator) observations(status model.MatchStatus, doc *model.ClassifiedDocument, confidence float64) []string {
	var obs []string
	switch status {
	case model.MatchStatusMissing:
		obs = append(obs, "Documento não encontrado")
	case model.MatchStatusExpired:
		if doc != nil && doc.ExpirationDate != nil {
			obs = append(obs, fmt.Sprintf("Documento vencido em %s", doc.ExpirationDate.Format("2006-01-02")))
		} else {
			obs = append(obs, "Documento vencido")
		}
	case model.MatchStatusWarning:
		if doc != nil && doc.DaysUntilExpiration != nil && *doc.DaysUntilExpiration > 0 && *doc.DaysUntilExpiration < c.expiryWarnDays {
			obs = append(obs, fmt.Sprintf("Documento vence em %d dias", *doc.DaysUntilExpiration))
		}
	case model.MatchStatusOK:
		if doc != nil && doc.ExpirationDate != nil {
			obs = append(obs, fmt.Sprintf("Documento válido até %s", doc.ExpirationDate.Format("2006-01-02")))
		}
	}
	if doc != nil && confidence < c.warnConfidence {
		obs = append(obs, fmt.Sprintf("Confiança baixa (%.0f%%) — verificação manual recomendada", confidence*100))
	}
	return obs
}
