package validity

import (
	"regexp"
	"strconv"
	"time"

	"github.com/licitaflow/compliance-cli/internal/normalize"
)

// Labeled validity fields, tried in order; first match wins.
var labeledDateRes = []*regexp.Regexp{
	// VALIDADE: 15/03/2025, DATA DE VALIDADE 15.03.2025, PRAZO DE VALIDADE: 2025-03-15
	regexp.MustCompile(`(?:data de validade|prazo de validade|validade)\s*:?\s*(?:ate\s+)?(\d{1,4}[/\-.]\d{1,2}[/\-.]\d{2,4})`),
	// válido até 15/03/2025, válida até: 15/03/2025
	regexp.MustCompile(`valid[oa]s?\s+ate\s*:?\s*(\d{1,4}[/\-.]\d{1,2}[/\-.]\d{2,4})`),
	// VENCIMENTO: 15/03/2025, expira em 15/03/2025, vigência até 15/03/2025
	regexp.MustCompile(`(?:vencimento|expira em|vigencia)\s*:?\s*(?:ate\s+)?(\d{1,4}[/\-.]\d{1,2}[/\-.]\d{2,4})`),
}

// Relative validity phrases: "válido por 90 dias", "prazo de 30 dias",
// "validade de 6 meses". Group 1 is the count, group 2 the unit.
var relativeRes = []*regexp.Regexp{
	regexp.MustCompile(`valid[oa]s?\s+por\s+(\d{1,3})\s+(dias|meses)`),
	regexp.MustCompile(`validade\s+de\s+(\d{1,3})\s+(dias|meses)`),
	regexp.MustCompile(`prazo\s+de\s+(\d{1,3})\s+(dias)`),
}

// Keywords that mark a nearby date as a validity date.
var validityKeywordRe = regexp.MustCompile(`\b(?:vencimento|validade|vigencia|valid[oa]s?|vence|expira|ate)\b`)

// Keywords that mark a nearby date as an issuance date.
var issuanceKeywordRe = regexp.MustCompile(`\b(?:emissao|emitid[oa]|expedid[oa]|expedicao)\b`)

const (
	relativeWindow  = 300 // chars around a relative phrase searched for the issuance date
	contextWindow   = 150 // chars of context scored around a free-text date
	keywordNearby   = 50  // chars between keyword and date for the proximity bonus
	issuanceNearby  = 60  // chars between issuance keyword and its date
	sixMonthsInDays = 183
)

// FindValidityDate returns the most plausible expiration date in text, or
// nil when no date can be inferred. Callers must treat nil as "unknown",
// never as invalid or expired.
//
// Stages, first hit wins:
//  1. labeled validity field ("VALIDADE: 15/03/2025")
//  2. relative phrase ("válido por 90 dias") anchored to a nearby issuance date
//  3. labeled issuance field ("EMISSÃO: 15/03/2025"); an emission date is
//     still better than scanning unlabeled candidates, but it must not
//     shadow a relative phrase that anchors on it
//  4. keyword-scored free-text candidates
func FindValidityDate(text string, now time.Time) *time.Time {
	if text == "" {
		return nil
	}
	folded := normalize.Fold(text)

	if d := findLabeledDate(folded); d != nil {
		return d
	}
	if d := findRelativeDate(folded, now); d != nil {
		return d
	}
	if m := issuanceLabelRe.FindStringSubmatch(folded); m != nil {
		if date, ok := ParseDate(m[1]); ok {
			return &date
		}
	}
	return findScoredDate(folded, now)
}

func findLabeledDate(folded string) *time.Time {
	for _, re := range labeledDateRes {
		m := re.FindStringSubmatch(folded)
		if m == nil {
			continue
		}
		if date, ok := ParseDate(m[1]); ok {
			return &date
		}
	}
	return nil
}

func findRelativeDate(folded string, now time.Time) *time.Time {
	for _, re := range relativeRes {
		loc := re.FindStringSubmatchIndex(folded)
		if loc == nil {
			continue
		}
		count, err := strconv.Atoi(folded[loc[2]:loc[3]])
		if err != nil || count == 0 {
			continue
		}
		unit := folded[loc[4]:loc[5]]

		issued := findIssuanceNear(folded, loc[0], loc[1], now)
		if issued == nil {
			continue
		}
		var expiry time.Time
		if unit == "meses" {
			expiry = issued.AddDate(0, count, 0)
		} else {
			expiry = issued.AddDate(0, 0, count)
		}
		return &expiry
	}
	return nil
}

// findIssuanceNear picks the most plausible issuance date within
// relativeWindow chars of the span [from, to). An issuance date should sit
// in the recent past, so future dates are heavily penalized and dates older
// than six months slightly.
func findIssuanceNear(folded string, from, to int, now time.Time) *time.Time {
	start := from - relativeWindow
	if start < 0 {
		start = 0
	}
	end := to + relativeWindow
	if end > len(folded) {
		end = len(folded)
	}
	window := folded[start:end]

	var bestDate *time.Time
	bestScore := 0
	for _, c := range extractDates(window) {
		score := 0
		if keywordNear(issuanceKeywordRe, window, c.start, c.end, issuanceNearby) {
			score += 10
		}
		switch age := daysBetween(c.date, now); {
		case age < 0:
			score -= 20
		case age > sixMonthsInDays:
			score -= 3
		default:
			score += 5
		}
		if bestDate == nil || score > bestScore {
			d := c.date
			bestDate = &d
			bestScore = score
		}
	}
	return bestDate
}

func findScoredDate(folded string, now time.Time) *time.Time {
	var bestDate *time.Time
	bestScore := 0
	for _, c := range extractDates(folded) {
		ctxStart := c.start - contextWindow
		if ctxStart < 0 {
			ctxStart = 0
		}
		ctxEnd := c.end + contextWindow
		if ctxEnd > len(folded) {
			ctxEnd = len(folded)
		}
		ctx := folded[ctxStart:ctxEnd]

		score := 0
		if validityKeywordRe.MatchString(ctx) {
			score += 10
			if keywordNear(validityKeywordRe, ctx, c.start-ctxStart, c.end-ctxStart, keywordNearby) {
				score += 5
			}
		}

		diff := daysBetween(now, c.date)
		switch {
		case diff > 0:
			score += 8
		case diff == 0:
			score += 3
		}
		if abs(diff) <= 730 {
			score += 5
		} else if abs(diff) <= 1825 {
			score += 2
		}
		if diff < -365 {
			score -= 10
		}

		// Strictly-greater comparison keeps the first candidate on ties.
		if bestDate == nil || score > bestScore {
			d := c.date
			bestDate = &d
			bestScore = score
		}
	}
	return bestDate
}

// keywordNear reports whether any keyword occurrence in text sits within
// dist chars of the span [start, end).
func keywordNear(re *regexp.Regexp, text string, start, end, dist int) bool {
	for _, kw := range re.FindAllStringIndex(text, -1) {
		gap := 0
		switch {
		case kw[1] <= start:
			gap = start - kw[1]
		case kw[0] >= end:
			gap = kw[0] - end
		}
		if gap <= dist {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
