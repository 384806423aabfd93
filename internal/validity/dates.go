// Package validity infers expiration and issuance dates from Brazilian
// procurement document text. Input is free-form, frequently OCR noise, so
// everything here is heuristic: labeled fields are trusted first, then
// relative-validity phrases, then keyword-scored date candidates.
package validity

import (
	"regexp"
	"strconv"
	"time"
)

// Date layout patterns, tried in order; first match wins.
var dateLayouts = []struct {
	re  *regexp.Regexp
	d   int // capture group indexes
	m   int
	y   int
	two bool // two-digit year
}{
	// 15/03/2025, 15-03-2025, 15.03.2025
	{regexp.MustCompile(`^(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{4})$`), 1, 2, 3, false},
	// 2025-03-15, 2025/03/15
	{regexp.MustCompile(`^(\d{4})[/\-](\d{1,2})[/\-](\d{1,2})$`), 3, 2, 1, false},
	// 15/03/25
	{regexp.MustCompile(`^(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2})$`), 1, 2, 3, true},
}

// candidateRe finds date-shaped substrings for ParseDate to validate.
var candidateRe = regexp.MustCompile(`\b\d{1,4}[/\-.]\d{1,2}[/\-.]\d{2,4}\b`)

// ParseDate parses a Brazilian-format date string (day first) or an ISO
// date. Two-digit years resolve as <50 → 20xx, otherwise 19xx. Returns
// false for anything outside day 1-31, month 1-12, year 1900-2100, or for
// impossible calendar dates like 31/02.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		m := layout.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		day, _ := strconv.Atoi(m[layout.d])
		month, _ := strconv.Atoi(m[layout.m])
		year, _ := strconv.Atoi(m[layout.y])
		if layout.two {
			if year < 50 {
				year += 2000
			} else {
				year += 1900
			}
		}
		if day < 1 || day > 31 || month < 1 || month > 12 || year < 1900 || year > 2100 {
			continue
		}
		date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		// time.Date normalizes overflow (31/02 becomes 03/03); reject those.
		if date.Day() != day || date.Month() != time.Month(month) {
			continue
		}
		return date, true
	}
	return time.Time{}, false
}

// dateCandidate is one parseable date found in text, with its byte span.
type dateCandidate struct {
	date  time.Time
	start int
	end   int
}

// extractDates returns every parseable date in text, in order of appearance.
func extractDates(text string) []dateCandidate {
	var found []dateCandidate
	for _, span := range candidateRe.FindAllStringIndex(text, -1) {
		date, ok := ParseDate(text[span[0]:span[1]])
		if !ok {
			continue
		}
		found = append(found, dateCandidate{date: date, start: span[0], end: span[1]})
	}
	return found
}

// day truncates a time to its UTC calendar date.
func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween returns b - a in whole days.
func daysBetween(a, b time.Time) int {
	return int(day(b).Sub(day(a)).Hours() / 24)
}
