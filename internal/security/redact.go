package security

import "regexp"

// Brazilian identifier formats that must never reach logs.
var (
	cpfRe   = regexp.MustCompile(`\b\d{3}\.\d{3}\.\d{3}-\d{2}\b`)
	cnpjRe  = regexp.MustCompile(`\b\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}\b`)
	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
	phoneRe = regexp.MustCompile(`\b\(?\d{2}\)?\s?\d{4,5}-?\d{4}\b`)
)

// Redact masks CPF, CNPJ, email, and phone numbers in text so document
// snippets can be logged safely.
func Redact(text string) string {
	if text == "" {
		return text
	}
	text = cpfRe.ReplaceAllString(text, "CPF:[REDACTED]")
	text = cnpjRe.ReplaceAllString(text, "CNPJ:[REDACTED]")
	text = emailRe.ReplaceAllString(text, "EMAIL:[REDACTED]")
	text = phoneRe.ReplaceAllString(text, "PHONE:[REDACTED]")
	return text
}
