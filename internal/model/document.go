package model

import "time"

// Classification methods, ordered by trust.
const (
	ClassificationMethodLLM      = "llm"
	ClassificationMethodContent  = "content_rules"
	ClassificationMethodFilename = "filename_rules"
)

// ClassifiedDocument is a company document after text extraction and
// classification. ExpirationDate is nil when no validity date was found or
// the document type never expires.
type ClassifiedDocument struct {
	FileName            string     `json:"file_name"`
	FilePath            string     `json:"file_path"`
	DocumentType        string     `json:"document_type"`
	Category            Category   `json:"category"`
	Confidence          float64    `json:"confidence"`
	Method              string     `json:"method"`
	ExpirationDate      *time.Time `json:"expiration_date,omitempty"`
	Expired             bool       `json:"expired"`
	DaysUntilExpiration *int       `json:"days_until_expiration,omitempty"`
	NonExpiring         bool       `json:"non_expiring,omitempty"`
	TextContent         string     `json:"-"`
}

// NewClassifiedDocument builds a document with category and confidence
// normalized. An unknown category is coerced to CategoryOther with the
// confidence halved, matching the behavior of the classification boundary.
func NewClassifiedDocument(fileName, filePath, docType, rawCategory string, confidence float64, method string) ClassifiedDocument {
	category, ok := ParseCategory(rawCategory)
	if !ok {
		confidence /= 2
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return ClassifiedDocument{
		FileName:     fileName,
		FilePath:     filePath,
		DocumentType: docType,
		Category:     category,
		Confidence:   confidence,
		Method:       method,
	}
}

// SetExpiration records a validity date relative to now, computing the
// expired flag and the countdown used by the near-expiry warning.
func (d *ClassifiedDocument) SetExpiration(expires time.Time, now time.Time) {
	days := int(expires.Sub(now).Hours() / 24)
	d.ExpirationDate = &expires
	d.Expired = expires.Before(now)
	d.DaysUntilExpiration = &days
}

// ExtractedText is a cached text extraction, keyed by the SHA-256 of the
// source file so renamed or moved copies still hit.
type ExtractedText struct {
	ID          string    `json:"id"`
	FileHash    string    `json:"file_hash"`
	Content     string    `json:"content"`
	ExtractedAt time.Time `json:"extracted_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}
