package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewClassifiedDocument(t *testing.T) {
	t.Parallel()

	t.Run("valid category kept as-is", func(t *testing.T) {
		t.Parallel()
		doc := NewClassifiedDocument("cnd.pdf", "/docs/cnd.pdf", "CND Federal", "tax_compliance", 0.9, ClassificationMethodLLM)
		assert.Equal(t, CategoryTax, doc.Category)
		assert.InDelta(t, 0.9, doc.Confidence, 0.0001)
	})

	t.Run("invalid category coerced to other with halved confidence", func(t *testing.T) {
		t.Parallel()
		doc := NewClassifiedDocument("x.pdf", "/docs/x.pdf", "Documento", "fiscal", 0.8, ClassificationMethodLLM)
		assert.Equal(t, CategoryOther, doc.Category)
		assert.InDelta(t, 0.4, doc.Confidence, 0.0001)
	})

	t.Run("confidence clamped to unit interval", func(t *testing.T) {
		t.Parallel()
		high := NewClassifiedDocument("a.pdf", "a.pdf", "Doc", "other", 1.7, ClassificationMethodContent)
		assert.InDelta(t, 1.0, high.Confidence, 0.0001)

		low := NewClassifiedDocument("b.pdf", "b.pdf", "Doc", "other", -0.2, ClassificationMethodContent)
		assert.InDelta(t, 0.0, low.Confidence, 0.0001)
	})
}

func TestClassifiedDocumentSetExpiration(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("future date", func(t *testing.T) {
		t.Parallel()
		doc := ClassifiedDocument{FileName: "crf.pdf"}
		doc.SetExpiration(now.AddDate(0, 0, 45), now)
		assert.False(t, doc.Expired)
		assert.NotNil(t, doc.DaysUntilExpiration)
		assert.Equal(t, 45, *doc.DaysUntilExpiration)
	})

	t.Run("past date marks expired", func(t *testing.T) {
		t.Parallel()
		doc := ClassifiedDocument{FileName: "cnd.pdf"}
		doc.SetExpiration(now.AddDate(0, 0, -10), now)
		assert.True(t, doc.Expired)
		assert.Equal(t, -10, *doc.DaysUntilExpiration)
	})
}
