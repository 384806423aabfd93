package validity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestFindValidityDate_LabeledFields(t *testing.T) {
	t.Parallel()

	t.Run("valido ate", func(t *testing.T) {
		t.Parallel()
		d := FindValidityDate("Certidão válida até 15/03/2025", testNow)
		require.NotNil(t, d)
		assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), *d)
	})

	t.Run("validade label with colon", func(t *testing.T) {
		t.Parallel()
		d := FindValidityDate("VALIDADE: 20/12/2025", testNow)
		require.NotNil(t, d)
		assert.Equal(t, time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC), *d)
	})

	t.Run("vencimento label", func(t *testing.T) {
		t.Parallel()
		d := FindValidityDate("Data de vencimento: 10/10/2026", testNow)
		require.NotNil(t, d)
		assert.Equal(t, 2026, d.Year())
	})

	t.Run("labeled field beats other candidates", func(t *testing.T) {
		t.Parallel()
		text := "Emitido em 01/01/2020. VENCIMENTO: 10/10/2026. Protocolo de 05/05/2025."
		d := FindValidityDate(text, testNow)
		require.NotNil(t, d)
		assert.Equal(t, time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC), *d)
	})

	t.Run("iso date after label", func(t *testing.T) {
		t.Parallel()
		d := FindValidityDate("validade: 2025-09-30", testNow)
		require.NotNil(t, d)
		assert.Equal(t, time.September, d.Month())
	})
}

func TestFindValidityDate_RelativePhrases(t *testing.T) {
	t.Parallel()

	t.Run("valido por N dias from issuance", func(t *testing.T) {
		t.Parallel()
		text := "Documento emitido em 10/05/2025. Válido por 90 dias."
		d := FindValidityDate(text, testNow)
		require.NotNil(t, d)
		// 10/05/2025 + 90 days
		assert.Equal(t, time.Date(2025, 8, 8, 0, 0, 0, 0, time.UTC), *d)
	})

	t.Run("validade de N meses from issuance", func(t *testing.T) {
		t.Parallel()
		text := "Certidão expedida em 01/02/2025, validade de 6 meses."
		d := FindValidityDate(text, testNow)
		require.NotNil(t, d)
		assert.Equal(t, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), *d)
	})

	t.Run("relative phrase without any date yields nil", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, FindValidityDate("Válido por 30 dias a partir da emissão.", testNow))
	})

	t.Run("future date is not taken as issuance anchor", func(t *testing.T) {
		t.Parallel()
		// Both dates are candidates in the window; the past one near the
		// emission keyword must win as the anchor.
		text := "Audiência marcada para 20/07/2025. Certidão emitida em 01/05/2025, válida por 30 dias."
		d := FindValidityDate(text, testNow)
		require.NotNil(t, d)
		assert.Equal(t, time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC), *d)
	})
}

func TestFindValidityDate_IssuanceLabelFallback(t *testing.T) {
	t.Parallel()

	d := FindValidityDate("EMISSÃO: 10/04/2025", testNow)
	require.NotNil(t, d)
	assert.Equal(t, time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC), *d)
}

func TestFindValidityDate_ScoredFreeText(t *testing.T) {
	t.Parallel()

	t.Run("keyword plus future wins over old date", func(t *testing.T) {
		t.Parallel()
		text := "Reunião de 10/01/2020. O documento vence em 20/10/2025."
		d := FindValidityDate(text, testNow)
		require.NotNil(t, d)
		assert.Equal(t, time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC), *d)
	})

	t.Run("tie broken by first appearance", func(t *testing.T) {
		t.Parallel()
		d := FindValidityDate("Datas: 01/02/2026 e 03/04/2026", testNow)
		require.NotNil(t, d)
		assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), *d)
	})

	t.Run("lone past date still returned for caller to flag", func(t *testing.T) {
		t.Parallel()
		d := FindValidityDate("Ata da reunião de 10/01/2020", testNow)
		require.NotNil(t, d)
		assert.Equal(t, 2020, d.Year())
	})

	t.Run("no dates yields nil", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, FindValidityDate("Pregão eletrônico nº 42, objeto: serviços de limpeza", testNow))
	})

	t.Run("empty text yields nil", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, FindValidityDate("", testNow))
	})
}
