package match

import (
	"path/filepath"
	"strings"

	"github.com/licitaflow/compliance-cli/internal/model"
)

// separatorReplacer flattens the underscore/hyphen naming convention of
// scanned company documents into plain spaces before any text comparison.
var separatorReplacer = strings.NewReplacer("_", " ", "-", " ")

// synonymEntry maps a short form common in Brazilian procurement ("cnd",
// "fgts") to the full phrases that spell it out in notices and filenames.
// An entry only participates when the requirement mentions either form.
type synonymEntry struct {
	abbrev   string
	synonyms []string
}

var synonymTable = []synonymEntry{
	{"cnd", []string{"certidão negativa", "certidão negativa de débitos"}},
	{"cndt", []string{"certidão negativa de débitos trabalhistas", "trabalhista"}},
	{"fgts", []string{"fundo de garantia", "crf", "certificado de regularidade"}},
	{"municipal", []string{"prefeitura", "iss"}},
	{"estadual", []string{"sefaz", "icms", "estado"}},
	{"federal", []string{"receita federal", "união", "pgfn"}},
	{"contrato social", []string{"ato constitutivo", "contrato de sociedade"}},
	{"registro comercial", []string{"junta comercial"}},
	{"cnpj", []string{"cadastro nacional", "comprovante de inscrição"}},
	{"falência", []string{"concordata", "recuperação judicial"}},
	{"cível", []string{"ações cíveis", "distribuição"}},
	{"atestado", []string{"capacidade técnica", "acervo técnico"}},
}

// pairRule boosts a known requirement/document family. Requirement patterns
// keep their accents (requirement names come from notice text), document
// patterns do not (filenames rarely carry accents).
type pairRule struct {
	req   []string
	doc   []string
	boost float64
}

// exactPairs is ordered: only the first matching row fires, so the specific
// families come before the generic federal/estadual/municipal rows, which
// are mutually exclusive and must never stack.
var exactPairs = []pairRule{
	{[]string{"cnpj"}, []string{"cnpj", "comprovante cnpj"}, 0.70},
	{[]string{"contrato social", "registro comercial", "ato constitutivo"}, []string{"contrato social"}, 0.70},
	{[]string{"falência", "falencia", "concordata"}, []string{"falencia", "concordata"}, 0.80},
	{[]string{"cível", "civel"}, []string{"civel", "civil"}, 0.80},
	{[]string{"trabalhista", "cndt"}, []string{"trabalhista", "cndt"}, 0.70},
	{[]string{"fgts", "crf"}, []string{"fgts", "crf"}, 0.70},
	{[]string{"atestado", "capacidade"}, []string{"atestado", "acervo"}, 0.70},
	{[]string{"balanço", "balanco", "patrimonial"}, []string{"balanco", "patrimonial"}, 0.70},
	{[]string{"alvará", "alvara"}, []string{"alvara", "funcionamento"}, 0.70},
	{[]string{"sanitári", "sanitari"}, []string{"sanitaria", "dispensa"}, 0.70},
	{[]string{"federal"}, []string{"federal"}, 0.70},
	{[]string{"estadual"}, []string{"estadual"}, 0.70},
	{[]string{"municipal"}, []string{"municipal"}, 0.70},
}

// penaltyRule suppresses a cross-type match: a requirement clearly of one
// family paired with a document clearly of another. docExclude lists terms
// whose presence proves the document is of the requirement's own family and
// vetoes the row (a "cnd de falência" file is not a generic CND).
type penaltyRule struct {
	req        []string
	doc        []string
	docExclude []string
	penalty    float64
}

// mismatchPenalties all stack, unlike exactPairs. A single row is steep
// enough to sink an otherwise plausible score below the match threshold.
var mismatchPenalties = []penaltyRule{
	{[]string{"cnpj"}, []string{"contrato", "social", "estatuto", "ata", "falencia", "civel", "cnd"}, nil, -0.9},
	{[]string{"contrato", "social"}, []string{"cnpj", "certidao", "cnd", "fgts", "trabalhista", "falencia", "civel"}, nil, -0.9},
	{[]string{"registro comercial"}, []string{"cnpj", "certidao", "cnd", "fgts", "trabalhista", "falencia", "civel"}, nil, -0.9},
	{[]string{"falência", "falencia", "concordata"}, []string{"cnd", "debito", "fgts", "trabalhista", "federal", "estadual", "municipal", "civel"}, []string{"falencia", "concordata"}, -0.9},
	{[]string{"cível", "civel"}, []string{"trabalhista", "fgts", "falencia", "federal", "estadual", "municipal"}, []string{"civel"}, -0.9},
	{[]string{"fgts"}, []string{"civel", "falencia", "cnpj", "contrato", "estadual", "municipal"}, nil, -0.9},
	{[]string{"trabalhista", "cndt"}, []string{"civel", "falencia", "cnpj", "contrato", "fgts", "federal", "estadual", "municipal"}, []string{"trabalhista"}, -0.9},
	{[]string{"federal"}, []string{"estadual", "municipal"}, nil, -0.95},
	{[]string{"estadual"}, []string{"federal", "municipal"}, nil, -0.95},
	{[]string{"municipal"}, []string{"federal", "estadual"}, nil, -0.95},
	{[]string{"federal", "estadual", "municipal"}, []string{"civel", "falencia", "fgts", "trabalhista"}, nil, -0.9},
}

// Score rates how well a classified document satisfies a requirement,
// returning a value in [0, 1]. Bonuses and penalties accumulate, the sum is
// scaled by the document's classification confidence and clamped. The
// function is deterministic and does no I/O.
func Score(req model.Requirement, doc model.ClassifiedDocument) float64 {
	reqName := strings.ToLower(req.Name)
	docType := strings.ToLower(doc.DocumentType)
	fileNorm := separatorReplacer.Replace(strings.ToLower(doc.FileName))

	score := 0.0

	// Category agreement is the strongest generic signal.
	if req.Category == doc.Category {
		score += 0.5
	}

	score += synonymScore(reqName, docType, fileNorm)
	score += jaccardScore(reqName, docType, fileNorm)
	score += containmentScore(reqName, docType, fileNorm)
	score += exactScore(separatorReplacer.Replace(reqName), bareFilename(doc.FileName))
	score += pairBoost(reqName, fileNorm)
	score += mismatchPenalty(reqName, fileNorm)

	score *= doc.Confidence

	return clamp01(score)
}

// bareFilename lowercases a filename, strips its extension and flattens
// separators, producing the form compared against the requirement name for
// the exact-match bonus.
func bareFilename(name string) string {
	lower := strings.ToLower(name)
	return separatorReplacer.Replace(strings.TrimSuffix(lower, filepath.Ext(lower)))
}

// synonymScore walks the synonym table. Per gated entry: the short form in
// the document text is worth 0.35, a full phrase 0.30, and a full phrase in
// the filename reinforces a short-form requirement by a further 0.25, at
// most once per entry.
func synonymScore(reqName, docType, fileNorm string) float64 {
	total := 0.0
	for _, e := range synonymTable {
		if !strings.Contains(reqName, e.abbrev) && !containsAny(reqName, e.synonyms) {
			continue
		}
		switch {
		case strings.Contains(fileNorm, e.abbrev) || strings.Contains(docType, e.abbrev):
			total += 0.35
		case containsAny(fileNorm, e.synonyms) || containsAny(docType, e.synonyms):
			total += 0.30
		}
		if strings.Contains(reqName, e.abbrev) && containsAny(fileNorm, e.synonyms) {
			total += 0.25
		}
	}
	return total
}

// jaccardScore computes keyword-set overlap between the requirement name
// and the union of document type and filename tokens, scaled by 0.3.
func jaccardScore(reqName, docType, fileNorm string) float64 {
	reqTokens := tokens(reqName)
	docTokens := tokens(docType)
	for t := range tokens(fileNorm) {
		docTokens[t] = true
	}
	if len(reqTokens) == 0 || len(docTokens) == 0 {
		return 0
	}
	inter := 0
	for t := range reqTokens {
		if docTokens[t] {
			inter++
		}
	}
	union := len(reqTokens) + len(docTokens) - inter
	return float64(inter) / float64(union) * 0.3
}

// containmentScore rewards one name appearing inside the other: 0.2 for
// requirement/type containment either way, 0.25 for the whole requirement
// name inside the filename, falling back to 0.15 when only an individual
// requirement keyword longer than three characters appears there.
func containmentScore(reqName, docType, fileNorm string) float64 {
	total := 0.0
	if reqName != "" && docType != "" &&
		(strings.Contains(docType, reqName) || strings.Contains(reqName, docType)) {
		total += 0.2
	}
	switch {
	case reqName != "" && strings.Contains(fileNorm, reqName):
		total += 0.25
	default:
		for t := range tokens(reqName) {
			if len(t) > 3 && strings.Contains(fileNorm, t) {
				total += 0.15
				break
			}
		}
	}
	return total
}

// exactScore compares the flattened requirement name against the flattened
// extension-free filename: identity is worth 0.50, containment either way
// 0.20.
func exactScore(reqNorm, fileBare string) float64 {
	if reqNorm == "" || fileBare == "" {
		return 0
	}
	if fileBare == reqNorm {
		return 0.50
	}
	if strings.Contains(fileBare, reqNorm) || strings.Contains(reqNorm, fileBare) {
		return 0.20
	}
	return 0
}

// pairBoost returns the boost of the first exact-pair row whose requirement
// and document patterns both hit, or zero.
func pairBoost(reqName, fileNorm string) float64 {
	for _, p := range exactPairs {
		if containsAny(reqName, p.req) && containsAny(fileNorm, p.doc) {
			return p.boost
		}
	}
	return 0
}

// mismatchPenalty sums every penalty row triggered by the pair, honoring
// each row's exclusion terms.
func mismatchPenalty(reqName, fileNorm string) float64 {
	total := 0.0
	for _, p := range mismatchPenalties {
		if !containsAny(reqName, p.req) || !containsAny(fileNorm, p.doc) {
			continue
		}
		if containsAny(fileNorm, p.docExclude) {
			continue
		}
		total += p.penalty
	}
	return total
}

// tokens splits an already lowercased string on whitespace, underscores and
// hyphens into a set. Unlike normalize.Tokens it keeps short tokens, since
// abbreviations like "cnd" carry most of the signal here.
func tokens(s string) map[string]bool {
	set := make(map[string]bool)
	for _, f := range strings.Fields(separatorReplacer.Replace(s)) {
		set[f] = true
	}
	return set
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
