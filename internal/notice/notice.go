// Package notice extracts the document requirements a procurement notice
// (edital) imposes on bidders. The backend strategy asks the language model
// for a structured list, augmented with similar historical extractions; the
// rule strategy scans the text with a pattern table and is the fallback
// whenever no backend is configured or the backend fails. Extraction never
// fails: an empty requirement list is a valid outcome.
package notice

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/licitaflow/compliance-cli/internal/config"
	"github.com/licitaflow/compliance-cli/internal/corpus"
	"github.com/licitaflow/compliance-cli/internal/llm"
	"github.com/licitaflow/compliance-cli/internal/model"
)

// Extraction strategies reported in run metadata.
const (
	StrategyLLM   = "llm"
	StrategyRules = "rules"
)

const (
	defaultMaxTextChars = 15000
	defaultFewShotK     = 3

	// Characters of surrounding notice text captured around a pattern
	// match as the requirement context.
	contextBefore = 100
	contextAfter  = 250

	extractMaxTokens   = 4096
	extractTemperature = 0.1
)

const extractSystemPrompt = `You are a legal document analyst specialized in Brazilian public procurement (licitações). Analyze bid notices (editais) and extract ALL documents required from bidders. For each document identify its name, category (one of: legal_qualification, tax_compliance, technical_qualification, economic_qualification, commercial_proposal, other), a brief description, any specific requirements or conditions, and whether it is mandatory. Respond ONLY with a valid JSON object: {"documents": [{"name": "...", "category": "...", "description": "...", "requirements": "...", "mandatory": true}]}`

const extractUserPrompt = `Analyze the following bid notice and extract all required documents.

Bid Notice:
%s`

// rulePattern ties a notice-text pattern to the canonical requirement it
// evidences. Patterns are case-insensitive and tolerate both accented and
// unaccented spellings, since OCR output drops diacritics unpredictably.
type rulePattern struct {
	re        *regexp.Regexp
	name      string
	category  model.Category
	mandatory bool
}

var rulePatterns = []rulePattern{
	{
		re:        regexp.MustCompile(`(?i)contrato social|ato constitutivo|estatuto|documento de constitui[çc][ãa]o`),
		name:      "Contrato Social / Ato Constitutivo",
		category:  model.CategoryLegal,
		mandatory: true,
	},
	{
		re:        regexp.MustCompile(`(?i)registro comercial|inscri[çc][ãa]o comercial|junta comercial`),
		name:      "Registro Comercial",
		category:  model.CategoryLegal,
		mandatory: false,
	},
	{
		re:        regexp.MustCompile(`(?i)cnpj`),
		name:      "Comprovante de Inscrição CNPJ",
		category:  model.CategoryLegal,
		mandatory: true,
	},
	{
		re:        regexp.MustCompile(`(?i)certid[ãa]o.{0,30}federal|fazenda nacional|tributos federais|d[íi]vida ativa da uni[ãa]o`),
		name:      "CND Federal",
		category:  model.CategoryTax,
		mandatory: true,
	},
	{
		re:        regexp.MustCompile(`(?i)certid[ãa]o.{0,30}estadua(l|is)|fazenda estadual|tributos estaduais|d[ée]bitos estaduais|icms`),
		name:      "CND Estadual",
		category:  model.CategoryTax,
		mandatory: true,
	},
	{
		re:        regexp.MustCompile(`(?i)certid[ãa]o.{0,30}municipal|fazenda municipal|tributos municipais|\biss\b|issqn`),
		name:      "CND Municipal",
		category:  model.CategoryTax,
		mandatory: true,
	},
	{
		re:        regexp.MustCompile(`(?i)fgts|\bcrf\b`),
		name:      "Certificado de Regularidade do FGTS",
		category:  model.CategoryTax,
		mandatory: true,
	},
	{
		re:        regexp.MustCompile(`(?i)trabalhista|cndt`),
		name:      "CNDT - Certidão Negativa de Débitos Trabalhistas",
		category:  model.CategoryTax,
		mandatory: true,
	},
	{
		re:        regexp.MustCompile(`(?i)atestado.{0,40}capacidade|capacidade t[ée]cnica|acervo t[ée]cnico`),
		name:      "Atestado de Capacidade Técnica",
		category:  model.CategoryTechnical,
		mandatory: true,
	},
	{
		re:        regexp.MustCompile(`(?i)balan[çc]o patrimonial|demonstra[çc][õo]es cont[áa]beis`),
		name:      "Balanço Patrimonial",
		category:  model.CategoryEconomic,
		mandatory: true,
	},
	{
		re:        regexp.MustCompile(`(?i)fal[êe]ncia|concordata|recupera[çc][ãa]o judicial`),
		name:      "Certidão Negativa de Falência e Concordata",
		category:  model.CategoryEconomic,
		mandatory: true,
	},
	{
		re:        regexp.MustCompile(`(?i)proposta.{0,30}(comercial|de pre[çc]os?)`),
		name:      "Proposta Comercial",
		category:  model.CategoryCommercial,
		mandatory: true,
	},
}

// Extractor pulls requirements out of notice text. A nil backend means
// rules-only operation.
type Extractor struct {
	backend llm.Backend
	corpus  *corpus.Corpus
	cfg     config.ExtractConfig
	model   string
	topK    int
}

// New builds an Extractor. extractModel overrides the backend's default
// model for extraction calls; topK bounds the few-shot examples pulled from
// the corpus (0 uses the default of 3).
func New(backend llm.Backend, corp *corpus.Corpus, cfg config.ExtractConfig, extractModel string, topK int) *Extractor {
	return &Extractor{
		backend: backend,
		corpus:  corp,
		cfg:     cfg,
		model:   extractModel,
		topK:    topK,
	}
}

// Extract returns the requirements found in text, the strategy that produced
// them, and the backend token usage. The backend strategy runs first when
// configured; any backend or parse error logs and falls through to the rule
// strategy, so the caller never sees an extraction error. An empty
// requirement list is a valid result.
func (e *Extractor) Extract(ctx context.Context, text string) ([]model.Requirement, string, model.TokenUsage) {
	var usage model.TokenUsage

	if e.backend != nil {
		reqs, err := e.extractLLM(ctx, text, &usage)
		if err == nil {
			zap.L().Info("notice: extracted requirements",
				zap.String("strategy", StrategyLLM),
				zap.Int("requirements", len(reqs)),
			)
			return reqs, StrategyLLM, usage
		}
		zap.L().Warn("notice: backend extraction failed, falling back to rules",
			zap.Error(err),
		)
	}

	reqs := e.extractRules(text)
	zap.L().Info("notice: extracted requirements",
		zap.String("strategy", StrategyRules),
		zap.Int("requirements", len(reqs)),
	)
	return reqs, StrategyRules, usage
}

func (e *Extractor) extractLLM(ctx context.Context, text string, usage *model.TokenUsage) ([]model.Requirement, error) {
	resp, err := e.backend.Complete(ctx, e.request(text))
	if err != nil {
		return nil, err
	}
	usage.Add(resp.Usage)
	return parseExtraction(resp.Text)
}

func (e *Extractor) request(text string) llm.Request {
	limit := e.maxTextChars()
	if len(text) > limit {
		text = text[:limit]
	}

	prompt := fmt.Sprintf(extractUserPrompt, text)
	if block := e.fewShot(text); block != "" {
		prompt = block + "\n" + prompt
	}
	return llm.Request{
		System:      extractSystemPrompt,
		Prompt:      prompt,
		Model:       e.model,
		MaxTokens:   extractMaxTokens,
		Temperature: extractTemperature,
		ForceJSON:   true,
	}
}

// fewShot renders the corpus examples most similar to the notice. Best
// effort: an empty or missing corpus just means an unaugmented prompt.
func (e *Extractor) fewShot(text string) string {
	if e.corpus == nil || e.corpus.Len() == 0 {
		return ""
	}
	k := e.topK
	if k <= 0 {
		k = defaultFewShotK
	}
	return corpus.FewShotBlock(e.corpus.TopK(text, k))
}

// extractedDocument is the JSON shape the extraction prompt demands.
// Mandatory is a pointer so an omitted field defaults to true rather than
// false.
type extractedDocument struct {
	Name         string `json:"name"`
	Category     string `json:"category"`
	Description  string `json:"description"`
	Requirements string `json:"requirements"`
	Mandatory    *bool  `json:"mandatory"`
}

// parseExtraction validates the backend's JSON. Unknown categories coerce to
// other; a missing documents key is an empty extraction, not an error.
func parseExtraction(raw string) ([]model.Requirement, error) {
	var result struct {
		Documents []extractedDocument `json:"documents"`
	}
	if err := json.Unmarshal([]byte(llm.CleanJSON(raw)), &result); err != nil {
		return nil, fmt.Errorf("notice: parse extraction: %w: %w", llm.ErrMalformedOutput, err)
	}

	reqs := make([]model.Requirement, 0, len(result.Documents))
	for _, doc := range result.Documents {
		name := strings.TrimSpace(doc.Name)
		if name == "" {
			zap.L().Warn("notice: backend returned document without a name, skipping")
			continue
		}

		cat, ok := model.ParseCategory(doc.Category)
		if !ok {
			zap.L().Warn("notice: invalid category from backend, using other",
				zap.String("document", name),
				zap.String("category", doc.Category),
			)
		}

		mandatory := true
		if doc.Mandatory != nil {
			mandatory = *doc.Mandatory
		}

		reqs = append(reqs, model.Requirement{
			ID:          uuid.New().String(),
			Name:        name,
			Category:    cat,
			Description: strings.TrimSpace(doc.Description),
			Mandatory:   mandatory,
			Context:     strings.TrimSpace(doc.Requirements),
			Source:      model.RequirementSourceLLM,
		})
	}
	return reqs, nil
}

// extractRules scans the notice with the pattern table. Each canonical
// requirement is emitted at most once, with the text surrounding its first
// pattern match as context.
func (e *Extractor) extractRules(text string) []model.Requirement {
	reqs := make([]model.Requirement, 0, len(rulePatterns))
	seen := make(map[string]bool, len(rulePatterns))

	for _, row := range rulePatterns {
		if seen[row.name] {
			continue
		}
		loc := row.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		seen[row.name] = true

		reqs = append(reqs, model.Requirement{
			ID:          uuid.New().String(),
			Name:        row.name,
			Category:    row.category,
			Description: fmt.Sprintf("Documento identificado: %s", strings.ToLower(text[loc[0]:loc[1]])),
			Mandatory:   row.mandatory,
			Context:     contextWindow(text, loc[0], loc[1]),
			Source:      model.RequirementSourceRegex,
		})
	}

	if len(reqs) == 0 {
		zap.L().Warn("notice: no requirements identified by rule patterns")
	}
	return reqs
}

func (e *Extractor) maxTextChars() int {
	if e.cfg.MaxTextChars > 0 {
		return e.cfg.MaxTextChars
	}
	return defaultMaxTextChars
}

// contextWindow slices the notice text around a match, widening backwards and
// forwards without splitting a UTF-8 sequence.
func contextWindow(text string, start, end int) string {
	from := start - contextBefore
	if from < 0 {
		from = 0
	}
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}

	to := end + contextAfter
	if to > len(text) {
		to = len(text)
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	return strings.TrimSpace(text[from:to])
}
