// Package classify assigns a procurement category and document type to each
// company document. Classification degrades through three strategies: the
// configured language model, content rules over the extracted text, and
// finally filename keywords. A document always classifies; only the security
// gate rejects files.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/licitaflow/compliance-cli/internal/config"
	"github.com/licitaflow/compliance-cli/internal/llm"
	"github.com/licitaflow/compliance-cli/internal/model"
	"github.com/licitaflow/compliance-cli/internal/normalize"
	"github.com/licitaflow/compliance-cli/internal/pdftext"
	"github.com/licitaflow/compliance-cli/internal/security"
)

const (
	contentRuleConfidence = 0.7
	filenameConfidence    = 0.6
	noMatchConfidence     = 0.3
	// A content-rule miss falls back to filename keywords; the presence of
	// unrecognized text lowers trust in the filename signal.
	filenameFallbackScale = 0.8

	defaultContentChars  = 2000
	defaultWorkers       = 4
	defaultMaxBatchFiles = 50

	classifyMaxTokens   = 500
	classifyTemperature = 0.1
)

const classifySystemPrompt = `You are a document analyst for Brazilian public procurement (licitações). Classify company documents into exactly one of these categories: legal_qualification, tax_compliance, technical_qualification, economic_qualification, commercial_proposal, other. Respond with a valid JSON object: {"document_type": "<human-readable type, e.g. Certidão Negativa de Débitos Federais>", "category": "<category>", "confidence": <0.0-1.0>}`

const classifyUserPrompt = `Filename: %s

Document content (first %d chars):
%s`

// Classifier runs the document classification pipeline. A nil backend means
// rules-only operation.
type Classifier struct {
	backend         llm.Backend
	texts           pdftext.Extractor
	files           *security.Validator
	cfg             config.ClassifyConfig
	maxIssuanceDays int
	now             func() time.Time
}

// New builds a Classifier. maxIssuanceDays bounds the issuance-window
// validator for judicial certificates (0 uses the 90-day default).
func New(backend llm.Backend, texts pdftext.Extractor, files *security.Validator, cfg config.ClassifyConfig, maxIssuanceDays int) *Classifier {
	return &Classifier{
		backend:         backend,
		texts:           texts,
		files:           files,
		cfg:             cfg,
		maxIssuanceDays: maxIssuanceDays,
		now:             time.Now,
	}
}

// ClassifyFile runs the full single-document pipeline: security gate, text
// extraction, classification, expiration attachment. Only the security gate
// produces an error; everything after it degrades.
func (c *Classifier) ClassifyFile(ctx context.Context, path string) (model.ClassifiedDocument, model.TokenUsage, error) {
	var usage model.TokenUsage

	if err := c.files.ValidateFile(path); err != nil {
		return model.ClassifiedDocument{}, usage, eris.Wrapf(err, "classify: validate %s", filepath.Base(path))
	}

	name := filepath.Base(path)
	text := c.extractText(ctx, path)
	doc := c.classify(ctx, name, path, text, &usage)
	doc.TextContent = text
	c.attachExpiration(&doc, text)

	zap.L().Info("classify: classified document",
		zap.String("file", name),
		zap.String("category", string(doc.Category)),
		zap.String("method", doc.Method),
		zap.Float64("confidence", doc.Confidence),
	)
	return doc, usage, nil
}

func (c *Classifier) extractText(ctx context.Context, path string) string {
	res, err := c.texts.Extract(ctx, path)
	if err != nil {
		zap.L().Warn("classify: text extraction failed, classifying by filename",
			zap.String("file", filepath.Base(path)),
			zap.Error(err),
		)
		return ""
	}
	return res.Text
}

func (c *Classifier) classify(ctx context.Context, name, path, text string, usage *model.TokenUsage) model.ClassifiedDocument {
	if strings.TrimSpace(text) == "" {
		return c.classifyFilename(name, path)
	}

	if c.backend != nil {
		doc, err := c.classifyLLM(ctx, name, path, text, usage)
		if err == nil {
			return doc
		}
		zap.L().Warn("classify: backend classification failed, falling back to content rules",
			zap.String("file", name),
			zap.Error(err),
		)
	}
	return c.classifyContent(name, path, text)
}

func (c *Classifier) classifyLLM(ctx context.Context, name, path, text string, usage *model.TokenUsage) (model.ClassifiedDocument, error) {
	resp, err := c.backend.Complete(ctx, c.request(name, text))
	if err != nil {
		return model.ClassifiedDocument{}, err
	}
	usage.Add(resp.Usage)
	return parseClassification(name, path, resp.Text)
}

func (c *Classifier) request(name, text string) llm.Request {
	limit := c.contentChars()
	if len(text) > limit {
		text = text[:limit]
	}
	return llm.Request{
		System:      classifySystemPrompt,
		Prompt:      fmt.Sprintf(classifyUserPrompt, name, limit, text),
		MaxTokens:   classifyMaxTokens,
		Temperature: classifyTemperature,
		ForceJSON:   true,
	}
}

// parseClassification validates the backend's JSON. An unknown category
// coerces to other with halved confidence rather than failing.
func parseClassification(name, path, raw string) (model.ClassifiedDocument, error) {
	var result struct {
		DocumentType string  `json:"document_type"`
		Category     string  `json:"category"`
		Confidence   float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(llm.CleanJSON(raw)), &result); err != nil {
		return model.ClassifiedDocument{}, fmt.Errorf("classify: parse classification: %w: %w", llm.ErrMalformedOutput, err)
	}

	if result.DocumentType == "" {
		result.DocumentType = "Documento não identificado"
	}
	if _, ok := model.ParseCategory(result.Category); !ok {
		zap.L().Warn("classify: backend returned unknown category",
			zap.String("file", name),
			zap.String("category", result.Category),
		)
	}
	return model.NewClassifiedDocument(name, path, result.DocumentType, result.Category, result.Confidence, model.ClassificationMethodLLM), nil
}

// classifyContent applies ordered content rules on folded text; the first
// hit wins. A miss falls back to filename keywords at reduced confidence.
func (c *Classifier) classifyContent(name, path, text string) model.ClassifiedDocument {
	folded := normalize.Fold(text)

	if containsAny(folded, "contrato social", "estatuto", "requerimento de empresario", "certificado da condicao de microempreendedor") {
		return ruleDoc(name, path, "Contrato Social", model.CategoryLegal)
	}
	if strings.Contains(folded, "certidao") {
		switch {
		case strings.Contains(folded, "fgts"):
			return ruleDoc(name, path, "Certidão de Regularidade do FGTS", model.CategoryTax)
		case strings.Contains(folded, "trabalhista"):
			return ruleDoc(name, path, "Certidão Negativa de Débitos Trabalhistas", model.CategoryTax)
		case containsAny(folded, "tributo", "fazenda", "inss", "debito"):
			return ruleDoc(name, path, "Certidão de Regularidade Fiscal", model.CategoryTax)
		}
	}
	if strings.Contains(folded, "atestado") && containsAny(folded, "capacidade", "tecnic") {
		return ruleDoc(name, path, "Atestado de Capacidade Técnica", model.CategoryTechnical)
	}
	if containsAny(folded, "balanco", "demonstracao contabil", "demonstracoes financeiras") {
		return ruleDoc(name, path, "Demonstração Contábil / Balanço", model.CategoryEconomic)
	}

	doc := c.classifyFilename(name, path)
	doc.Confidence *= filenameFallbackScale
	return doc
}

func ruleDoc(name, path, docType string, category model.Category) model.ClassifiedDocument {
	return model.ClassifiedDocument{
		FileName:     name,
		FilePath:     path,
		DocumentType: docType,
		Category:     category,
		Confidence:   contentRuleConfidence,
		Method:       model.ClassificationMethodContent,
	}
}

// filenameTable maps categories to filename keywords, checked in category
// order; the first category with any hit wins.
var filenameTable = []struct {
	category model.Category
	keywords []string
}{
	{model.CategoryLegal, []string{"cnpj", "contrato_social", "estatuto", "ata", "procuracao", "rg", "cpf"}},
	{model.CategoryTax, []string{"cnd", "certidao", "fgts", "crf", "inss", "trabalhista", "cndt", "federal", "estadual", "municipal", "divida"}},
	{model.CategoryTechnical, []string{"atestado", "capacidade", "tecnica", "cat", "acervo", "alvara"}},
	{model.CategoryEconomic, []string{"balanco", "patrimonial", "dre", "demonstracao", "falencia", "concordata", "recuperacao"}},
	{model.CategoryCommercial, []string{"proposta", "orcamento", "preco"}},
}

func (c *Classifier) classifyFilename(name, path string) model.ClassifiedDocument {
	folded := normalize.Fold(name)

	for _, rule := range filenameTable {
		for _, kw := range rule.keywords {
			if strings.Contains(folded, kw) {
				return model.ClassifiedDocument{
					FileName:     name,
					FilePath:     path,
					DocumentType: name,
					Category:     rule.category,
					Confidence:   filenameConfidence,
					Method:       model.ClassificationMethodFilename,
				}
			}
		}
	}

	return model.ClassifiedDocument{
		FileName:     name,
		FilePath:     path,
		DocumentType: name,
		Category:     model.CategoryOther,
		Confidence:   noMatchConfidence,
		Method:       model.ClassificationMethodFilename,
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func (c *Classifier) contentChars() int {
	if c.cfg.ContentChars > 0 {
		return c.cfg.ContentChars
	}
	return defaultContentChars
}

func (c *Classifier) workers() int {
	if c.cfg.Workers > 0 {
		return c.cfg.Workers
	}
	return defaultWorkers
}

func (c *Classifier) batchLimit() int {
	if c.cfg.MaxBatchFiles > 0 {
		return c.cfg.MaxBatchFiles
	}
	return defaultMaxBatchFiles
}
