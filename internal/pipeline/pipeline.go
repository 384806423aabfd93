// Package pipeline runs one compliance analysis end to end: notice text and
// requirement extraction, document classification, requirement matching, and
// report artifacts. Each stage is tracked as a store phase so a run can be
// inspected after the fact, and persistence failures degrade to warnings
// rather than sinking an otherwise healthy analysis.
package pipeline

import (
	"context"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/licitaflow/compliance-cli/internal/classify"
	"github.com/licitaflow/compliance-cli/internal/config"
	"github.com/licitaflow/compliance-cli/internal/corpus"
	"github.com/licitaflow/compliance-cli/internal/llm"
	"github.com/licitaflow/compliance-cli/internal/match"
	"github.com/licitaflow/compliance-cli/internal/metrics"
	"github.com/licitaflow/compliance-cli/internal/model"
	"github.com/licitaflow/compliance-cli/internal/notice"
	"github.com/licitaflow/compliance-cli/internal/pdftext"
	"github.com/licitaflow/compliance-cli/internal/report"
	"github.com/licitaflow/compliance-cli/internal/security"
	"github.com/licitaflow/compliance-cli/internal/store"
)

// Phase names as persisted with each run.
const (
	PhaseExtract  = "extract"
	PhaseClassify = "classify"
	PhaseMatch    = "match"
	PhaseReport   = "report"
)

// Request describes one analysis: the notice file, the directory holding the
// company documents, and an optional directory for report artifacts. An empty
// OutputDir skips the report phase.
type Request struct {
	NoticePath string `json:"notice_path"`
	DocsDir    string `json:"docs_dir"`
	OutputDir  string `json:"output_dir,omitempty"`
}

// Result is the in-memory outcome of a run. The same report and usage totals
// land in the store as the run result.
type Result struct {
	RunID     string                  `json:"run_id"`
	Report    *model.ComplianceReport `json:"report,omitempty"`
	Phases    []model.RunPhase        `json:"phases"`
	Usage     model.TokenUsage        `json:"usage"`
	OutputDir string                  `json:"output_dir,omitempty"`
}

// Pipeline wires the analysis stages together. The backend may be nil, in
// which case extraction and classification run rules-only.
type Pipeline struct {
	cfg     *config.Config
	store   store.Store
	backend llm.Backend
	texts   pdftext.Extractor
	corpus  *corpus.Corpus
}

// New creates a Pipeline. The file validator and the stage workers are built
// per run, rooted at the directories each request names.
func New(cfg *config.Config, st store.Store, backend llm.Backend, texts pdftext.Extractor, corp *corpus.Corpus) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		store:   st,
		backend: backend,
		texts:   texts,
		corpus:  corp,
	}
}

// Run executes the full analysis for one notice. Extract and classify
// failures fail the run; a report phase failure only marks that phase, since
// the analysis itself already succeeded.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	noticeName := NoticeName(req.NoticePath)
	log := zap.L().With(zap.String("notice", noticeName))
	log.Info("pipeline: starting analysis", zap.String("docs_dir", req.DocsDir))

	paths, err := ListPDFs(req.DocsDir)
	if err != nil {
		return nil, err
	}

	run, err := p.store.CreateRun(ctx, model.NoticeRef{Path: req.NoticePath, Name: noticeName}, len(paths))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	result := &Result{RunID: run.ID}
	start := time.Now()

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: update run status",
				zap.String("status", string(status)),
				zap.Error(statusErr),
			)
		}
	}

	trackPhase := func(name string, fn func(*model.PhaseResult) error) error {
		phase, phaseErr := p.store.CreatePhase(ctx, run.ID, name)
		if phaseErr != nil {
			log.Warn("pipeline: create phase", zap.String("phase", name), zap.Error(phaseErr))
		}

		res := &model.PhaseResult{}
		phaseStart := time.Now()
		fnErr := fn(res)
		res.DurationMS = time.Since(phaseStart).Milliseconds()

		status := model.PhaseStatusComplete
		if fnErr != nil {
			res.Error = fnErr.Error()
			status = model.PhaseStatusFailed
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", res.DurationMS),
				zap.Error(fnErr),
			)
		} else {
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", res.DurationMS),
				zap.Int("items", res.ItemsProcessed),
			)
		}

		if phase != nil {
			if completeErr := p.store.CompletePhase(ctx, phase.ID, res); completeErr != nil {
				log.Warn("pipeline: complete phase", zap.String("phase", name), zap.Error(completeErr))
			}
		}

		rp := model.RunPhase{RunID: run.ID, Name: name, Status: status, Result: res, StartedAt: phaseStart.UTC()}
		if phase != nil {
			rp.ID = phase.ID
			rp.StartedAt = phase.StartedAt
		}
		result.Phases = append(result.Phases, rp)
		return fnErr
	}

	fail := func(err error) (*Result, error) {
		if failErr := p.store.FailRun(ctx, run.ID, err.Error()); failErr != nil {
			log.Warn("pipeline: record run failure", zap.Error(failErr))
		}
		metrics.Default.RecordRun(string(model.RunStatusFailed))
		return result, err
	}

	// Stage workers are rooted at this request's directories so documents
	// validate wherever the caller keeps them.
	files := security.NewValidator(p.cfg.Security.MaxFileSizeMB, p.allowedDirs(req)...)
	notices := notice.New(p.backend, p.corpus, p.cfg.Extract, p.extractModel(), p.cfg.Corpus.TopK)
	classifier := classify.New(p.backend, p.texts, files, p.cfg.Classify, p.cfg.Match.MaxIssuanceDays)
	comparator := match.NewComparator(p.cfg.Match)

	var (
		requirements []model.Requirement
		totalUsage   model.TokenUsage
	)

	setStatus(model.RunStatusExtracting)
	if phaseErr := trackPhase(PhaseExtract, func(res *model.PhaseResult) error {
		if validateErr := files.ValidateFile(req.NoticePath); validateErr != nil {
			return validateErr
		}
		text, fromCache, textErr := p.noticeText(ctx, req.NoticePath)
		if textErr != nil {
			return textErr
		}
		reqs, strategy, usage := notices.Extract(ctx, text)
		requirements = reqs
		totalUsage.Add(usage)
		res.ItemsProcessed = len(reqs)
		res.TokensUsed = usage.Total()
		res.CostUSD = usage.Cost
		log.Info("pipeline: requirements extracted",
			zap.Int("requirements", len(reqs)),
			zap.String("strategy", strategy),
			zap.Bool("text_from_cache", fromCache),
		)
		return nil
	}); phaseErr != nil {
		return fail(eris.Wrap(phaseErr, "pipeline: extract phase"))
	}

	setStatus(model.RunStatusClassifying)
	var classified *classify.BatchResult
	if phaseErr := trackPhase(PhaseClassify, func(res *model.PhaseResult) error {
		br, batchErr := classifier.ClassifyBatch(ctx, paths)
		if batchErr != nil {
			return batchErr
		}
		classified = br
		totalUsage.Add(br.Usage)
		res.ItemsProcessed = len(br.Documents)
		res.ItemsFailed = len(br.Failures)
		res.TokensUsed = br.Usage.Total()
		res.CostUSD = br.Usage.Cost
		for _, doc := range br.Documents {
			metrics.Default.RecordClassification(string(doc.Category), doc.Method)
		}
		return nil
	}); phaseErr != nil {
		return fail(eris.Wrap(phaseErr, "pipeline: classify phase"))
	}

	setStatus(model.RunStatusMatching)
	var rep *model.ComplianceReport
	trackPhase(PhaseMatch, func(res *model.PhaseResult) error {
		rep = comparator.Compare(requirements, classified.Documents)
		rep.NoticeName = noticeName
		res.ItemsProcessed = len(rep.Matches)
		for _, m := range rep.Matches {
			metrics.Default.RecordMatch(string(m.Status))
		}
		return nil
	})
	result.Report = rep

	if req.OutputDir != "" {
		trackPhase(PhaseReport, func(res *model.PhaseResult) error {
			outDir, organizeErr := report.Organize(rep, req.OutputDir)
			if organizeErr != nil {
				return organizeErr
			}
			if xlsxErr := report.WriteXLSX(rep, filepath.Join(outDir, "relatorio.xlsx")); xlsxErr != nil {
				return xlsxErr
			}
			result.OutputDir = outDir
			return nil
		})
	}

	result.Usage = totalUsage
	runResult := &model.RunResult{
		Report:     rep,
		TokensUsed: totalUsage.Total(),
		CostUSD:    totalUsage.Cost,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if saveErr := p.store.UpdateRunResult(ctx, run.ID, runResult); saveErr != nil {
		log.Warn("pipeline: save run result", zap.Error(saveErr))
	}
	metrics.Default.RecordRun(string(model.RunStatusComplete))

	log.Info("pipeline: analysis complete",
		zap.String("run_id", run.ID),
		zap.Int("requirements", rep.Statistics.TotalRequirements),
		zap.Int("documents", rep.Statistics.TotalDocuments),
		zap.Float64("compliance_rate", rep.ComplianceRate()),
		zap.Int("tokens", totalUsage.Total()),
		zap.Float64("cost_usd", totalUsage.Cost),
	)
	return result, nil
}

// noticeText returns the notice text, serving from the extraction cache when
// the file hash is known and caching fresh extractions. Cache trouble never
// fails the run; a notice without a text layer does.
func (p *Pipeline) noticeText(ctx context.Context, path string) (string, bool, error) {
	hash, err := security.FileSHA256(path)
	if err != nil {
		return "", false, err
	}

	if cached, cacheErr := p.store.GetCachedText(ctx, hash); cacheErr != nil {
		zap.L().Warn("pipeline: text cache lookup failed", zap.Error(cacheErr))
	} else if cached != nil {
		zap.L().Debug("pipeline: notice text served from cache", zap.String("file", filepath.Base(path)))
		return cached.Content, true, nil
	}

	extracted, err := p.texts.Extract(ctx, path)
	if err != nil {
		return "", false, eris.Wrapf(err, "pipeline: extract text from %s", filepath.Base(path))
	}
	if !extracted.Success {
		return "", false, eris.Errorf("pipeline: no text layer in %s", filepath.Base(path))
	}
	zap.L().Debug("pipeline: notice text extracted",
		zap.String("file", filepath.Base(path)),
		zap.String("method", extracted.Method),
		zap.Int("chars", len(extracted.Text)),
		zap.String("preview", security.Redact(preview(extracted.Text))),
	)

	ttl := time.Duration(p.cfg.Store.CacheTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 720 * time.Hour
	}
	if cacheErr := p.store.SetCachedText(ctx, hash, extracted.Text, ttl); cacheErr != nil {
		zap.L().Warn("pipeline: text cache write failed", zap.Error(cacheErr))
	}
	return extracted.Text, false, nil
}

// preview truncates text for log output, backing off to a rune boundary.
// Notice text carries company identifiers, so callers redact the result.
func preview(text string) string {
	const max = 160
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

// allowedDirs roots file validation at the request's own directories plus
// anything configured explicitly.
func (p *Pipeline) allowedDirs(req Request) []string {
	dirs := []string{filepath.Dir(req.NoticePath), req.DocsDir}
	return append(dirs, p.cfg.Security.AllowedDirs...)
}

// extractModel returns the per-call model override for requirement
// extraction. Only the anthropic backend distinguishes the extraction model
// from the classification default.
func (p *Pipeline) extractModel() string {
	if p.backend != nil && p.backend.Name() == "anthropic" {
		return p.cfg.Anthropic.ExtractModel
	}
	return ""
}
