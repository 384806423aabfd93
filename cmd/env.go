package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/licitaflow/compliance-cli/internal/corpus"
	"github.com/licitaflow/compliance-cli/internal/llm"
	"github.com/licitaflow/compliance-cli/internal/pdftext"
	"github.com/licitaflow/compliance-cli/internal/pipeline"
	"github.com/licitaflow/compliance-cli/internal/store"
)

// pipelineEnv holds the store, the shared collaborators, and the pipeline
// needed by the analyze and serve commands.
type pipelineEnv struct {
	Store    store.Store
	Backend  llm.Backend // nil when llm.backend is "none"
	Texts    pdftext.Extractor
	Corpus   *corpus.Corpus
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates the config for the given mode, sets up the store,
// the LLM backend, and the extraction chain, and builds the Pipeline.
// Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	backend, err := initBackend()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	texts, err := pdftext.NewExtractor(cfg.PDFText)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "init pdf extractor")
	}

	corp := loadCorpus()

	p := pipeline.New(cfg, st, backend, texts, corp)

	return &pipelineEnv{
		Store:    st,
		Backend:  backend,
		Texts:    texts,
		Corpus:   corp,
		Pipeline: p,
	}, nil
}

// initBackend builds the configured LLM backend. A nil backend means
// rules-only operation, which every stage supports.
func initBackend() (llm.Backend, error) {
	backend, err := llm.New(cfg)
	if err != nil {
		return nil, eris.Wrap(err, "init llm backend")
	}
	if backend == nil {
		zap.L().Warn("no llm backend configured, extraction and classification run rules-only")
	} else {
		zap.L().Info("llm backend ready", zap.String("backend", backend.Name()))
	}
	return backend, nil
}

// loadCorpus loads few-shot examples from the configured path. A missing or
// unreadable path degrades to the builtin corpus rather than failing the
// command.
func loadCorpus() *corpus.Corpus {
	path := cfg.Corpus.Path
	if path == "" {
		return corpus.Builtin()
	}

	info, err := os.Stat(path)
	if err != nil {
		zap.L().Warn("corpus path not readable, using builtin examples",
			zap.String("path", path),
			zap.Error(err),
		)
		return corpus.Builtin()
	}

	var (
		c      *corpus.Corpus
		loadFn string
	)
	if info.IsDir() {
		c, err = corpus.LoadDir(path)
		loadFn = "dir"
	} else {
		c, err = corpus.Load(path)
		loadFn = "file"
	}
	if err != nil {
		zap.L().Warn("corpus load failed, using builtin examples",
			zap.String("path", path),
			zap.String("kind", loadFn),
			zap.Error(err),
		)
		return corpus.Builtin()
	}

	zap.L().Info("corpus loaded", zap.String("path", path), zap.Int("examples", c.Len()))
	return c
}

// extractModelFor returns the model override for requirement extraction.
// Only the anthropic backend understands the configured model names; other
// backends keep their own default.
func extractModelFor(backend llm.Backend) string {
	if backend != nil && backend.Name() == "anthropic" {
		return cfg.Anthropic.ExtractModel
	}
	return ""
}
