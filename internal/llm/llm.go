// Package llm abstracts the language model backend used for notice analysis
// and document classification. Callers receive a Backend they can lose at any
// moment: every operation degrades to rule-based fallbacks when the backend
// reports ErrUnavailable.
package llm

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/licitaflow/compliance-cli/internal/config"
	"github.com/licitaflow/compliance-cli/internal/model"
	"github.com/licitaflow/compliance-cli/pkg/anthropic"
	"github.com/licitaflow/compliance-cli/pkg/ollama"
)

var (
	// ErrUnavailable signals the backend cannot serve requests right now.
	// Callers fall back to rule-based behavior.
	ErrUnavailable = errors.New("llm: backend unavailable")

	// ErrMalformedOutput signals the model responded but produced output
	// that could not be used.
	ErrMalformedOutput = errors.New("llm: malformed output")
)

// Request is a single completion request.
type Request struct {
	System      string
	Prompt      string
	Model       string // override; empty uses the backend default
	MaxTokens   int
	Temperature float64
	ForceJSON   bool // honored by backends with a native JSON output mode
}

// Response is the raw completion output plus usage accounting.
type Response struct {
	Text  string
	Model string
	Usage model.TokenUsage
}

// BatchItem pairs a request with a correlation ID for batch completion.
type BatchItem struct {
	ID      string
	Request Request
}

// Backend runs completions.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
	// CompleteBatch runs many requests and returns responses keyed by item
	// ID. Items that failed are absent from the result; a non-nil error
	// means the batch as a whole could not run.
	CompleteBatch(ctx context.Context, items []BatchItem) (map[string]*Response, error)
}

// New creates the Backend selected by configuration, wrapped with retry and
// circuit breaker protection. The "none" backend returns a nil Backend,
// which callers treat as rules-only operation.
func New(cfg *config.Config) (Backend, error) {
	var inner Backend

	switch cfg.LLM.Backend {
	case "anthropic":
		client := anthropic.NewClient(cfg.Anthropic.Key)
		inner = NewAnthropic(client, cfg.Anthropic, cfg.LLM)
	case "ollama":
		client := ollama.NewClient(
			ollama.WithBaseURL(cfg.Ollama.BaseURL),
			ollama.WithModel(cfg.Ollama.Model),
			ollama.WithRateLimit(cfg.Ollama.RPS),
		)
		inner = NewOllama(client)
	case "none", "":
		return nil, nil
	default:
		return nil, eris.Errorf("llm: unknown backend %q", cfg.LLM.Backend)
	}

	return NewResilient(inner, cfg.LLM.Retry, cfg.LLM.Breaker), nil
}
