package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/licitaflow/compliance-cli/internal/model"
	"github.com/licitaflow/compliance-cli/pkg/ollama"
)

// ollamaBackend implements Backend on top of a local Ollama server. There is
// no batch API; CompleteBatch runs items sequentially, which matches how a
// single-GPU inference server processes work anyway.
type ollamaBackend struct {
	client ollama.Client
}

// NewOllama creates an Ollama-backed Backend.
func NewOllama(client ollama.Client) Backend {
	return &ollamaBackend{client: client}
}

func (b *ollamaBackend) Name() string { return "ollama" }

func (b *ollamaBackend) Complete(ctx context.Context, req Request) (*Response, error) {
	genReq := ollama.GenerateRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		System: req.System,
	}
	if req.ForceJSON {
		genReq.Format = "json"
	}

	temp := req.Temperature
	opts := ollama.Options{Temperature: &temp}
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		opts.NumPredict = &maxTokens
	}
	genReq.Options = &opts

	resp, err := b.client.Generate(ctx, genReq)
	if err != nil {
		return nil, fmt.Errorf("llm: ollama complete: %w: %w", ErrUnavailable, err)
	}
	if strings.TrimSpace(resp.Response) == "" {
		return nil, fmt.Errorf("llm: ollama empty completion: %w", ErrMalformedOutput)
	}

	return &Response{
		Text:  resp.Response,
		Model: resp.Model,
		Usage: model.TokenUsage{
			InputTokens:  resp.PromptEvalCount,
			OutputTokens: resp.EvalCount,
		},
	}, nil
}

func (b *ollamaBackend) CompleteBatch(ctx context.Context, items []BatchItem) (map[string]*Response, error) {
	out := make(map[string]*Response, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := b.Complete(ctx, item.Request)
		if err != nil {
			zap.L().Warn("ollama: batch item failed",
				zap.String("id", item.ID),
				zap.Error(err),
			)
			continue
		}
		out[item.ID] = resp
	}
	return out, nil
}
