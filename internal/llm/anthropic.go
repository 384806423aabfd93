package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/licitaflow/compliance-cli/internal/config"
	"github.com/licitaflow/compliance-cli/internal/model"
	"github.com/licitaflow/compliance-cli/pkg/anthropic"
)

// maxDirectConcurrency limits concurrent CreateMessage calls when a batch
// runs below the batch API threshold.
const maxDirectConcurrency = 10

// anthropicBackend implements Backend on top of the Anthropic API.
type anthropicBackend struct {
	client anthropic.Client
	cfg    config.AnthropicConfig
	llmCfg config.LLMConfig
}

// NewAnthropic creates an Anthropic-backed Backend.
func NewAnthropic(client anthropic.Client, cfg config.AnthropicConfig, llmCfg config.LLMConfig) Backend {
	return &anthropicBackend{client: client, cfg: cfg, llmCfg: llmCfg}
}

func (b *anthropicBackend) Name() string { return "anthropic" }

func (b *anthropicBackend) Complete(ctx context.Context, req Request) (*Response, error) {
	resp, err := b.client.CreateMessage(ctx, b.toMessageRequest(req))
	if err != nil {
		return nil, fmt.Errorf("llm: anthropic complete: %w: %w", ErrUnavailable, err)
	}
	return fromMessageResponse(resp)
}

func (b *anthropicBackend) CompleteBatch(ctx context.Context, items []BatchItem) (map[string]*Response, error) {
	if len(items) == 0 {
		return map[string]*Response{}, nil
	}

	// Small batches run as bounded-concurrency direct calls: the batch
	// API's turnaround is not worth it for a handful of documents.
	if b.cfg.NoBatch || len(items) < b.cfg.SmallBatchThreshold {
		return b.completeDirect(ctx, items)
	}

	out := make(map[string]*Response, len(items))
	for start := 0; start < len(items); start += b.maxBatchSize() {
		end := start + b.maxBatchSize()
		if end > len(items) {
			end = len(items)
		}
		if err := b.completeChunk(ctx, items[start:end], out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (b *anthropicBackend) completeDirect(ctx context.Context, items []BatchItem) (map[string]*Response, error) {
	out := make(map[string]*Response, len(items))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxDirectConcurrency)

	for _, item := range items {
		g.Go(func() error {
			resp, err := b.Complete(gctx, item.Request)
			if err != nil {
				zap.L().Warn("anthropic: direct batch item failed",
					zap.String("id", item.ID),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			out[item.ID] = resp
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *anthropicBackend) completeChunk(ctx context.Context, items []BatchItem, out map[string]*Response) error {
	// When every item shares the same system prompt, warm the prompt cache
	// with a primer request so the batch hits the cached prefix.
	if system := sharedSystem(items); system != "" {
		blocks := anthropic.BuildCachedSystemBlocks(system)
		primer := anthropic.MessageRequest{
			Model:     b.modelFor(items[0].Request),
			MaxTokens: 16,
			System:    blocks,
			Messages:  []anthropic.Message{{Role: "user", Content: "ok"}},
		}
		if _, err := anthropic.PrimerRequest(ctx, b.client, primer); err != nil {
			zap.L().Warn("anthropic: primer request failed, batch proceeds uncached", zap.Error(err))
		}
	}

	req := anthropic.BatchRequest{Requests: make([]anthropic.BatchRequestItem, len(items))}
	for i, item := range items {
		req.Requests[i] = anthropic.BatchRequestItem{
			CustomID: item.ID,
			Params:   b.toMessageRequest(item.Request),
		}
	}

	batch, err := b.client.CreateBatch(ctx, req)
	if err != nil {
		return fmt.Errorf("llm: anthropic create batch: %w: %w", ErrUnavailable, err)
	}

	polled, err := anthropic.PollBatch(ctx, b.client, batch.ID)
	if err != nil {
		return fmt.Errorf("llm: anthropic poll batch: %w: %w", ErrUnavailable, err)
	}

	iter, err := b.client.GetBatchResults(ctx, polled.ID)
	if err != nil {
		return fmt.Errorf("llm: anthropic batch results: %w: %w", ErrUnavailable, err)
	}

	results, err := anthropic.CollectBatchResults(iter)
	if err != nil {
		return fmt.Errorf("llm: anthropic collect batch: %w: %w", ErrUnavailable, err)
	}

	for id, msg := range results {
		resp, err := fromMessageResponse(msg)
		if err != nil {
			zap.L().Warn("anthropic: batch item unusable",
				zap.String("id", id),
				zap.Error(err),
			)
			continue
		}
		out[id] = resp
	}
	return nil
}

func (b *anthropicBackend) toMessageRequest(req Request) anthropic.MessageRequest {
	temp := req.Temperature
	msgReq := anthropic.MessageRequest{
		Model:       b.modelFor(req),
		MaxTokens:   int64(b.maxTokensFor(req)),
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: &temp,
	}
	if req.System != "" {
		msgReq.System = []anthropic.SystemBlock{{Text: req.System}}
	}
	return msgReq
}

func (b *anthropicBackend) modelFor(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return b.cfg.ClassifyModel
}

func (b *anthropicBackend) maxTokensFor(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return b.llmCfg.MaxTokens
}

func (b *anthropicBackend) maxBatchSize() int {
	if b.cfg.MaxBatchSize > 0 {
		return b.cfg.MaxBatchSize
	}
	return 100
}

// sharedSystem returns the system prompt when every item carries the same
// non-empty one, otherwise "".
func sharedSystem(items []BatchItem) string {
	if len(items) == 0 || items[0].Request.System == "" {
		return ""
	}
	system := items[0].Request.System
	for _, item := range items[1:] {
		if item.Request.System != system {
			return ""
		}
	}
	return system
}

func fromMessageResponse(msg *anthropic.MessageResponse) (*Response, error) {
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("llm: anthropic empty completion: %w", ErrMalformedOutput)
	}

	return &Response{
		Text:  text,
		Model: msg.Model,
		Usage: model.TokenUsage{
			InputTokens:         int(msg.Usage.InputTokens),
			OutputTokens:        int(msg.Usage.OutputTokens),
			CacheCreationTokens: int(msg.Usage.CacheCreationInputTokens),
			CacheReadTokens:     int(msg.Usage.CacheReadInputTokens),
			Cost:                msg.Usage.EstimateCost(msg.Model),
		},
	}, nil
}
