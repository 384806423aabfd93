package anthropic

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultPollCap      = 15 * time.Second
	defaultPollTimeout  = 30 * time.Minute
)

type pollConfig struct {
	interval time.Duration
	cap      time.Duration
	timeout  time.Duration
}

// PollOption adjusts batch polling, mainly so tests can poll fast.
type PollOption func(*pollConfig)

// WithPollInterval sets the first wait between GetBatch calls.
func WithPollInterval(d time.Duration) PollOption {
	return func(c *pollConfig) { c.interval = d }
}

// WithPollCap bounds the grown wait.
func WithPollCap(d time.Duration) PollOption {
	return func(c *pollConfig) { c.cap = d }
}

// WithPollTimeout sets the overall deadline applied when ctx has none.
func WithPollTimeout(d time.Duration) PollOption {
	return func(c *pollConfig) { c.timeout = d }
}

// PollBatch calls GetBatch until the batch ends, waiting 2s and doubling up
// to 15s between calls. An expired or canceled batch returns the batch
// together with an error. When ctx carries no deadline a 30 minute one is
// applied.
func PollBatch(ctx context.Context, client Client, batchID string, opts ...PollOption) (*BatchResponse, error) {
	cfg := pollConfig{
		interval: defaultPollInterval,
		cap:      defaultPollCap,
		timeout:  defaultPollTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	for wait := cfg.interval; ; wait = nextWait(wait, cfg.cap) {
		batch, err := client.GetBatch(ctx, batchID)
		if err != nil {
			return nil, eris.Wrapf(err, "anthropic: poll batch %s", batchID)
		}

		switch batch.ProcessingStatus {
		case "ended":
			return batch, nil
		case "expired":
			return batch, eris.Errorf("anthropic: batch %s expired", batchID)
		case "canceling", "canceled":
			return batch, eris.Errorf("anthropic: batch %s canceled", batchID)
		}

		select {
		case <-ctx.Done():
			return nil, eris.Wrapf(ctx.Err(), "anthropic: poll batch %s timed out", batchID)
		case <-time.After(wait):
		}
	}
}

// nextWait doubles the wait up to the cap, then spreads it by up to 20%
// either way so concurrent pollers drift apart.
func nextWait(current, limit time.Duration) time.Duration {
	next := current * 2
	if next > limit {
		next = limit
	}
	jitter := 1 + (rand.Float64()*2-1)*0.2
	return time.Duration(float64(next) * jitter)
}

// CollectBatchResults drains iter and returns the succeeded responses keyed
// by custom ID. Failed items are logged and skipped; callers detect them as
// IDs missing from the map.
func CollectBatchResults(iter BatchResultIterator) (map[string]*MessageResponse, error) {
	defer iter.Close()

	succeeded := make(map[string]*MessageResponse)
	failed := 0
	for iter.Next() {
		item := iter.Item()
		if item.Type == "succeeded" && item.Message != nil {
			succeeded[item.CustomID] = item.Message
			continue
		}
		failed++
		zap.L().Warn("anthropic: batch item failed",
			zap.String("custom_id", item.CustomID),
			zap.String("type", item.Type),
		)
	}
	if err := iter.Err(); err != nil {
		return nil, eris.Wrap(err, "anthropic: collect batch results")
	}

	if failed > 0 {
		zap.L().Warn("anthropic: batch finished with failed items",
			zap.Int("succeeded", len(succeeded)),
			zap.Int("failed", failed),
		)
	}
	return succeeded, nil
}

// systemCacheTTL is the prompt-cache TTL requested for shared system blocks.
const systemCacheTTL = "1h"

// BuildCachedSystemBlocks wraps text in a single system block with a cache
// breakpoint, so a primer request followed by a batch reuses the cached
// prefix instead of paying for the shared prompt per item.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{{
		Text:         text,
		CacheControl: &CacheControl{TTL: systemCacheTTL},
	}}
}

// PrimerRequest warms the prompt cache with one sequential message before a
// batch is submitted. The response itself is usually discarded.
func PrimerRequest(ctx context.Context, client Client, req MessageRequest) (*MessageResponse, error) {
	resp, err := client.CreateMessage(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: primer request")
	}
	return resp, nil
}
