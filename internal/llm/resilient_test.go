package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licitaflow/compliance-cli/internal/config"
	"github.com/licitaflow/compliance-cli/internal/resilience"
)

// stubBackend counts calls and returns canned results.
type stubBackend struct {
	calls      int
	batchCalls int
	completeFn func(ctx context.Context, req Request) (*Response, error)
	batchFn    func(ctx context.Context, items []BatchItem) (map[string]*Response, error)
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) Complete(ctx context.Context, req Request) (*Response, error) {
	s.calls++
	return s.completeFn(ctx, req)
}

func (s *stubBackend) CompleteBatch(ctx context.Context, items []BatchItem) (map[string]*Response, error) {
	s.batchCalls++
	return s.batchFn(ctx, items)
}

func fastRetry(attempts int) config.RetryConfig {
	return config.RetryConfig{
		MaxAttempts:      attempts,
		InitialBackoffMs: 1,
		MaxBackoffMs:     2,
		Multiplier:       1.0,
		JitterFraction:   0,
	}
}

func TestResilientComplete_RetriesUnavailable(t *testing.T) {
	stub := &stubBackend{}
	stub.completeFn = func(ctx context.Context, req Request) (*Response, error) {
		if stub.calls < 3 {
			return nil, fmt.Errorf("llm: stub complete: %w: timeout", ErrUnavailable)
		}
		return &Response{Text: "recovered"}, nil
	}

	r := NewResilient(stub, fastRetry(3), config.BreakerConfig{MinRequests: 100})

	resp, err := r.Complete(context.Background(), Request{Prompt: "doc"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Text)
	assert.Equal(t, 3, stub.calls)
}

func TestResilientComplete_NoRetryOnMalformed(t *testing.T) {
	stub := &stubBackend{}
	stub.completeFn = func(ctx context.Context, req Request) (*Response, error) {
		return nil, fmt.Errorf("llm: stub empty completion: %w", ErrMalformedOutput)
	}

	r := NewResilient(stub, fastRetry(5), config.BreakerConfig{MinRequests: 100})

	_, err := r.Complete(context.Background(), Request{Prompt: "doc"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedOutput)
	assert.Equal(t, 1, stub.calls, "malformed output must not be retried")
}

func TestResilientComplete_BreakerOpensAfterFailures(t *testing.T) {
	stub := &stubBackend{}
	stub.completeFn = func(ctx context.Context, req Request) (*Response, error) {
		return nil, fmt.Errorf("llm: stub complete: %w: down", ErrUnavailable)
	}

	r := NewResilient(stub, fastRetry(1), config.BreakerConfig{
		FailureRatio:    0.5,
		MinRequests:     2,
		OpenTimeoutSecs: 60,
	})

	for i := 0; i < 2; i++ {
		_, err := r.Complete(context.Background(), Request{Prompt: "doc"})
		require.Error(t, err)
	}
	assert.Equal(t, 2, stub.calls)

	// The breaker is open now; the backend must not be touched again.
	_, err := r.Complete(context.Background(), Request{Prompt: "doc"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 2, stub.calls)
}

func TestResilientComplete_MalformedDoesNotTripBreaker(t *testing.T) {
	stub := &stubBackend{}
	stub.completeFn = func(ctx context.Context, req Request) (*Response, error) {
		return nil, fmt.Errorf("llm: stub empty completion: %w", ErrMalformedOutput)
	}

	r := NewResilient(stub, fastRetry(1), config.BreakerConfig{
		FailureRatio:    0.5,
		MinRequests:     2,
		OpenTimeoutSecs: 60,
	})

	for i := 0; i < 5; i++ {
		_, err := r.Complete(context.Background(), Request{Prompt: "doc"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedOutput)
	}
	assert.Equal(t, 5, stub.calls, "every call must reach the backend")
}

func TestResilientCompleteBatch_Delegates(t *testing.T) {
	stub := &stubBackend{}
	stub.batchFn = func(ctx context.Context, items []BatchItem) (map[string]*Response, error) {
		return map[string]*Response{"d1": {Text: "one"}}, nil
	}

	r := NewResilient(stub, fastRetry(3), config.BreakerConfig{MinRequests: 100})

	out, err := r.CompleteBatch(context.Background(), []BatchItem{{ID: "d1"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "one", out["d1"].Text)
	assert.Equal(t, 1, stub.batchCalls)
}

func TestResilientCompleteBatch_RetriesUnavailable(t *testing.T) {
	stub := &stubBackend{}
	stub.batchFn = func(ctx context.Context, items []BatchItem) (map[string]*Response, error) {
		if stub.batchCalls < 2 {
			return nil, fmt.Errorf("llm: stub create batch: %w: down", ErrUnavailable)
		}
		return map[string]*Response{"d1": {Text: "one"}}, nil
	}

	r := NewResilient(stub, fastRetry(3), config.BreakerConfig{MinRequests: 100})

	out, err := r.CompleteBatch(context.Background(), []BatchItem{{ID: "d1"}})
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, 2, stub.batchCalls)
}

func TestResilientName(t *testing.T) {
	r := NewResilient(&stubBackend{}, fastRetry(1), config.BreakerConfig{})
	assert.Equal(t, "stub", r.Name())
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unavailable", fmt.Errorf("wrap: %w", ErrUnavailable), true},
		{"malformed", fmt.Errorf("wrap: %w", ErrMalformedOutput), false},
		{"transient http", resilience.NewTransientError(errors.New("503"), 503), true},
		{"plain error", errors.New("bad request"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldRetry(tt.err))
		})
	}
}
