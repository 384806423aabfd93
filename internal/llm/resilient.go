package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/licitaflow/compliance-cli/internal/config"
	"github.com/licitaflow/compliance-cli/internal/metrics"
	"github.com/licitaflow/compliance-cli/internal/resilience"
)

// Resilient wraps a Backend with retries and a circuit breaker. When the
// breaker opens, calls fail fast with ErrUnavailable so the pipeline can
// degrade to rule-based behavior instead of hammering a dead service.
type Resilient struct {
	inner   Backend
	retry   resilience.RetryConfig
	breaker *gobreaker.CircuitBreaker[any]
}

var _ Backend = (*Resilient)(nil)

// NewResilient decorates inner with the configured retry and breaker policy.
func NewResilient(inner Backend, retryCfg config.RetryConfig, breakerCfg config.BreakerConfig) *Resilient {
	retry := resilience.FromRetryConfig(
		retryCfg.MaxAttempts,
		retryCfg.InitialBackoffMs,
		retryCfg.MaxBackoffMs,
		retryCfg.Multiplier,
		retryCfg.JitterFraction,
	)
	retry.ShouldRetry = shouldRetry
	retry.OnRetry = resilience.RetryLogger(inner.Name(), "complete")

	settings := gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: halfOpenCalls(breakerCfg),
		Timeout:     openTimeout(breakerCfg),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests(breakerCfg) {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= failureRatio(breakerCfg)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// A malformed completion means the service answered; only
			// availability failures should trip the breaker.
			return errors.Is(err, ErrMalformedOutput)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.L().Warn("llm circuit breaker state change",
				zap.String("backend", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Resilient{
		inner:   inner,
		retry:   retry,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

func (r *Resilient) Name() string { return r.inner.Name() }

func (r *Resilient) Complete(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	out, err := r.breaker.Execute(func() (any, error) {
		return resilience.DoVal(ctx, r.retry, func(ctx context.Context) (*Response, error) {
			return r.inner.Complete(ctx, req)
		})
	})
	if err != nil {
		err = r.mapBreakerErr(err)
		r.record(start, err)
		return nil, err
	}
	r.record(start, nil)
	return out.(*Response), nil
}

func (r *Resilient) CompleteBatch(ctx context.Context, items []BatchItem) (map[string]*Response, error) {
	start := time.Now()
	out, err := r.breaker.Execute(func() (any, error) {
		return resilience.DoVal(ctx, r.retry, func(ctx context.Context) (map[string]*Response, error) {
			return r.inner.CompleteBatch(ctx, items)
		})
	})
	if err != nil {
		err = r.mapBreakerErr(err)
		r.record(start, err)
		return nil, err
	}
	r.record(start, nil)
	return out.(map[string]*Response), nil
}

// record observes one backend call, retries included, on the shared metrics.
func (r *Resilient) record(start time.Time, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrMalformedOutput):
		outcome = "malformed"
	case errors.Is(err, ErrUnavailable):
		outcome = "unavailable"
	default:
		outcome = "error"
	}
	metrics.Default.RecordLLMRequest(r.inner.Name(), outcome, time.Since(start))
}

func (r *Resilient) mapBreakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("llm: %s circuit open: %w", r.inner.Name(), ErrUnavailable)
	}
	return err
}

// shouldRetry retries availability failures and transient transport errors,
// never malformed output: a deterministic low-temperature completion will
// produce the same garbage again.
func shouldRetry(err error) bool {
	if errors.Is(err, ErrMalformedOutput) {
		return false
	}
	return errors.Is(err, ErrUnavailable) || resilience.IsTransient(err)
}

func failureRatio(cfg config.BreakerConfig) float64 {
	if cfg.FailureRatio > 0 {
		return cfg.FailureRatio
	}
	return 0.6
}

func minRequests(cfg config.BreakerConfig) uint32 {
	if cfg.MinRequests > 0 {
		return cfg.MinRequests
	}
	return 5
}

func openTimeout(cfg config.BreakerConfig) time.Duration {
	if cfg.OpenTimeoutSecs > 0 {
		return time.Duration(cfg.OpenTimeoutSecs) * time.Second
	}
	return 30 * time.Second
}

func halfOpenCalls(cfg config.BreakerConfig) uint32 {
	if cfg.HalfOpenMaxCalls > 0 {
		return cfg.HalfOpenMaxCalls
	}
	return 2
}
