// Package ratelimit throttles calls to an embedding provider.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const (
	// DefaultRetries is how often a call that asked for a back-off is retried.
	DefaultRetries = 3

	// maxBackoff caps a provider supplied Retry-After.
	maxBackoff = time.Minute
)

// retryable is implemented by provider errors that carry a back-off hint.
type retryable interface {
	RetryAfter() time.Duration
}

// EmbeddingService wraps another service with proactive throttling
// and reactive back-off on rate limit responses.
type EmbeddingService struct {
	next    driven.EmbeddingService
	bucket  *rate.Limiter
	retries int
	sleep   func(ctx context.Context, d time.Duration) error
}

// Wrap returns next throttled to rps calls per second.
// A non-positive rps returns next unchanged.
func Wrap(next driven.EmbeddingService, rps float64) driven.EmbeddingService {
	if rps <= 0 || next == nil {
		return next
	}
	return New(next, rps)
}

// New creates a throttled embedding service.
func New(next driven.EmbeddingService, rps float64) *EmbeddingService {
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &EmbeddingService{
		next:    next,
		bucket:  rate.NewLimiter(rate.Limit(rps), burst),
		retries: DefaultRetries,
		sleep:   sleepContext,
	}
}

// Embed waits for a token and embeds one text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := s.do(ctx, func() error {
		var err error
		out, err = s.next.Embed(ctx, text)
		return err
	})
	return out, err
}

// EmbedBatch waits for a token and embeds a batch in one call.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := s.do(ctx, func() error {
		var err error
		out, err = s.next.EmbedBatch(ctx, texts)
		return err
	})
	return out, err
}

func (s *EmbeddingService) do(ctx context.Context, call func() error) error {
	for attempt := 0; ; attempt++ {
		if err := s.bucket.Wait(ctx); err != nil {
			return err
		}
		err := call()
		if err == nil || attempt >= s.retries {
			return err
		}

		var r retryable
		if !errors.As(err, &r) || r.RetryAfter() <= 0 {
			return err
		}
		backoff := min(r.RetryAfter(), maxBackoff)
		logger.Debug("embedding provider asked to back off %s: %v", backoff, err)
		if err := s.sleep(ctx, backoff); err != nil {
			return err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Dimensions returns the wrapped service's vector size.
func (s *EmbeddingService) Dimensions() int { return s.next.Dimensions() }

// ModelName returns the wrapped service's model.
func (s *EmbeddingService) ModelName() string { return s.next.ModelName() }

// Ping checks the wrapped service without consuming a token.
func (s *EmbeddingService) Ping(ctx context.Context) error { return s.next.Ping(ctx) }

// Close closes the wrapped service.
func (s *EmbeddingService) Close() error { return s.next.Close() }
