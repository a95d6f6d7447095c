package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/wyu/textfetch/pkg/ndr"
)

// retryFetcher wraps a PageFetcher with bounded retry on transient failures.
// The walker itself never retries; this decorator is the caller-side retry
// layer, enabled through configuration.
type retryFetcher struct {
	inner    PageFetcher
	attempts uint
	delay    time.Duration
	log      *slog.Logger
}

// NewRetryFetcher returns a fetcher retrying each request up to attempts
// times with a fixed delay. With attempts <= 1 the inner fetcher is returned
// unchanged.
func NewRetryFetcher(inner PageFetcher, attempts uint, delay time.Duration, log *slog.Logger) PageFetcher {
	if attempts <= 1 {
		return inner
	}
	if log != nil {
		log = log.With("component", "fetch-retry")
	}
	return &retryFetcher{inner: inner, attempts: attempts, delay: delay, log: log}
}

func (r *retryFetcher) Parts(ctx context.Context) ([]string, error) {
	var parts []string
	err := retry.Do(
		func() error {
			var err error
			parts, err = r.inner.Parts(ctx)
			return err
		},
		r.options(ctx, "parts")...,
	)
	return parts, err
}

func (r *retryFetcher) FetchPage(ctx context.Context, catalogIndex int, pageToken string) ([]ndr.RawRecord, string, error) {
	var (
		records []ndr.RawRecord
		next    string
	)
	err := retry.Do(
		func() error {
			var err error
			records, next, err = r.inner.FetchPage(ctx, catalogIndex, pageToken)
			return err
		},
		r.options(ctx, "page")...,
	)
	return records, next, err
}

func (r *retryFetcher) options(ctx context.Context, op string) []retry.Option {
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			if r.log != nil {
				r.log.Warn("retrying fetch", "op", op, "attempt", n+1, "error", err)
			}
		}),
	}
}
