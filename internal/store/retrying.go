package store

import (
	"context"
	"log/slog"
	"time"

	ferrors "git.home.luguber.info/inful/scampish/internal/foundation/errors"
	"git.home.luguber.info/inful/scampish/internal/logfields"
	"git.home.luguber.info/inful/scampish/internal/retry"
)

// Retrying wraps a ContentStore and retries operations failing with
// retryable store errors. Missing objects are never retried.
type Retrying struct {
	next   ContentStore
	policy retry.Policy
	logger *slog.Logger
}

// NewRetrying wraps next with policy.
func NewRetrying(next ContentStore, policy retry.Policy, logger *slog.Logger) *Retrying {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{next: next, policy: policy, logger: logger}
}

func (r *Retrying) List(ctx context.Context, prefix string) (Listing, error) {
	var listing Listing
	err := r.do(ctx, "list", prefix, func(ctx context.Context) error {
		var err error
		listing, err = r.next.List(ctx, prefix)
		return err
	})
	return listing, err
}

func (r *Retrying) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := r.do(ctx, "get", key, func(ctx context.Context) error {
		var err error
		data, err = r.next.Get(ctx, key)
		return err
	})
	return data, err
}

func (r *Retrying) Copy(ctx context.Context, srcKey, dstKey string, visibility Visibility) error {
	return r.do(ctx, "copy", srcKey, func(ctx context.Context) error {
		return r.next.Copy(ctx, srcKey, dstKey, visibility)
	})
}

func (r *Retrying) Put(ctx context.Context, dstKey string, data []byte, opts PutOptions) error {
	return r.do(ctx, "put", dstKey, func(ctx context.Context) error {
		return r.next.Put(ctx, dstKey, data, opts)
	})
}

func (r *Retrying) do(ctx context.Context, op, key string, fn func(context.Context) error) error {
	return r.policy.Do(ctx, shouldRetry, func(attempt int, delay time.Duration, err error) {
		r.logger.Warn("Retrying store operation",
			slog.String("op", op),
			logfields.Key(key),
			slog.Int("attempt", attempt),
			logfields.DurationMS(float64(delay.Milliseconds())),
			logfields.Error(err))
	}, fn)
}

func shouldRetry(err error) bool {
	return !IsNotFound(err) && ferrors.IsRetryable(err)
}
