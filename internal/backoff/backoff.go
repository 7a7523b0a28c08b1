// SPDX-License-Identifier: Apache-2.0

package backoff

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Backoff interface {
	RetryNotify(Operation, Notify) error
}

type (
	Operation func() error
	Notify    func(error, time.Duration)
)

type Config struct {
	Exponential *ExponentialConfig
	Constant    *ConstantConfig
}

type ExponentialConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	MaxRetries      uint
}

type ConstantConfig struct {
	Interval   time.Duration
	MaxRetries uint
}

// ErrPermanent can be wrapped by an operation error to stop the retries.
var ErrPermanent = errors.New("permanent error, do not retry")

type Provider func(ctx context.Context) Backoff

// NewProvider returns a backoff provider based on the config on input. If no
// valid input is provided, a no retry backoff provider is returned instead.
func NewProvider(cfg *Config) Provider {
	switch {
	case cfg == nil:
		return func(context.Context) Backoff { return newBackoff(&backoff.StopBackOff{}) }
	case cfg.Constant != nil:
		return func(ctx context.Context) Backoff {
			bo := backoff.NewConstantBackOff(cfg.Constant.Interval)
			return newBackoff(withLimits(ctx, bo, cfg.Constant.MaxRetries))
		}
	case cfg.Exponential != nil:
		return func(ctx context.Context) Backoff {
			exp := backoff.NewExponentialBackOff()
			if cfg.Exponential.InitialInterval > 0 {
				exp.InitialInterval = cfg.Exponential.InitialInterval
			}
			if cfg.Exponential.MaxInterval > 0 {
				exp.MaxInterval = cfg.Exponential.MaxInterval
			}
			exp.MaxElapsedTime = cfg.Exponential.MaxElapsedTime
			return newBackoff(withLimits(ctx, exp, cfg.Exponential.MaxRetries))
		}
	default:
		return func(context.Context) Backoff { return newBackoff(&backoff.StopBackOff{}) }
	}
}

type wrappedBackoff struct {
	bo backoff.BackOff
}

func newBackoff(bo backoff.BackOff) *wrappedBackoff {
	return &wrappedBackoff{bo: bo}
}

func withLimits(ctx context.Context, bo backoff.BackOff, maxRetries uint) backoff.BackOff {
	if maxRetries > 0 {
		bo = backoff.WithMaxRetries(bo, uint64(maxRetries))
	}
	return backoff.WithContext(bo, ctx)
}

func (b *wrappedBackoff) RetryNotify(op Operation, notify Notify) error {
	boOp := func() error {
		err := op()
		if errors.Is(err, ErrPermanent) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.RetryNotify(boOp, b.bo, backoff.Notify(notify))
}
