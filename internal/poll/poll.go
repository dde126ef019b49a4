// Package poll provides the bounded retry-until-ready primitive used for every
// convergence wait against eventually consistent systems.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

const (
	DefaultInterval = 10 * time.Second
	DefaultTimeout  = 300 * time.Second
)

// ErrTimedOut is returned when the check never reported ready within the timeout.
var ErrTimedOut = errors.New("timed out waiting for condition")

// CheckFunc reports a value once the target is ready. A false ready flag or a
// non-nil error both mean "not yet"; errors are logged and the check is retried.
type CheckFunc[T any] func(ctx context.Context) (value T, ready bool, err error)

type Config struct {
	Interval time.Duration
	Timeout  time.Duration
	// Factor above 1 grows the interval after every failed attempt.
	Factor float64
	Name   string
}

// withDefaults replaces a non-positive interval or timeout with the default,
// so a zeroed setting can never turn the wait into a busy loop.
func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Factor < 1.0 {
		c.Factor = 1.0
	}
	return c
}

type Option func(*Config)

func WithInterval(d time.Duration) Option {
	return func(c *Config) {
		c.Interval = d
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithBackoff grows the wait between attempts by factor. The overall timeout
// still bounds the wait.
func WithBackoff(factor float64) Option {
	return func(c *Config) {
		c.Factor = factor
	}
}

// WithName labels log lines emitted for failed attempts.
func WithName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

// Until invokes check until it reports ready, sleeping between attempts, and
// returns ErrTimedOut once the timeout elapses. Cancellation of ctx is returned
// as the context error, not as a timeout.
func Until[T any](ctx context.Context, check CheckFunc[T], opts ...Option) (T, error) {
	cfg := Config{
		Interval: DefaultInterval,
		Timeout:  DefaultTimeout,
		Factor:   1.0,
		Name:     "condition",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.withDefaults()

	deadlineCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	backoff := wait.Backoff{
		Duration: cfg.Interval,
		Factor:   cfg.Factor,
		Steps:    math.MaxInt32,
	}

	var (
		result   T
		attempts int
	)
	err := wait.ExponentialBackoffWithContext(deadlineCtx, backoff, func(ctx context.Context) (bool, error) {
		attempts++
		value, ready, err := check(ctx)
		if err != nil {
			slog.Warn("Poll attempt failed, retrying",
				"condition", cfg.Name,
				"attempt", attempts,
				"error", err)
			return false, nil
		}
		if !ready {
			slog.Debug("Condition not ready yet", "condition", cfg.Name, "attempt", attempts)
			return false, nil
		}
		result = value
		return true, nil
	})
	if err == nil {
		return result, nil
	}

	var zero T
	if ctx.Err() != nil {
		return zero, ctx.Err()
	}
	if deadlineCtx.Err() != nil || wait.Interrupted(err) {
		slog.Error("Timed out waiting for condition",
			"condition", cfg.Name,
			"attempts", attempts,
			"timeout", cfg.Timeout)
		return zero, fmt.Errorf("%s after %s: %w", cfg.Name, cfg.Timeout, ErrTimedOut)
	}
	return zero, err
}

// Ready adapts a boolean probe to a CheckFunc.
func Ready(probe func(ctx context.Context) (bool, error)) CheckFunc[struct{}] {
	return func(ctx context.Context) (struct{}, bool, error) {
		ok, err := probe(ctx)
		return struct{}{}, ok, err
	}
}

// Do retries op until it succeeds or the timeout elapses.
func Do(ctx context.Context, op func(ctx context.Context) error, opts ...Option) error {
	_, err := Until(ctx, func(ctx context.Context) (struct{}, bool, error) {
		if err := op(ctx); err != nil {
			return struct{}{}, false, err
		}
		return struct{}{}, true, nil
	}, opts...)
	return err
}
