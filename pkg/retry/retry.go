// Package retry provides exponential backoff for operations that can fail
// transiently, such as dispatching to a flaky downstream or reconnecting to
// the broker. Retries are classification-aware: an error the errors package
// classifies as invalid or fatal stops the loop immediately, because
// re-sending malformed data never helps.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	pkgerrors "github.com/careroute/interlink/errors"
)

// Config parameterizes a retry loop.
type Config struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int `json:"maxAttempts" yaml:"maxAttempts"`

	// InitialDelay is the wait after the first failure.
	InitialDelay time.Duration `json:"initialDelay" yaml:"initialDelay"`

	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration `json:"maxDelay" yaml:"maxDelay"`

	// Multiplier scales the delay after each failure.
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`

	// AddJitter spreads each delay by up to ±25% so parallel retriers
	// do not stampede.
	AddJitter bool `json:"addJitter" yaml:"addJitter"`
}

// DefaultConfig suits most dispatch retries: three tries over a few seconds.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Quick is for interactive paths that cannot afford to wait long.
func Quick() Config {
	return Config{
		MaxAttempts:  2,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		Multiplier:   2.0,
		AddJitter:    false,
	}
}

// Persistent is for startup dependencies that are worth waiting on, such as
// the first broker connection.
func Persistent() Config {
	return Config{
		MaxAttempts:  10,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxAttempts == 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = def.InitialDelay
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.Multiplier == 0 {
		c.Multiplier = def.Multiplier
	}
	return c
}

// Validate rejects configurations that would loop forever or sleep backwards.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.MaxAttempts < 1 {
		return pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "retry.Config", "Validate",
			fmt.Sprintf("max attempts must be at least 1, got %d", c.MaxAttempts))
	}
	if c.InitialDelay < 0 || c.MaxDelay < 0 {
		return pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "retry.Config", "Validate",
			"delays must not be negative")
	}
	if c.Multiplier < 1.0 {
		return pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "retry.Config", "Validate",
			fmt.Sprintf("multiplier must be at least 1.0, got %g", c.Multiplier))
	}
	return nil
}

// Do runs op until it succeeds, the error stops being worth retrying, the
// attempts run out, or the context is canceled.
//
// Errors classified invalid or fatal return as-is on the attempt that
// produced them; everything else, including unclassified errors, is treated
// as transient and retried. When all attempts fail the last error is
// returned wrapped with the attempt count, preserving its classification
// for the caller's own handling (a dispatcher queues on a transient
// exhaustion).
func Do(ctx context.Context, cfg Config, op func(context.Context) error) error {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	var lastErr error
	delay := cfg.InitialDelay
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("canceled after %d attempts: %w", attempt-1, lastErr)
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if pkgerrors.Classify(err) != pkgerrors.ErrorTransient {
			return err
		}
		lastErr = err
		if attempt == cfg.MaxAttempts {
			break
		}

		if err := sleep(ctx, jittered(delay, cfg.AddJitter)); err != nil {
			return fmt.Errorf("canceled after %d attempts: %w", attempt, lastErr)
		}
		delay = nextDelay(delay, cfg)
	}
	return fmt.Errorf("all %d attempts failed: %w", cfg.MaxAttempts, lastErr)
}

// DoWithResult is Do for operations that produce a value. The zero value is
// returned alongside any error.
func DoWithResult[T any](ctx context.Context, cfg Config, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// nextDelay grows the delay geometrically up to the cap, guarding against
// overflow on large multipliers.
func nextDelay(current time.Duration, cfg Config) time.Duration {
	next := time.Duration(float64(current) * cfg.Multiplier)
	if next > cfg.MaxDelay || next <= 0 {
		next = cfg.MaxDelay
	}
	return next
}

// jittered spreads d by up to ±25%.
func jittered(d time.Duration, add bool) time.Duration {
	if !add || d <= 0 {
		return d
	}
	spread := d / 4
	if spread <= 0 {
		return d
	}
	return d - spread + time.Duration(rand.Int63n(int64(2*spread)))
}

// sleep waits for d or until the context is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
