package retry

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/careroute/interlink/errors"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), func(context.Context) error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_RetriesTransientUntilSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(5), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return pkgerrors.WrapTransient(pkgerrors.ErrNoConnection, "dispatch", "send", "publish")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_RetriesUnclassifiedErrors(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), func(context.Context) error {
		attempts++
		if attempts == 1 {
			return errors.New("boom")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetry_StopsOnInvalidError(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(5), func(context.Context) error {
		attempts++
		return pkgerrors.WrapInvalid(pkgerrors.ErrInvalidData, "serializer", "Parse", "decode")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "invalid errors must not be retried")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidData)
}

func TestRetry_StopsOnFatalError(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(5), func(context.Context) error {
		attempts++
		return pkgerrors.WrapFatal(pkgerrors.ErrMissingConfig, "channel", "Load", "read file")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "fatal errors must not be retried")
	assert.ErrorIs(t, err, pkgerrors.ErrMissingConfig)
}

func TestRetry_AllAttemptsFail(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), func(context.Context) error {
		attempts++
		return pkgerrors.WrapTransient(pkgerrors.ErrConnectionLost, "dispatch", "send", "publish")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "all 3 attempts failed")
	assert.ErrorIs(t, err, pkgerrors.ErrConnectionLost)
	assert.True(t, pkgerrors.IsTransient(err),
		"exhaustion must keep the transient classification so callers can queue")
}

func TestRetry_ContextCancellation(t *testing.T) {
	t.Run("pre-canceled context never runs the op", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		attempts := 0
		err := Do(ctx, fastConfig(3), func(context.Context) error {
			attempts++
			return nil
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, attempts)
	})

	t.Run("cancellation during backoff stops the loop", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		cfg := Config{MaxAttempts: 5, InitialDelay: 300 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2.0}
		attempts := 0
		err := Do(ctx, cfg, func(context.Context) error {
			attempts++
			return pkgerrors.WrapTransient(pkgerrors.ErrNoConnection, "dispatch", "send", "publish")
		})
		require.Error(t, err)
		assert.Equal(t, 1, attempts)
		assert.Contains(t, err.Error(), "canceled after 1")
		assert.ErrorIs(t, err, pkgerrors.ErrNoConnection)
	})
}

func TestRetry_WithResult(t *testing.T) {
	t.Run("returns the value on success", func(t *testing.T) {
		attempts := 0
		got, err := DoWithResult(context.Background(), fastConfig(3), func(context.Context) (string, error) {
			attempts++
			if attempts < 2 {
				return "", pkgerrors.WrapTransient(pkgerrors.ErrNoConnection, "dispatch", "send", "publish")
			}
			return "delivered", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "delivered", got)
		assert.Equal(t, 2, attempts)
	})

	t.Run("returns the zero value on failure", func(t *testing.T) {
		got, err := DoWithResult(context.Background(), fastConfig(2), func(context.Context) (int, error) {
			return 42, pkgerrors.WrapTransient(pkgerrors.ErrConnectionLost, "dispatch", "send", "publish")
		})
		require.Error(t, err)
		assert.Zero(t, got)
	})
}

func TestRetry_ZeroConfigUsesDefaults(t *testing.T) {
	// Only the delay is pinned down; attempts and multiplier come from
	// DefaultConfig.
	cfg := Config{InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	attempts := 0
	err := Do(context.Background(), cfg, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return pkgerrors.WrapTransient(pkgerrors.ErrNoConnection, "dispatch", "send", "publish")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_NextDelayCapsAtMax(t *testing.T) {
	cfg := Config{MaxDelay: 5 * time.Second, Multiplier: 2.0}
	assert.Equal(t, 5*time.Second, nextDelay(4*time.Second, cfg))
	assert.Equal(t, 4*time.Second, nextDelay(2*time.Second, cfg))

	// Overflow collapses to the cap instead of going negative.
	assert.Equal(t, 5*time.Second, nextDelay(time.Duration(math.MaxInt64), cfg))
}

func TestRetry_JitterBounds(t *testing.T) {
	base := time.Second
	for i := 0; i < 100; i++ {
		d := jittered(base, true)
		assert.GreaterOrEqual(t, d, 750*time.Millisecond)
		assert.Less(t, d, 1250*time.Millisecond)
	}
	assert.Equal(t, base, jittered(base, false))
}

func TestRetry_ConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default config", cfg: DefaultConfig()},
		{name: "quick preset", cfg: Quick()},
		{name: "persistent preset", cfg: Persistent()},
		{name: "zero config fills defaults", cfg: Config{}},
		{name: "negative attempts", cfg: Config{MaxAttempts: -1}, wantErr: true},
		{name: "negative delay", cfg: Config{InitialDelay: -time.Second}, wantErr: true},
		{name: "shrinking multiplier", cfg: Config{Multiplier: 0.5}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, pkgerrors.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
		})
	}
}
