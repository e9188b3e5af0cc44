package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quantmind-br/snapwiz/internal/config"
	"github.com/quantmind-br/snapwiz/internal/pkgerr"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingSleep(delays *[]time.Duration) SleepFunc {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func timeoutErr() error {
	return pkgerr.New(pkgerr.InstallationTimeout{Manager: "apt", Timeout: time.Minute})
}

func TestPolicy_Delay(t *testing.T) {
	t.Parallel()

	p := Policy{MaxAttempts: 5, InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 30 * time.Second}
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 8*time.Second, p.Delay(4))
	assert.Equal(t, 16*time.Second, p.Delay(5))
	assert.Equal(t, 30*time.Second, p.Delay(6))

	inst := InstallPolicy()
	assert.Equal(t, 3*time.Second, inst.Delay(1))
	assert.Equal(t, 4500*time.Millisecond, inst.Delay(2))
	assert.Equal(t, 10*time.Second, inst.Delay(5))
}

func TestPresets(t *testing.T) {
	t.Parallel()

	for _, p := range []Policy{InstallPolicy(), NetworkPolicy(), DefaultPolicy()} {
		require.NoError(t, p.Validate())
	}

	assert.True(t, InstallPolicy().Retries(pkgerr.KindInstallationTimeout))
	assert.False(t, InstallPolicy().Retries(pkgerr.KindInstallationFailed))
	assert.True(t, NetworkPolicy().Retries(pkgerr.KindDownloadError))
	assert.Equal(t, 5, NetworkPolicy().MaxAttempts)
	assert.ElementsMatch(t,
		[]pkgerr.Kind{pkgerr.KindInstallationTimeout, pkgerr.KindNetworkTimeout, pkgerr.KindDownloadError},
		DefaultPolicy().RetryableKinds)
}

func TestPolicy_Validate(t *testing.T) {
	t.Parallel()

	assert.Error(t, Policy{MaxAttempts: 0, BackoffFactor: 2}.Validate())
	assert.Error(t, Policy{MaxAttempts: 1, BackoffFactor: 1}.Validate())
	assert.Error(t, Policy{MaxAttempts: 1, BackoffFactor: 2, InitialDelay: -1}.Validate())
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	p, err := FromConfig(config.Default().Retry.Install)
	require.NoError(t, err)
	assert.Equal(t, InstallPolicy(), p)

	_, err = FromConfig(config.RetryPolicyConfig{MaxAttempts: 1, BackoffFactor: 2, RetryableKinds: []string{"nope"}})
	assert.Error(t, err)
	_, err = FromConfig(config.RetryPolicyConfig{MaxAttempts: 0, BackoffFactor: 2})
	assert.Error(t, err)
}

func TestExecutor_BackoffSequence(t *testing.T) {
	t.Parallel()

	var delays []time.Duration
	policy := Policy{
		MaxAttempts:    5,
		InitialDelay:   time.Second,
		BackoffFactor:  2,
		MaxDelay:       30 * time.Second,
		RetryableKinds: []pkgerr.Kind{pkgerr.KindInstallationTimeout},
	}

	var finalAttempts int
	exec := NewExecutor(policy, nil,
		WithSleep(recordingSleep(&delays)),
		WithCallbacks(Callbacks{OnFinalFailure: func(n int, _ error) { finalAttempts = n }}),
	)

	calls := 0
	attempts, err := exec.Do(context.Background(), func(_ context.Context, attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		return timeoutErr()
	})

	assert.True(t, pkgerr.Is(err, pkgerr.KindInstallationTimeout))
	assert.Equal(t, 5, attempts)
	assert.Equal(t, 5, calls)
	assert.Equal(t, 5, finalAttempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, delays)
}

func TestExecutor_NonRetryableStopsImmediately(t *testing.T) {
	t.Parallel()

	var delays []time.Duration
	exec := NewExecutor(InstallPolicy(), nil, WithSleep(recordingSleep(&delays)))

	attempts, err := exec.Do(context.Background(), func(context.Context, int) error {
		return pkgerr.New(pkgerr.DependencyError{Dependencies: []string{"libfoo"}})
	})

	assert.Equal(t, 1, attempts)
	assert.True(t, pkgerr.Is(err, pkgerr.KindDependencyError))
	assert.Empty(t, delays)
}

func TestExecutor_UnclassifiedErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	exec := NewExecutor(DefaultPolicy(), nil, WithSleep(func(context.Context, time.Duration) error {
		t.Fatal("should not sleep")
		return nil
	}))

	attempts, err := exec.Do(context.Background(), func(context.Context, int) error {
		return errors.New("boom")
	})
	assert.Equal(t, 1, attempts)
	assert.EqualError(t, err, "boom")
}

func TestExecutor_SucceedsAfterRetry(t *testing.T) {
	t.Parallel()

	var delays []time.Duration
	var retried []int
	exec := NewExecutor(InstallPolicy(), nil,
		WithSleep(recordingSleep(&delays)),
		WithCallbacks(Callbacks{OnRetry: func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) }}),
	)

	attempts, err := exec.Do(context.Background(), func(_ context.Context, attempt int) error {
		if attempt == 1 {
			return timeoutErr()
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, []int{1}, retried)
	assert.Equal(t, []time.Duration{3 * time.Second}, delays)
}

func TestExecutor_ContextCancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	log := zerolog.Nop()
	exec := NewExecutor(DefaultPolicy(), &log, WithSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	calls := 0
	attempts, err := exec.Do(ctx, func(context.Context, int) error {
		calls++
		return timeoutErr()
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, attempts)
	assert.True(t, pkgerr.Is(err, pkgerr.KindInstallationTimeout))
}

func TestSleepContext(t *testing.T) {
	t.Parallel()

	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
