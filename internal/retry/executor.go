package retry

import (
	"context"
	"time"

	"github.com/quantmind-br/snapwiz/internal/pkgerr"
	"github.com/rs/zerolog"
)

// Operation is one attempt of a retried operation. attempt starts at 1.
type Operation func(ctx context.Context, attempt int) error

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Callbacks are invoked synchronously from Do
type Callbacks struct {
	// OnRetry runs after a retryable failure, before the backoff wait
	OnRetry func(attempt int, err error, delay time.Duration)
	// OnFinalFailure runs once when Do gives up
	OnFinalFailure func(attempts int, err error)
}

// Executor runs operations under a retry policy. Attempts are strictly sequential.
type Executor struct {
	policy    Policy
	sleep     SleepFunc
	callbacks Callbacks
	log       *zerolog.Logger
}

// Option configures an Executor
type Option func(*Executor)

// WithSleep replaces the backoff wait, mainly for tests
func WithSleep(fn SleepFunc) Option {
	return func(e *Executor) { e.sleep = fn }
}

// WithCallbacks sets the retry callbacks
func WithCallbacks(cb Callbacks) Option {
	return func(e *Executor) { e.callbacks = cb }
}

// NewExecutor creates an executor for policy
func NewExecutor(policy Policy, log *zerolog.Logger, opts ...Option) *Executor {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	e := &Executor{
		policy: policy,
		sleep:  sleepContext,
		log:    log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the executor's policy
func (e *Executor) Policy() Policy {
	return e.policy
}

// Do runs op until it succeeds, fails with a non-retryable kind, or the
// policy's attempts are exhausted. It returns the number of attempts made
// and the last error.
func (e *Executor) Do(ctx context.Context, op Operation) (int, error) {
	maxAttempts := e.policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return attempt, nil
		}

		if !e.policy.ShouldRetry(lastErr, attempt) {
			e.giveUp(attempt, lastErr)
			return attempt, lastErr
		}

		delay := e.policy.Delay(attempt)
		e.log.Warn().
			Err(lastErr).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Str("kind", pkgerr.KindOf(lastErr).String()).
			Dur("delay", delay).
			Msg("retryable failure, backing off")

		if e.callbacks.OnRetry != nil {
			e.callbacks.OnRetry(attempt, lastErr, delay)
		}

		if err := e.sleep(ctx, delay); err != nil {
			e.log.Debug().Err(err).Msg("backoff interrupted")
			e.giveUp(attempt, lastErr)
			return attempt, lastErr
		}
	}

	// unreachable: the last attempt never passes ShouldRetry
	return maxAttempts, lastErr
}

func (e *Executor) giveUp(attempts int, err error) {
	if e.callbacks.OnFinalFailure != nil {
		e.callbacks.OnFinalFailure(attempts, err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
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
