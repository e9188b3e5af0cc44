// Package retry re-runs failed operations whose error kind is transient,
// waiting with exponential backoff between attempts.
package retry

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/quantmind-br/snapwiz/internal/config"
	"github.com/quantmind-br/snapwiz/internal/pkgerr"
)

// Policy controls how many times and how often an operation is retried
type Policy struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	BackoffFactor  float64
	MaxDelay       time.Duration
	RetryableKinds []pkgerr.Kind
}

// InstallPolicy is the preset for package manager invocations
func InstallPolicy() Policy {
	return Policy{
		MaxAttempts:    2,
		InitialDelay:   3 * time.Second,
		BackoffFactor:  1.5,
		MaxDelay:       10 * time.Second,
		RetryableKinds: []pkgerr.Kind{pkgerr.KindInstallationTimeout},
	}
}

// NetworkPolicy is the preset for network operations
func NetworkPolicy() Policy {
	return Policy{
		MaxAttempts:    5,
		InitialDelay:   2 * time.Second,
		BackoffFactor:  2.0,
		MaxDelay:       60 * time.Second,
		RetryableKinds: []pkgerr.Kind{pkgerr.KindNetworkTimeout, pkgerr.KindDownloadError},
	}
}

// DefaultPolicy retries every kind that is transient by default
func DefaultPolicy() Policy {
	var kinds []pkgerr.Kind
	for _, k := range pkgerr.AllKinds() {
		if k.Retryable() {
			kinds = append(kinds, k)
		}
	}
	return Policy{
		MaxAttempts:    3,
		InitialDelay:   time.Second,
		BackoffFactor:  2.0,
		MaxDelay:       30 * time.Second,
		RetryableKinds: kinds,
	}
}

// FromConfig builds a policy from its configuration form
func FromConfig(c config.RetryPolicyConfig) (Policy, error) {
	kinds, err := pkgerr.ParseKinds(c.RetryableKinds)
	if err != nil {
		return Policy{}, err
	}
	p := Policy{
		MaxAttempts:    c.MaxAttempts,
		InitialDelay:   c.InitialDelay,
		BackoffFactor:  c.BackoffFactor,
		MaxDelay:       c.MaxDelay,
		RetryableKinds: kinds,
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks the policy invariants
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.BackoffFactor <= 1 {
		return fmt.Errorf("backoff factor must be greater than 1, got %g", p.BackoffFactor)
	}
	if p.InitialDelay < 0 || p.MaxDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	return nil
}

// Delay returns the wait after the given failed attempt (1-based):
// min(InitialDelay * BackoffFactor^(attempt-1), MaxDelay)
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.InitialDelay) * math.Pow(p.BackoffFactor, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Retries reports whether the policy retries errors of kind k
func (p Policy) Retries(k pkgerr.Kind) bool {
	return slices.Contains(p.RetryableKinds, k)
}

// ShouldRetry reports whether err, produced by the given attempt, warrants another attempt
func (p Policy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.MaxAttempts {
		return false
	}
	return p.Retries(pkgerr.KindOf(err))
}
