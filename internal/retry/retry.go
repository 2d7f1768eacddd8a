// Package retry polls for an eventually-consistent value with bounded
// exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Outcome of a wait.
type Outcome int

const (
	Found Outcome = iota
	TimedOut
)

func (o Outcome) String() string {
	if o == Found {
		return "found"
	}
	return "timed_out"
}

// Policy bounds the wait.
type Policy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultPolicy waits roughly three seconds in total.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      10,
		InitialInterval: 300 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      1.5,
	}
}

// Result of WaitFor. Value is only meaningful when Outcome is Found.
type Result[T any] struct {
	Outcome  Outcome
	Value    T
	Attempts int
}

// Probe reports (value, true, nil) once the value exists, (zero, false, nil)
// while it does not exist yet, and a non-nil error to stop waiting.
type Probe[T any] func(ctx context.Context) (T, bool, error)

var errNotYet = errors.New("not yet available")

// WaitFor calls probe until it finds the value or the policy is exhausted.
// Probe errors and context cancellation are returned as errors; running out
// of retries is a TimedOut result, not an error.
func WaitFor[T any](ctx context.Context, p Policy, probe Probe[T]) (Result[T], error) {
	var res Result[T]

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.InitialInterval
	expo.MaxInterval = p.MaxInterval
	if p.Multiplier > 0 {
		expo.Multiplier = p.Multiplier
	}
	expo.RandomizationFactor = 0.2
	expo.MaxElapsedTime = 0
	expo.Reset()

	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(maxRetries)), ctx)

	err := backoff.Retry(func() error {
		res.Attempts++
		v, ok, err := probe(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return errNotYet
		}
		res.Value = v
		return nil
	}, b)

	switch {
	case err == nil:
		res.Outcome = Found
		return res, nil
	case errors.Is(err, errNotYet):
		res.Outcome = TimedOut
		return res, nil
	default:
		return res, err
	}
}
