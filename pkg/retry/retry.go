// Package retry provides a small retrying helper used at the three unreliable
// boundaries of the pipeline: LLM calls, TTS calls, and store writes.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Transient marks an error as retryable. Wrap provider errors in Transient
// when the failure is network-shaped: timeouts, 5xx, rate limits, dropped
// connections.
type Transient struct {
	Err error
}

func (e *Transient) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *Transient) Unwrap() error {
	return e.Err
}

// Retryable reports whether err is marked transient.
func Retryable(err error) bool {
	var t *Transient
	return errors.As(err, &t)
}

// Policy describes how many attempts to make and how long to wait between
// them. Wait is fixed, not exponential; the providers this pipeline talks to
// rate-limit on sustained pressure, not bursts.
type Policy struct {
	Attempts int
	Wait     time.Duration
}

// Do runs fn up to p.Attempts times, waiting p.Wait between attempts while
// the returned error is transient. The last error is returned unwrapped.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return err
		}
		lastErr = err
		if attempt < p.Attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Wait):
			}
		}
	}
	return lastErr
}
