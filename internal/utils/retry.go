package utils

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryConfig configures exponential backoff.
type RetryConfig struct {
	// MaxAttempts counts the initial attempt.
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// JitterFactor of 0.1 means +/-10%.
	JitterFactor float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     5,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	}
}

// PermanentError stops retrying immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// RetryCallback is called before sleeping for the next attempt.
type RetryCallback func(attempt int, err error, next time.Duration)

type Retrier struct {
	cfg   RetryConfig
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRetrier(cfg RetryConfig) *Retrier {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = time.Second
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 30 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.JitterFactor < 0 {
		cfg.JitterFactor = 0
	}
	if cfg.JitterFactor > 1 {
		cfg.JitterFactor = 1
	}
	return &Retrier{cfg: cfg, sleep: sleepCtx}
}

// Do runs op until it succeeds, returns a permanent error, the attempts are
// exhausted or ctx is done. It returns the last error and the attempt count.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error, cb RetryCallback) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return attempt - 1, lastErr
			}
			return attempt - 1, err
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return attempt, nil
		}
		var perm *PermanentError
		if errors.As(lastErr, &perm) {
			return attempt, perm.Err
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}
		next := r.Backoff(attempt)
		if cb != nil {
			cb(attempt, lastErr, next)
		}
		if err := r.sleep(ctx, next); err != nil {
			return attempt, lastErr
		}
	}
	return r.cfg.MaxAttempts, lastErr
}

// Backoff returns the wait before attempt+1.
func (r *Retrier) Backoff(attempt int) time.Duration {
	d := float64(r.cfg.InitialInterval) * math.Pow(r.cfg.Multiplier, float64(attempt-1))
	if d > float64(r.cfg.MaxInterval) {
		d = float64(r.cfg.MaxInterval)
	}
	if r.cfg.JitterFactor > 0 {
		d += d * r.cfg.JitterFactor * (rand.Float64()*2 - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
