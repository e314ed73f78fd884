// Package retry retries operations with exponential backoff, honoring
// server-provided retry hints embedded in error messages.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config configures retry behavior.
type Config struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
	// InitialDelay is the delay after the first failure.
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	// Base is the multiplier for exponential backoff.
	Base float64 `yaml:"base" json:"base"`
	// MaxDelay caps computed delays. Zero means no cap.
	MaxDelay time.Duration `yaml:"max_delay" json:"max_delay"`
	// Jitter randomizes computed delays by a factor in [0.5, 1.5).
	Jitter bool `yaml:"jitter" json:"jitter"`
}

// DefaultConfig returns a default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Base:         2.0,
		MaxDelay:     time.Minute,
		Jitter:       true,
	}
}

func (c Config) normalized() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay < 0 {
		c.InitialDelay = 0
	}
	if c.Base <= 0 {
		c.Base = 2.0
	}
	return c
}

// Result contains the outcome of a retry operation.
type Result struct {
	// Attempts is the number of attempts made.
	Attempts int
	// Err is the last error (nil if successful). After exhausting all
	// attempts it is the error returned by the final attempt, unwrapped.
	Err error
	// Duration is the total time spent retrying.
	Duration time.Duration
}

// Retrier runs operations under a Config. The zero value sleeps on real
// timers and uses math/rand for jitter.
type Retrier struct {
	Config Config

	// Sleep waits for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
	// Rand returns a value in [0, 1).
	Rand func() float64
	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// New returns a Retrier for cfg.
func New(cfg Config) *Retrier {
	return &Retrier{Config: cfg}
}

// Do executes the operation with retries.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) Result {
	start := time.Now()
	cfg := r.Config.normalized()
	sleep := r.Sleep
	if sleep == nil {
		sleep = SleepWithContext
	}

	var result Result
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result.Attempts = attempt + 1

		if err := ctx.Err(); err != nil {
			if result.Err == nil {
				result.Err = err
			}
			break
		}

		err := op(ctx)
		if err == nil {
			result.Err = nil
			break
		}
		result.Err = err

		if IsPermanent(err) || attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := r.delay(cfg, attempt, err)
		if r.OnRetry != nil {
			r.OnRetry(attempt+1, err, delay)
		}
		if serr := sleep(ctx, delay); serr != nil {
			result.Err = serr
			break
		}
	}

	result.Duration = time.Since(start)
	return result
}

// delay returns the wait before the attempt following a failure of the
// zero-based attempt. A retry hint in err overrides the computed backoff.
func (r *Retrier) delay(cfg Config, attempt int, err error) time.Duration {
	if hint, ok := ParseRetryAfter(err); ok {
		return hint
	}
	d := Backoff(attempt, cfg.InitialDelay, cfg.MaxDelay, cfg.Base)
	if cfg.Jitter {
		random := r.Rand
		if random == nil {
			random = rand.Float64 // #nosec G404 -- jitter does not require cryptographic randomness
		}
		d = time.Duration(float64(d) * (0.5 + random()))
	}
	return d
}

// Do executes op with retries using the default sleep and random source.
func Do(ctx context.Context, cfg Config, op func(ctx context.Context) error) Result {
	return New(cfg).Do(ctx, op)
}

// DoWithValue executes an operation that returns a value with retries.
func DoWithValue[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error)) (T, Result) {
	var value T
	result := r.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	return value, result
}

// Backoff calculates initial × base^attempt for a zero-based attempt,
// capped at max when max is positive.
func Backoff(attempt int, initial, max time.Duration, base float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(initial) * math.Pow(base, float64(attempt))
	if max > 0 && delay > float64(max) {
		return max
	}
	if delay > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

var retryAfterPattern = regexp.MustCompile(`(?i)retry[ _-]?after:?\s*(\d+(?:\.\d+)?)\s*([a-z]*)`)

// retryAfterUnits maps the unit words a hint may carry. A number without
// a unit, or followed by an ordinary word, is in seconds. Other time
// units map to zero and the hint is ignored.
var retryAfterUnits = map[string]time.Duration{
	"s": time.Second, "sec": time.Second, "secs": time.Second, "second": time.Second, "seconds": time.Second,
	"ms": time.Millisecond, "msec": time.Millisecond, "msecs": time.Millisecond,
	"millisecond": time.Millisecond, "milliseconds": time.Millisecond,
	"ns": 0, "us": 0, "m": 0, "min": 0, "mins": 0, "minute": 0, "minutes": 0,
	"h": 0, "hr": 0, "hrs": 0, "hour": 0, "hours": 0, "d": 0, "day": 0, "days": 0,
}

// ParseRetryAfter extracts a server hint such as "retry after 7 seconds",
// "retry after 500ms" or "Retry-After: 7" from err's message. Hints in
// units other than seconds or milliseconds are not honored.
func ParseRetryAfter(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	m := retryAfterPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, false
	}
	n, perr := strconv.ParseFloat(m[1], 64)
	if perr != nil || n < 0 {
		return 0, false
	}
	unit := time.Second
	if u, known := retryAfterUnits[strings.ToLower(m[2])]; known {
		if u == 0 {
			return 0, false
		}
		unit = u
	}
	return time.Duration(n * float64(unit)), true
}

// PermanentError is an error that should not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps an error to indicate it should not be retried.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent checks if an error is permanent (shouldn't retry).
func IsPermanent(err error) bool {
	var permanent *PermanentError
	return errors.As(err, &permanent)
}

// IsRetryable checks if an error is retryable (not permanent and not nil).
func IsRetryable(err error) bool {
	return err != nil && !IsPermanent(err)
}
