package retry

import (
	"time"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 1 * time.Second
)

// Params holds the retry budget for a single invocation.
type Params struct {
	MaxRetries int
	BaseDelay  time.Duration
	Retryable  func(error) bool
	Sleep      func(time.Duration)
}

type Option func(*Params)

func WithMaxRetries(n int) Option {
	return func(p *Params) {
		if n > 0 {
			p.MaxRetries = n
		}
	}
}

func WithBaseDelay(d time.Duration) Option {
	return func(p *Params) {
		if d > 0 {
			p.BaseDelay = d
		}
	}
}

// WithRetryable sets the classifier deciding whether a failure is worth
// another attempt. Errors it rejects are returned immediately without
// consuming the retry budget.
func WithRetryable(fn func(error) bool) Option {
	return func(p *Params) {
		p.Retryable = fn
	}
}

// WithSleep overrides the delay function, used by tests to observe the
// backoff schedule without waiting it out.
func WithSleep(fn func(time.Duration)) Option {
	return func(p *Params) {
		p.Sleep = fn
	}
}

func defaultParams() *Params {
	return &Params{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		Retryable:  func(error) bool { return true },
		Sleep:      time.Sleep,
	}
}

// Invoke runs fn up to MaxRetries times, sleeping base×2^attempt between
// consecutive failures (base, 2×base, 4×base, ...). On the first success
// the result is returned as-is. Non-retryable errors short-circuit.
// After the last attempt fails, the last error is returned; a terminal
// failure is never swallowed.
//
// The backoff sleep suspends only the calling goroutine, so sibling
// agents keep running through it.
func Invoke(fn func() (any, error), opts ...Option) (any, error) {
	params := defaultParams()

	for _, opt := range opts {
		opt(params)
	}

	var lastErr error
	for attempt := 0; attempt < params.MaxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		if !params.Retryable(err) {
			return nil, err
		}
		lastErr = err
		if attempt < params.MaxRetries-1 {
			params.Sleep(params.BaseDelay * (1 << attempt))
		}
	}
	return nil, lastErr
}
