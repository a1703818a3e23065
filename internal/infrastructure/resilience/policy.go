package resilience

import "time"

// Config tunes the retry loop and the per-operation circuit breakers.
// Zero or out-of-range fields fall back to the defaults, so a partially
// filled literal is safe to pass.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

const (
	defaultRetryAttempts   = 3
	defaultInitialBackoff  = 100 * time.Millisecond
	defaultMaxBackoff      = 400 * time.Millisecond
	defaultRetryMultiplier = 2.0

	defaultBreakerMinRequests = 10
	defaultBreakerRatio       = 0.5
	defaultBreakerOpenTimeout = 30 * time.Second
	defaultBreakerHalfOpenMax = 2
)

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    defaultRetryAttempts,
		RetryInitialBackoff: defaultInitialBackoff,
		RetryMaxBackoff:     defaultMaxBackoff,
		RetryMultiplier:     defaultRetryMultiplier,

		BreakerEnabled:          true,
		BreakerMinRequests:      defaultBreakerMinRequests,
		BreakerFailureRatio:     defaultBreakerRatio,
		BreakerOpenTimeout:      defaultBreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: defaultBreakerHalfOpenMax,
	}
}

// normalize repairs unusable values. BreakerEnabled is left alone: off
// means off, the breaker fields only need sane values for when it is on.
func (c Config) normalize() Config {
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = defaultRetryAttempts
	}
	if c.RetryInitialBackoff <= 0 {
		c.RetryInitialBackoff = defaultInitialBackoff
	}
	if c.RetryMaxBackoff <= 0 {
		c.RetryMaxBackoff = defaultMaxBackoff
	}
	if c.RetryMaxBackoff < c.RetryInitialBackoff {
		c.RetryMaxBackoff = c.RetryInitialBackoff
	}
	if c.RetryMultiplier < 1 {
		c.RetryMultiplier = defaultRetryMultiplier
	}

	if c.BreakerMinRequests == 0 {
		c.BreakerMinRequests = defaultBreakerMinRequests
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		c.BreakerFailureRatio = defaultBreakerRatio
	}
	if c.BreakerOpenTimeout <= 0 {
		c.BreakerOpenTimeout = defaultBreakerOpenTimeout
	}
	if c.BreakerHalfOpenMaxCalls == 0 {
		c.BreakerHalfOpenMaxCalls = defaultBreakerHalfOpenMax
	}
	return c
}
