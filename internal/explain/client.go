package explain

import (
	"context"
	"math/rand"
	"time"

	"github.com/lexwatch/lexwatch/pkg/logger"
)

// Provider performs a single submission attempt against an explanation
// backend. Errors must be classified via attemptError where the provider can
// tell retryable from fatal; unclassified errors are assumed retryable.
type Provider interface {
	Explain(ctx context.Context, text string) (string, error)
}

// RetryPolicy bounds the retry behavior of Client
type RetryPolicy struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // backoff for the first retry; doubles per attempt
	MaxDelay    time.Duration // cap for any single wait, including Retry-After hints
	Jitter      bool          // apply equal-jitter to computed delays
}

// Client submits transcribed text to an explanation provider with bounded
// retries and exponential backoff. The caller only ever sees the terminal
// outcome; intermediate retryable failures are handled internally. A Client
// is safe for concurrent use across independent submissions.
type Client struct {
	provider Provider
	policy   RetryPolicy
	logger   *logger.Logger
	sleep    func(time.Duration) // replaced in tests
	onRetry  func()
}

// NewClient creates a retrying submission client around the given provider
func NewClient(provider Provider, policy RetryPolicy, log *logger.Logger) *Client {
	return &Client{
		provider: provider,
		policy:   policy,
		logger:   log.Named("explain-client"),
		sleep:    time.Sleep,
	}
}

// SetRetryHook registers a callback invoked once per retry wait. Used to feed
// retry counters without coupling this package to the metrics registry.
func (c *Client) SetRetryHook(f func()) {
	c.onRetry = f
}

// Submit sends the text and returns the raw explanation body. On failure it
// returns a *SubmitError: fatal failures short-circuit with no retry, and
// exhausted retries are reported, not swallowed.
func (c *Client) Submit(ctx context.Context, text string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			if c.onRetry != nil {
				c.onRetry()
			}
			delay := c.backoffDelay(attempt, lastErr)
			c.logger.Info("Retrying submission",
				logger.Int("attempt", attempt+1),
				logger.Int("max_attempts", c.policy.MaxAttempts),
				logger.Duration("backoff", delay))
			c.sleep(delay)
		}

		if err := ctx.Err(); err != nil {
			return "", &SubmitError{Class: ClassRetryable, Attempts: attempt, Err: err}
		}

		raw, err := c.provider.Explain(ctx, text)
		if err == nil {
			if attempt > 0 {
				c.logger.Info("Submission succeeded after retries",
					logger.Int("attempts_needed", attempt+1))
			}
			return raw, nil
		}
		lastErr = err

		if classOf(err) == ClassFatal {
			return "", &SubmitError{Class: ClassFatal, Attempts: attempt + 1, Err: err}
		}

		c.logger.Warn("Submission attempt failed, may retry",
			logger.Error(err),
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", c.policy.MaxAttempts))
	}

	return "", &SubmitError{Class: ClassRetryable, Attempts: c.policy.MaxAttempts, Err: lastErr}
}

// backoffDelay computes the wait before the given retry attempt (attempt >= 1).
// A server-specified Retry-After on the previous failure overrides the
// computed backoff; either way the wait is clamped to MaxDelay.
func (c *Client) backoffDelay(attempt int, lastErr error) time.Duration {
	if hint := retryAfterOf(lastErr); hint > 0 {
		if hint > c.policy.MaxDelay {
			return c.policy.MaxDelay
		}
		return hint
	}

	delay := c.policy.BaseDelay << uint(attempt-1)
	if delay > c.policy.MaxDelay {
		delay = c.policy.MaxDelay
	}
	if c.policy.Jitter {
		// Equal jitter: half the delay fixed, half uniformly random
		half := delay / 2
		delay = half + time.Duration(rand.Int63n(int64(half)+1))
	}
	return delay
}
