package explain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lexwatch/lexwatch/pkg/logger"
)

// scriptedProvider returns one canned outcome per attempt, in order
type scriptedProvider struct {
	outcomes []error
	result   string
	calls    int
}

func (p *scriptedProvider) Explain(ctx context.Context, text string) (string, error) {
	idx := p.calls
	p.calls++
	if idx < len(p.outcomes) && p.outcomes[idx] != nil {
		return "", p.outcomes[idx]
	}
	return p.result, nil
}

func retryable(msg string) error {
	return &attemptError{class: ClassRetryable, err: errors.New(msg)}
}

func fatal(msg string) error {
	return &attemptError{class: ClassFatal, err: errors.New(msg)}
}

// newTestClient wires a client to the provider with sleeps recorded instead
// of performed
func newTestClient(p Provider, policy RetryPolicy) (*Client, *[]time.Duration) {
	c := NewClient(p, policy, logger.NewNop())
	var sleeps []time.Duration
	c.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return c, &sleeps
}

func TestSubmitSucceedsAfterRetries(t *testing.T) {
	provider := &scriptedProvider{
		outcomes: []error{retryable("timeout"), retryable("503"), nil},
		result:   "AI: artificial intelligence",
	}
	client, sleeps := newTestClient(provider, RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	})

	got, err := client.Submit(context.Background(), "some transcript")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if got != "AI: artificial intelligence" {
		t.Errorf("result = %q", got)
	}
	if provider.calls != 3 {
		t.Errorf("provider called %d times, want 3", provider.calls)
	}

	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(*sleeps) != len(want) {
		t.Fatalf("slept %d times (%v), want %d", len(*sleeps), *sleeps, len(want))
	}
	for i, d := range want {
		if (*sleeps)[i] != d {
			t.Errorf("sleep %d = %v, want %v", i, (*sleeps)[i], d)
		}
	}
}

func TestSubmitExhaustsRetries(t *testing.T) {
	provider := &scriptedProvider{
		outcomes: []error{retryable("a"), retryable("b"), retryable("c")},
	}
	client, sleeps := newTestClient(provider, RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	})

	_, err := client.Submit(context.Background(), "text")
	if err == nil {
		t.Fatal("expected terminal error after exhausting retries")
	}

	var se *SubmitError
	if !errors.As(err, &se) {
		t.Fatalf("error is %T, want *SubmitError", err)
	}
	if se.Class != ClassRetryable {
		t.Errorf("class = %v, want retryable", se.Class)
	}
	if se.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", se.Attempts)
	}
	if len(*sleeps) != 2 {
		t.Errorf("slept %d times, want 2", len(*sleeps))
	}
}

func TestSubmitFatalShortCircuits(t *testing.T) {
	provider := &scriptedProvider{
		outcomes: []error{fatal("401 unauthorized")},
	}
	client, sleeps := newTestClient(provider, RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	})

	_, err := client.Submit(context.Background(), "text")
	if !IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if provider.calls != 1 {
		t.Errorf("provider called %d times, want 1", provider.calls)
	}
	if len(*sleeps) != 0 {
		t.Errorf("slept %d times, want 0", len(*sleeps))
	}
}

func TestSubmitHonorsRetryAfterHint(t *testing.T) {
	hinted := &attemptError{
		class:      ClassRetryable,
		retryAfter: 7 * time.Second,
		err:        errors.New("429"),
	}
	provider := &scriptedProvider{
		outcomes: []error{hinted, nil},
		result:   "ok",
	}
	client, sleeps := newTestClient(provider, RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	})

	if _, err := client.Submit(context.Background(), "text"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if len(*sleeps) != 1 || (*sleeps)[0] != 7*time.Second {
		t.Errorf("sleeps = %v, want [7s]", *sleeps)
	}
}

func TestSubmitClampsRetryAfterToMaxDelay(t *testing.T) {
	hinted := &attemptError{
		class:      ClassRetryable,
		retryAfter: 5 * time.Minute,
		err:        errors.New("429"),
	}
	provider := &scriptedProvider{
		outcomes: []error{hinted, nil},
		result:   "ok",
	}
	client, sleeps := newTestClient(provider, RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	})

	if _, err := client.Submit(context.Background(), "text"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if len(*sleeps) != 1 || (*sleeps)[0] != 30*time.Second {
		t.Errorf("sleeps = %v, want [30s]", *sleeps)
	}
}

func TestSubmitStopsOnCancelledContext(t *testing.T) {
	provider := &scriptedProvider{
		outcomes: []error{retryable("timeout"), nil},
		result:   "ok",
	}
	client, _ := newTestClient(provider, RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Submit(ctx, "text")
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error chain missing context.Canceled: %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("provider called %d times after cancellation, want 0", provider.calls)
	}
}

func TestRetryHookFiresPerRetry(t *testing.T) {
	provider := &scriptedProvider{
		outcomes: []error{retryable("a"), retryable("b"), nil},
		result:   "ok",
	}
	client, _ := newTestClient(provider, RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	})

	retries := 0
	client.SetRetryHook(func() { retries++ })

	if _, err := client.Submit(context.Background(), "text"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if retries != 2 {
		t.Errorf("retry hook fired %d times, want 2", retries)
	}
}
