package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoffDelayIsCappedExponential(t *testing.T) {
	backoff := Backoff{
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  8 * time.Second,
		Jitter:    func() float64 { return 1 },
	}
	want := []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second,
	}
	for attempt, expected := range want {
		if got := backoff.Delay(attempt); got != expected {
			t.Fatalf("Delay(%d) = %v, want %v", attempt, got, expected)
		}
	}
}

func TestBackoffDelayAppliesFullJitter(t *testing.T) {
	backoff := Backoff{BaseDelay: time.Second, MaxDelay: 8 * time.Second, Jitter: func() float64 { return 0.25 }}
	if got := backoff.Delay(1); got != 500*time.Millisecond {
		t.Fatalf("Delay(1) = %v, want 500ms", got)
	}
}

func TestBackoffDoStopsOnCancelledSleep(t *testing.T) {
	calls := 0
	backoff := Backoff{
		BaseDelay:  time.Millisecond,
		MaxDelay:   time.Millisecond,
		MaxRetries: 3,
		Sleep: func(context.Context, time.Duration) error {
			return context.Canceled
		},
	}
	err := backoff.Do(context.Background(), OpComplete, func(context.Context) error {
		calls++
		return &UpstreamError{Op: OpComplete, StatusCode: 503, Retryable: true}
	})
	if err == nil || calls != 1 {
		t.Fatalf("Do() err = %v calls = %d", err, calls)
	}
}

func TestBackoffDoDoesNotRetryPlainErrors(t *testing.T) {
	calls := 0
	backoff := Backoff{BaseDelay: time.Millisecond, MaxRetries: 3, Sleep: func(context.Context, time.Duration) error { return nil }}
	plain := errors.New("marshal failure")
	err := backoff.Do(context.Background(), OpEmbed, func(context.Context) error {
		calls++
		return plain
	})
	if !errors.Is(err, plain) || calls != 1 {
		t.Fatalf("Do() err = %v calls = %d", err, calls)
	}
}
