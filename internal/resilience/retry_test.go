package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
}

func TestDoVal_FirstAttemptSucceeds(t *testing.T) {
	calls := 0
	got, err := DoVal(context.Background(), fastRetry(), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("got %q, %v", got, err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoVal_RecoversFromTransient(t *testing.T) {
	calls := 0
	got, err := DoVal(context.Background(), fastRetry(), func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, NewTransientError(errors.New("rate limited"), 429)
		}
		return 7, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 7 || calls != 3 {
		t.Errorf("got %d after %d calls", got, calls)
	}
}

func TestDoVal_ExhaustsAttempts(t *testing.T) {
	calls := 0
	retries := 0
	cfg := fastRetry()
	cfg.OnRetry = func(int, error) { retries++ }
	_, err := DoVal(context.Background(), cfg, func(context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("unavailable"), 503)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var te *TransientError
	if !errors.As(err, &te) || te.StatusCode != 503 {
		t.Errorf("expected last transient error to surface, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if retries != 2 {
		t.Errorf("expected 2 retry callbacks, got %d", retries)
	}
}

func TestDoVal_PermanentNotRetried(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(), func(context.Context) error {
		calls++
		return errors.New("invalid api key")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoVal_BeforeAttemptRunsEachTime(t *testing.T) {
	waits := 0
	cfg := fastRetry()
	cfg.BeforeAttempt = func(context.Context) error {
		waits++
		return nil
	}
	calls := 0
	_ = Do(context.Background(), cfg, func(context.Context) error {
		calls++
		return NewTransientError(errors.New("boom"), 500)
	})
	if waits != 3 || calls != 3 {
		t.Errorf("waits=%d calls=%d, want 3 and 3", waits, calls)
	}
}

func TestDoVal_BeforeAttemptErrorStops(t *testing.T) {
	gate := errors.New("gate closed")
	cfg := fastRetry()
	cfg.BeforeAttempt = func(context.Context) error { return gate }
	calls := 0
	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, gate) {
		t.Errorf("expected gate error, got %v", err)
	}
	if calls != 0 {
		t.Errorf("fn should not run, ran %d times", calls)
	}
}

func TestDoVal_BeforeAttemptErrorKeepsProviderError(t *testing.T) {
	first := NewTransientError(errors.New("overloaded"), 529)
	n := 0
	cfg := fastRetry()
	cfg.BeforeAttempt = func(context.Context) error {
		n++
		if n > 1 {
			return context.Canceled
		}
		return nil
	}
	err := Do(context.Background(), cfg, func(context.Context) error { return first })
	if !errors.Is(err, first) {
		t.Errorf("expected provider error, got %v", err)
	}
}

func TestDoVal_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cfg := fastRetry()
	cfg.InitialBackoff = time.Hour
	cfg.MaxBackoff = time.Hour
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, cfg, func(context.Context) error {
			calls++
			return NewTransientError(errors.New("slow"), 503)
		})
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retry loop did not stop on cancel")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoVal_CustomShouldRetry(t *testing.T) {
	calls := 0
	cfg := fastRetry()
	cfg.ShouldRetry = func(error) bool { return true }
	_ = Do(context.Background(), cfg, func(context.Context) error {
		calls++
		return errors.New("anything")
	})
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.JitterFraction = 0
	want := []time.Duration{4 * time.Second, 8 * time.Second, 16 * time.Second, 32 * time.Second, 60 * time.Second, 60 * time.Second}
	for i, w := range want {
		if got := backoff(i, cfg); got != w {
			t.Errorf("attempt %d: got %v, want %v", i, got, w)
		}
	}
}

func TestBackoff_JitterStaysInBounds(t *testing.T) {
	cfg := DefaultRetryConfig()
	for i := 0; i < 200; i++ {
		d := backoff(0, cfg)
		if d < 3*time.Second || d > 5*time.Second {
			t.Fatalf("jittered delay %v outside ±25%% of 4s", d)
		}
		if c := backoff(10, cfg); c > cfg.MaxBackoff {
			t.Fatalf("delay %v exceeds cap", c)
		}
	}
}

func TestWithDefaults(t *testing.T) {
	cfg := withDefaults(RetryConfig{JitterFraction: -1})
	if cfg.MaxAttempts != 3 || cfg.InitialBackoff != 4*time.Second || cfg.MaxBackoff != 60*time.Second || cfg.Multiplier != 2 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.JitterFraction != 0 {
		t.Errorf("negative jitter should clamp to 0, got %v", cfg.JitterFraction)
	}
}

func TestRetryLogger(t *testing.T) {
	hook := RetryLogger("grok_web_search", "query")
	hook(1, errors.New("x"))
}
