package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWait_SpacesCallsPerProvider(t *testing.T) {
	l := New(map[string]time.Duration{"grok": 50 * time.Millisecond})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx, "grok"))
	}
	// First call is immediate; the next two each wait one interval.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestWait_ProvidersAreIndependent(t *testing.T) {
	l := New(map[string]time.Duration{
		"grok":   time.Hour,
		"claude": time.Millisecond,
	})
	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, "grok"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			_ = l.Wait(ctx, "claude")
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("claude blocked behind grok's gate")
	}
}

func TestWait_UnknownProviderPasses(t *testing.T) {
	l := New(map[string]time.Duration{"grok": time.Hour})
	for i := 0; i < 5; i++ {
		assert.NoError(t, l.Wait(context.Background(), "unknown"))
	}
	var nilLimiter *Limiter
	assert.NoError(t, nilLimiter.Wait(context.Background(), "grok"))
}

func TestWait_ZeroIntervalUngated(t *testing.T) {
	l := New(map[string]time.Duration{"openai": 0})
	assert.Equal(t, time.Duration(0), l.Interval("openai"))
	for i := 0; i < 5; i++ {
		assert.NoError(t, l.Wait(context.Background(), "openai"))
	}
}

func TestWait_CancelAborts(t *testing.T) {
	l := New(map[string]time.Duration{"grok": time.Hour})
	require.NoError(t, l.Wait(context.Background(), "grok"))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := l.Wait(ctx, "grok")
	require.Error(t, err)
}

func TestWait_ConcurrentCallersSerialize(t *testing.T) {
	l := New(map[string]time.Duration{"claude": 20 * time.Millisecond})
	var (
		mu    sync.Mutex
		times []time.Time
		wg    sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Wait(context.Background(), "claude"))
			mu.Lock()
			times = append(times, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, times, 4)

	first, last := times[0], times[0]
	for _, ts := range times {
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	assert.GreaterOrEqual(t, last.Sub(first), 50*time.Millisecond)
}

func TestInterval(t *testing.T) {
	l := New(map[string]time.Duration{"grok": 2500 * time.Millisecond})
	assert.InDelta(t, float64(2500*time.Millisecond), float64(l.Interval("grok")), float64(time.Millisecond))
	assert.Equal(t, time.Duration(0), l.Interval("missing"))
}
