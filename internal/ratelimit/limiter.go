// Package ratelimit paces calls to each provider with an independent
// minimum-interval gate.
package ratelimit

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Limiter holds one gate per provider. The gate set is fixed at
// construction, so Wait needs no locking beyond the gates themselves.
type Limiter struct {
	gates map[string]*rate.Limiter
}

// New builds a Limiter from provider → minimum interval. A non-positive
// interval leaves that provider ungated.
func New(intervals map[string]time.Duration) *Limiter {
	l := &Limiter{gates: make(map[string]*rate.Limiter, len(intervals))}
	for name, every := range intervals {
		if every <= 0 {
			continue
		}
		l.gates[name] = rate.NewLimiter(rate.Every(every), 1)
	}
	return l
}

// Wait blocks until provider may issue its next call. Unknown providers pass
// straight through. Cancellation aborts the wait.
func (l *Limiter) Wait(ctx context.Context, provider string) error {
	if l == nil {
		return nil
	}
	g, ok := l.gates[provider]
	if !ok {
		return nil
	}
	if err := g.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return eris.Wrapf(err, "ratelimit: wait %s", provider)
	}
	return nil
}

// Interval returns the configured gap for provider, or 0 when ungated.
func (l *Limiter) Interval(provider string) time.Duration {
	if l == nil {
		return 0
	}
	g, ok := l.gates[provider]
	if !ok {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(g.Limit()))
}
