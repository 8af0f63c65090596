// Package provider implements the three benchmark answer sources behind one
// Client contract, with rate limiting, retries, and circuit breaking applied
// uniformly by Guard.
package provider

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geo-benchmark/internal/model"
	"github.com/sells-group/geo-benchmark/internal/ratelimit"
	"github.com/sells-group/geo-benchmark/internal/resilience"
)

// Client answers a benchmark question.
type Client interface {
	Name() model.Provider
	Query(ctx context.Context, question string) (*RawResult, error)
}

// RawResult is an unparsed provider answer.
type RawResult struct {
	Text      string
	Model     string
	Usage     model.TokenUsage
	Citations []Source
}

// Source is a cited URL as reported by the provider.
type Source struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// ErrEmptyAnswer is returned when a provider replies without any text.
var ErrEmptyAnswer = eris.New("provider: empty answer")

const (
	analystPrompt = "You are a knowledgeable B2B marketing technology analyst. " +
		"When answering questions about webinar platforms and virtual event solutions, " +
		"provide comprehensive, balanced comparisons."
	zoomScope = "Focus on enterprise B2B use cases. When discussing Zoom, focus ONLY on " +
		"Zoom Webinars and Zoom Events (not Zoom Meetings or video conferencing)."

	// WebSearchSystemPrompt frames live-search providers.
	WebSearchSystemPrompt = analystPrompt + " Always cite your sources with URLs. " + zoomScope
	// ParametricSystemPrompt frames the knowledge-only provider.
	ParametricSystemPrompt = "You are a knowledgeable B2B marketing technology analyst. " +
		"When answering questions about webinar platforms and virtual event solutions, " +
		"provide comprehensive, balanced comparisons based on your knowledge. " + zoomScope
)

// DedupeSources drops empty URLs and keeps the first occurrence of each URL,
// preserving order.
func DedupeSources(in []Source) []Source {
	out := make([]Source, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s.URL = strings.TrimSpace(s.URL)
		if s.URL == "" {
			continue
		}
		if _, dup := seen[s.URL]; dup {
			continue
		}
		seen[s.URL] = struct{}{}
		out = append(out, s)
	}
	return out
}

// bounded runs fn under a per-call timeout. A zero timeout only inherits ctx.
func bounded[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(cctx)
}

// Guard applies pacing, retry, and breaking around a provider's single-attempt
// call. One Guard is shared by every client of an orchestrator.
type Guard struct {
	Limiter  *ratelimit.Limiter
	Breakers *resilience.Breakers
	Retry    resilience.RetryConfig
}

// Wrap returns c with the guard applied.
func (g Guard) Wrap(c Client) Client {
	var cb *resilience.CircuitBreaker
	if g.Breakers != nil {
		cb = g.Breakers.Get(string(c.Name()))
	}
	return &guarded{inner: c, guard: g, breaker: cb}
}

type guarded struct {
	inner   Client
	guard   Guard
	breaker *resilience.CircuitBreaker
}

func (g *guarded) Name() model.Provider { return g.inner.Name() }

func (g *guarded) Query(ctx context.Context, question string) (*RawResult, error) {
	name := string(g.inner.Name())
	cfg := g.guard.Retry
	cfg.BeforeAttempt = func(ctx context.Context) error {
		return g.guard.Limiter.Wait(ctx, name)
	}
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(name, "query")
	}

	attempt := func(ctx context.Context) (*RawResult, error) {
		if g.breaker == nil {
			return g.inner.Query(ctx, question)
		}
		return resilience.ExecuteVal(ctx, g.breaker, func(ctx context.Context) (*RawResult, error) {
			return g.inner.Query(ctx, question)
		})
	}

	res, err := resilience.DoVal(ctx, cfg, attempt)
	if err != nil {
		return nil, eris.Wrapf(err, "provider: %s query", name)
	}
	return res, nil
}
