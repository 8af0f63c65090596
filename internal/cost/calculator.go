// Package cost estimates USD spend for provider calls from token usage.
package cost

import "strings"

// ModelRate is per-million-token pricing for one model.
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
	// PerRequest is a flat fee added per call (web search tool charges).
	PerRequest float64 `yaml:"per_request" mapstructure:"per_request"`
}

// Rates maps model ids to pricing.
type Rates map[string]ModelRate

// Usage is the token breakdown of one call.
type Usage struct {
	InputTokens      int64
	OutputTokens     int64
	CacheWriteTokens int64
	CacheReadTokens  int64
}

// Calculator computes call costs.
type Calculator struct {
	rates Rates
}

// NewCalculator returns a Calculator over rates. Nil rates use DefaultRates.
func NewCalculator(rates Rates) *Calculator {
	if rates == nil {
		rates = DefaultRates()
	}
	return &Calculator{rates: rates}
}

// Rate looks up pricing for model. Dated snapshot ids returned by providers
// ("gpt-4o-2024-08-06") fall back to the longest configured prefix.
func (c *Calculator) Rate(model string) (ModelRate, bool) {
	if c == nil {
		return ModelRate{}, false
	}
	if r, ok := c.rates[model]; ok {
		return r, true
	}
	best := ""
	for id := range c.rates {
		if strings.HasPrefix(model, id) && len(id) > len(best) {
			best = id
		}
	}
	if best == "" {
		return ModelRate{}, false
	}
	return c.rates[best], true
}

// Estimate returns the USD cost of one call, or 0 for unpriced models and
// a nil Calculator.
func (c *Calculator) Estimate(model string, u Usage) float64 {
	r, ok := c.Rate(model)
	if !ok {
		return 0
	}
	perTok := func(n int64, price float64) float64 { return float64(n) / 1e6 * price }
	return perTok(u.InputTokens, r.Input) +
		perTok(u.OutputTokens, r.Output) +
		perTok(u.CacheWriteTokens, r.Input*r.CacheWriteMul) +
		perTok(u.CacheReadTokens, r.Input*r.CacheReadMul) +
		r.PerRequest
}

// DefaultRates is list pricing for the models the benchmark calls.
func DefaultRates() Rates {
	return Rates{
		"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
		"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
		"grok-4-0709":                {Input: 3.00, Output: 15.00},
		"grok-4":                     {Input: 3.00, Output: 15.00},
		"gpt-4o":                     {Input: 2.50, Output: 10.00},
		"gpt-4o-mini":                {Input: 0.15, Output: 0.60},
	}
}
