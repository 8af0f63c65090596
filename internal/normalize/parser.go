// Package normalize turns free-text provider answers into structured brand
// mentions using a secondary Claude extraction call.
package normalize

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/sells-group/geo-benchmark/internal/brand"
	"github.com/sells-group/geo-benchmark/internal/cost"
	"github.com/sells-group/geo-benchmark/internal/model"
	"github.com/sells-group/geo-benchmark/internal/resilience"
	"github.com/sells-group/geo-benchmark/pkg/anthropic"
)

// WinnerNone marks a response with no favored brand.
const WinnerNone = "none"

// Result is the normalized extraction for one response.
type Result struct {
	Mentions           []model.Mention  `json:"mentions"`
	BrandsNotMentioned []string         `json:"brands_not_mentioned"`
	OverallWinner      string           `json:"overall_winner"`
	ContextIsWebinar   bool             `json:"zoom_context_is_webinar"`
	ParseError         string           `json:"parse_error,omitempty"`
	Usage              model.TokenUsage `json:"-"`
}

// Degraded reports whether the extraction failed.
func (r Result) Degraded() bool { return r.ParseError != "" }

// Config tunes the extraction call.
type Config struct {
	Model     string
	MaxTokens int64
	Timeout   time.Duration
	Retry     resilience.RetryConfig
}

// Parser extracts mentions. It is safe for concurrent use.
type Parser struct {
	client   anthropic.Client
	registry *brand.Registry
	cfg      Config
	calc     *cost.Calculator
	system   []anthropic.SystemBlock
}

// NewParser builds a Parser for the registry's brands.
func NewParser(client anthropic.Client, reg *brand.Registry, cfg Config, calc *cost.Calculator) *Parser {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 1
	}
	return &Parser{
		client:   client,
		registry: reg,
		cfg:      cfg,
		calc:     calc,
		system:   anthropic.BuildCachedSystemBlocks(systemPrompt(reg), ""),
	}
}

// Parse never fails: any call or decoding problem yields a degraded Result
// with ParseError set.
func (p *Parser) Parse(ctx context.Context, rawText string) Result {
	if strings.TrimSpace(rawText) == "" {
		return p.degraded(eris.New("normalize: empty response text"))
	}

	resp, err := resilience.DoVal(ctx, p.cfg.Retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		cctx := ctx
		if p.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
			defer cancel()
		}
		return p.client.CreateMessage(cctx, anthropic.MessageRequest{
			Model:     p.cfg.Model,
			MaxTokens: p.cfg.MaxTokens,
			System:    p.system,
			Messages:  anthropic.UserText(rawText),
		})
	})
	if err != nil {
		return p.degraded(eris.Wrap(err, "normalize: extraction call"))
	}

	usage := p.usage(resp)
	res, err := p.decode(resp.Text())
	if err != nil {
		res = p.degraded(err)
	}
	res.Usage = usage
	return res
}

func (p *Parser) usage(resp *anthropic.MessageResponse) model.TokenUsage {
	modelID := resp.Model
	if modelID == "" {
		modelID = p.cfg.Model
	}
	costUSD := p.calc.Estimate(modelID, cost.Usage{
		InputTokens:      resp.Usage.InputTokens,
		OutputTokens:     resp.Usage.OutputTokens,
		CacheWriteTokens: resp.Usage.CacheCreationInputTokens,
		CacheReadTokens:  resp.Usage.CacheReadInputTokens,
	})
	resp.Usage.LogCost(modelID, "normalize", costUSD)
	return model.TokenUsage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		CostUSD:      costUSD,
	}
}

// Decode normalizes an already-extracted reply without calling the model.
func (p *Parser) Decode(reply string) Result {
	res, err := p.decode(reply)
	if err != nil {
		return p.degraded(err)
	}
	return res
}

func (p *Parser) decode(reply string) (Result, error) {
	payload := ExtractJSON(reply)
	if payload == "" {
		return Result{}, eris.New("normalize: no JSON object in reply")
	}
	if !gjson.Valid(payload) {
		return Result{}, eris.New("normalize: invalid JSON in reply")
	}
	doc := gjson.Parse(payload)
	if !doc.IsObject() {
		return Result{}, eris.New("normalize: reply is not a JSON object")
	}

	list := doc.Get("mentions")
	if !list.IsArray() || len(list.Array()) == 0 {
		list = doc.Get("brands_mentioned")
	}

	res := Result{
		Mentions:         []model.Mention{},
		OverallWinner:    WinnerNone,
		ContextIsWebinar: true,
	}
	if ctxFlag := doc.Get("zoom_context_is_webinar"); ctxFlag.Exists() && ctxFlag.Type != gjson.Null {
		res.ContextIsWebinar = ctxFlag.Bool()
	}

	for _, m := range list.Array() {
		if !m.IsObject() {
			continue
		}
		res.Mentions = append(res.Mentions, p.mention(m, res.ContextIsWebinar))
	}

	if w := doc.Get("overall_winner"); w.Type == gjson.String {
		if s := brand.Normalize(w.String()); s != "" && s != WinnerNone {
			res.OverallWinner = p.registry.Resolve(s)
		}
	}

	res.BrandsNotMentioned = p.notMentioned(res.Mentions)
	return res, nil
}

func (p *Parser) mention(m gjson.Result, contextIsWebinar bool) model.Mention {
	raw := m.Get("brand").String()
	if raw == "" {
		raw = m.Get("brand_id").String()
	}
	key := p.registry.Resolve(raw)

	pos := int(m.Get("position").Int())
	if pos <= 0 {
		pos = int(m.Get("mention_order").Int())
	}
	if pos <= 0 {
		pos = 1
	}

	sentiment := strings.ToLower(strings.TrimSpace(m.Get("sentiment").String()))
	switch sentiment {
	case model.SentimentPositive, model.SentimentNeutral, model.SentimentNegative:
	default:
		sentiment = model.SentimentNeutral
	}

	var score *float64
	switch s := m.Get("sentiment_score"); s.Type {
	case gjson.Null:
		if !s.Exists() {
			score = ptr(0.0)
		}
	case gjson.Number, gjson.String:
		if v, ok := number(s); ok {
			score = ptr(clamp(v, -1, 1))
		} else {
			score = ptr(0.0)
		}
	default:
		score = ptr(0.0)
	}

	context := m.Get("context").String()
	if p.registry.Scoped(key) && p.outOfScope(key, context, contextIsWebinar) {
		key = brand.Other
	}

	return model.Mention{
		Brand:          key,
		Position:       pos,
		Context:        context,
		Sentiment:      sentiment,
		SentimentScore: score,
		IsPrimary:      m.Get("is_primary_recommendation").Bool(),
	}
}

// outOfScope reports a mention of a context-filtered brand that is about an
// excluded product line (e.g. Zoom Meetings rather than Zoom Webinars).
func (p *Parser) outOfScope(key, context string, contextIsWebinar bool) bool {
	if context == "" {
		return !contextIsWebinar
	}
	return p.registry.OutOfScope(key, context)
}

func (p *Parser) notMentioned(mentions []model.Mention) []string {
	seen := make(map[string]bool, len(mentions))
	for _, m := range mentions {
		seen[m.Brand] = true
	}
	out := []string{}
	for _, k := range p.registry.Keys() {
		if !seen[k] {
			out = append(out, k)
		}
	}
	return out
}

func (p *Parser) degraded(err error) Result {
	zap.L().Warn("response normalization degraded", zap.Error(err))
	return Result{
		Mentions:           []model.Mention{},
		BrandsNotMentioned: p.registry.Keys(),
		OverallWinner:      WinnerNone,
		ContextIsWebinar:   true,
		ParseError:         err.Error(),
	}
}

func number(r gjson.Result) (float64, bool) {
	if r.Type == gjson.Number {
		return r.Float(), true
	}
	s := strings.TrimSpace(r.String())
	if s == "" {
		return 0, false
	}
	v := gjson.Parse(s)
	if v.Type != gjson.Number {
		return 0, false
	}
	return v.Float(), true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func ptr[T any](v T) *T { return &v }
