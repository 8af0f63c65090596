package provider

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geo-benchmark/internal/cost"
	"github.com/sells-group/geo-benchmark/internal/model"
	"github.com/sells-group/geo-benchmark/pkg/responses"
)

// Grok queries xAI's Responses API with the live web_search tool.
type Grok struct {
	client  responses.Client
	model   string
	calc    *cost.Calculator
	timeout time.Duration
}

// NewGrok builds the grok_web_search provider.
func NewGrok(client responses.Client, modelID string, calc *cost.Calculator, timeout time.Duration) *Grok {
	return &Grok{client: client, model: modelID, calc: calc, timeout: timeout}
}

// Name implements Client.
func (g *Grok) Name() model.Provider { return model.ProviderGrok }

// Query makes one web-search call.
func (g *Grok) Query(ctx context.Context, question string) (*RawResult, error) {
	resp, err := bounded(ctx, g.timeout, func(ctx context.Context) (*responses.Response, error) {
		return g.client.Create(ctx, responses.Request{
			Model: g.model,
			Input: WebSearchSystemPrompt + "\n\n" + question,
			Tools: []responses.Tool{{Type: responses.ToolWebSearch}},
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "grok: web search")
	}
	return fromResponses(resp, g.model, g.calc)
}

func fromResponses(resp *responses.Response, fallbackModel string, calc *cost.Calculator) (*RawResult, error) {
	text := resp.Text()
	if text == "" {
		return nil, ErrEmptyAnswer
	}

	modelID := resp.Model
	if modelID == "" {
		modelID = fallbackModel
	}

	anns := resp.URLCitations()
	sources := make([]Source, 0, len(anns))
	for _, a := range anns {
		sources = append(sources, Source{URL: a.URL, Title: a.Title})
	}

	usage := model.TokenUsage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	usage.CostUSD = calc.Estimate(modelID, cost.Usage{
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
	})

	return &RawResult{
		Text:      text,
		Model:     modelID,
		Usage:     usage,
		Citations: DedupeSources(sources),
	}, nil
}
