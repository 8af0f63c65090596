package provider

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geo-benchmark/internal/cost"
	"github.com/sells-group/geo-benchmark/internal/model"
	"github.com/sells-group/geo-benchmark/pkg/anthropic"
)

// Claude answers from model knowledge only and never returns citations.
type Claude struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	calc      *cost.Calculator
	timeout   time.Duration
}

// NewClaude builds the claude_parametric provider.
func NewClaude(client anthropic.Client, modelID string, maxTokens int64, calc *cost.Calculator, timeout time.Duration) *Claude {
	return &Claude{client: client, model: modelID, maxTokens: maxTokens, calc: calc, timeout: timeout}
}

// Name implements Client.
func (c *Claude) Name() model.Provider { return model.ProviderClaude }

// Query makes one Messages API call.
func (c *Claude) Query(ctx context.Context, question string) (*RawResult, error) {
	resp, err := bounded(ctx, c.timeout, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return c.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     c.model,
			MaxTokens: c.maxTokens,
			System:    []anthropic.SystemBlock{{Text: ParametricSystemPrompt}},
			Messages:  anthropic.UserText(question),
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "claude: create message")
	}

	text := resp.Text()
	if text == "" {
		return nil, ErrEmptyAnswer
	}
	modelID := resp.Model
	if modelID == "" {
		modelID = c.model
	}

	cu := cost.Usage{
		InputTokens:      resp.Usage.InputTokens,
		OutputTokens:     resp.Usage.OutputTokens,
		CacheWriteTokens: resp.Usage.CacheCreationInputTokens,
		CacheReadTokens:  resp.Usage.CacheReadInputTokens,
	}
	costUSD := c.calc.Estimate(modelID, cu)
	resp.Usage.LogCost(modelID, string(model.ProviderClaude), costUSD)

	return &RawResult{
		Text:  text,
		Model: modelID,
		Usage: model.TokenUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			CostUSD:      costUSD,
		},
		Citations: []Source{},
	}, nil
}
