package provider

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geo-benchmark/internal/cost"
	"github.com/sells-group/geo-benchmark/internal/model"
	"github.com/sells-group/geo-benchmark/pkg/openai"
	"github.com/sells-group/geo-benchmark/pkg/responses"
)

// ChatGPTConfig holds the models and limits for the chatgpt_web_search provider.
type ChatGPTConfig struct {
	SearchModel string
	ChatModel   string
	MaxTokens   int64
	Timeout     time.Duration
}

// ChatGPT tries OpenAI's Responses API with web_search_preview, then falls
// back to a plain chat completion without citations.
type ChatGPT struct {
	search responses.Client
	chat   openai.ChatClient
	cfg    ChatGPTConfig
	calc   *cost.Calculator
}

// NewChatGPT builds the chatgpt_web_search provider.
func NewChatGPT(search responses.Client, chat openai.ChatClient, cfg ChatGPTConfig, calc *cost.Calculator) *ChatGPT {
	if cfg.ChatModel == "" {
		cfg.ChatModel = cfg.SearchModel
	}
	return &ChatGPT{search: search, chat: chat, cfg: cfg, calc: calc}
}

// Name implements Client.
func (c *ChatGPT) Name() model.Provider { return model.ProviderChatGPT }

// Query runs the web-search step and, if it fails for any reason other than
// cancellation, the chat step. The first failure is only logged.
func (c *ChatGPT) Query(ctx context.Context, question string) (*RawResult, error) {
	res, err := c.webSearch(ctx, question)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	zap.L().Warn("chatgpt web search failed, falling back to chat completions",
		zap.String("provider", string(model.ProviderChatGPT)),
		zap.Error(err),
	)
	return c.chatCompletion(ctx, question)
}

func (c *ChatGPT) webSearch(ctx context.Context, question string) (*RawResult, error) {
	resp, err := bounded(ctx, c.cfg.Timeout, func(ctx context.Context) (*responses.Response, error) {
		return c.search.Create(ctx, responses.Request{
			Model: c.cfg.SearchModel,
			Input: WebSearchSystemPrompt + "\n\n" + question,
			Tools: []responses.Tool{{Type: responses.ToolWebSearchPreview}},
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "chatgpt: web search")
	}
	return fromResponses(resp, c.cfg.SearchModel, c.calc)
}

func (c *ChatGPT) chatCompletion(ctx context.Context, question string) (*RawResult, error) {
	resp, err := bounded(ctx, c.cfg.Timeout, func(ctx context.Context) (*openai.ChatResponse, error) {
		return c.chat.Complete(ctx, openai.ChatRequest{
			Model:     c.cfg.ChatModel,
			System:    WebSearchSystemPrompt,
			User:      question,
			MaxTokens: c.cfg.MaxTokens,
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "chatgpt: chat fallback")
	}
	if resp.Text == "" {
		return nil, ErrEmptyAnswer
	}

	modelID := resp.Model
	if modelID == "" {
		modelID = c.cfg.ChatModel
	}
	usage := model.TokenUsage{InputTokens: resp.InputTokens, OutputTokens: resp.OutputTokens}
	usage.CostUSD = c.calc.Estimate(modelID, cost.Usage{
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
	})
	return &RawResult{
		Text:      resp.Text,
		Model:     modelID,
		Usage:     usage,
		Citations: []Source{},
	}, nil
}
