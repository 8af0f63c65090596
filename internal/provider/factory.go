package provider

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geo-benchmark/internal/config"
	"github.com/sells-group/geo-benchmark/internal/cost"
	"github.com/sells-group/geo-benchmark/internal/model"
	"github.com/sells-group/geo-benchmark/pkg/anthropic"
	"github.com/sells-group/geo-benchmark/pkg/openai"
	"github.com/sells-group/geo-benchmark/pkg/responses"
)

// Intervals maps each provider to its configured minimum call spacing.
func Intervals(cfg *config.Config) map[string]time.Duration {
	secs := func(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }
	return map[string]time.Duration{
		string(model.ProviderGrok):    secs(cfg.XAI.DelaySecs),
		string(model.ProviderChatGPT): secs(cfg.OpenAI.DelaySecs),
		string(model.ProviderClaude):  secs(cfg.Anthropic.DelaySecs),
	}
}

// ParseProviders validates configured provider names, keeping order and
// dropping duplicates.
func ParseProviders(names []string) ([]model.Provider, error) {
	out := make([]model.Provider, 0, len(names))
	seen := make(map[model.Provider]bool)
	for _, n := range names {
		p := model.Provider(n)
		if !p.Valid() {
			return nil, eris.Errorf("provider: unknown provider %q", n)
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, eris.New("provider: no providers enabled")
	}
	return out, nil
}

func missingKey(p model.Provider, key string) error {
	return eris.Errorf("provider: %s requires %s (set %s)", p, key, config.KeyEnvHint(key))
}

// NewSet builds guarded clients for the enabled providers. Any enabled
// provider without an API key fails construction before a run exists.
func NewSet(cfg *config.Config, enabled []model.Provider, guard Guard, calc *cost.Calculator) ([]Client, error) {
	timeout := cfg.Benchmark.CallTimeout()
	clients := make([]Client, 0, len(enabled))
	for _, p := range enabled {
		var c Client
		switch p {
		case model.ProviderGrok:
			if cfg.XAI.Key == "" {
				return nil, missingKey(p, "xai.key")
			}
			c = NewGrok(responses.NewClient(cfg.XAI.BaseURL, cfg.XAI.Key), cfg.XAI.Model, calc, timeout)
		case model.ProviderChatGPT:
			if cfg.OpenAI.Key == "" {
				return nil, missingKey(p, "openai.key")
			}
			var chatOpts []openai.Option
			if cfg.OpenAI.BaseURL != "" {
				chatOpts = append(chatOpts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
			}
			c = NewChatGPT(
				responses.NewClient(cfg.OpenAI.BaseURL, cfg.OpenAI.Key),
				openai.NewClient(cfg.OpenAI.Key, chatOpts...),
				ChatGPTConfig{
					SearchModel: cfg.OpenAI.Model,
					ChatModel:   cfg.OpenAI.ChatModel,
					MaxTokens:   cfg.OpenAI.MaxTokens,
					Timeout:     timeout,
				},
				calc,
			)
		case model.ProviderClaude:
			if cfg.Anthropic.Key == "" {
				return nil, missingKey(p, "anthropic.key")
			}
			c = NewClaude(NewAnthropic(cfg.Anthropic), cfg.Anthropic.Model, cfg.Anthropic.MaxTokens, calc, timeout)
		default:
			return nil, eris.Errorf("provider: unknown provider %q", p)
		}
		clients = append(clients, guard.Wrap(c))
	}
	return clients, nil
}

// NewAnthropic builds the shared Anthropic client from config.
func NewAnthropic(cfg config.AnthropicConfig) anthropic.Client {
	var opts []anthropic.Option
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	return anthropic.NewClient(cfg.Key, opts...)
}
