package model

// Provider identifies an external text-generation service variant.
type Provider string

const (
	ProviderGrok    Provider = "grok_web_search"
	ProviderChatGPT Provider = "chatgpt_web_search"
	ProviderClaude  Provider = "claude_parametric"
)

// AllProviders lists every provider in benchmark order.
var AllProviders = []Provider{ProviderGrok, ProviderChatGPT, ProviderClaude}

// Label returns a short human-readable provider name.
func (p Provider) Label() string {
	switch p {
	case ProviderGrok:
		return "Grok"
	case ProviderChatGPT:
		return "ChatGPT"
	case ProviderClaude:
		return "Claude"
	default:
		return string(p)
	}
}

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	for _, known := range AllProviders {
		if p == known {
			return true
		}
	}
	return false
}

// WorkKey identifies one (query, provider) work item within a run.
type WorkKey struct {
	QueryID  int64    `json:"query_id"`
	Provider Provider `json:"provider"`
}
