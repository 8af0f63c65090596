// Package anthropic wraps anthropic-sdk-go behind a small Client interface.
package anthropic

// BuildCachedSystemBlocks returns a single system block marked as a cache
// breakpoint. A long instruction prompt reused across every call of a run
// is billed at the cache-read rate after the first call.
func BuildCachedSystemBlocks(text, ttl string) []SystemBlock {
	return []SystemBlock{{
		Text:         text,
		CacheControl: &CacheControl{TTL: ttl},
	}}
}

// UserText is shorthand for a one-message user turn.
func UserText(content string) []Message {
	return []Message{{Role: "user", Content: content}}
}
