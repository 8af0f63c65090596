package normalize

import "strings"

// ExtractJSON pulls the JSON payload out of a model reply: the body of a
// ```json fence, else of a plain ``` fence, else the outermost {...} span.
// It returns "" when nothing object-shaped is present.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if body, ok := fenced(text, "```json"); ok {
		return body
	}
	if body, ok := fenced(text, "```"); ok {
		return body
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return ""
	}
	return text[start : end+1]
}

func fenced(text, open string) (string, bool) {
	i := strings.Index(text, open)
	if i < 0 {
		return "", false
	}
	rest := text[i+len(open):]
	// Drop an info string or newline after the opening fence.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.Contains(rest[:nl], "{") {
		rest = rest[nl+1:]
	}
	if j := strings.Index(rest, "```"); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest), true
}
