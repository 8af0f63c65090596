package normalize

import (
	"fmt"
	"strings"

	"github.com/sells-group/geo-benchmark/internal/brand"
)

// systemPrompt renders the extraction instructions for the registry's brands.
func systemPrompt(reg *brand.Registry) string {
	defs := reg.Definitions()
	keys := reg.Keys()

	var b strings.Builder
	b.WriteString("Extract brand mentions from an LLM response about webinar platforms.\n\n")
	b.WriteString("Return ONLY a JSON object (no markdown, no explanation) with this exact structure:\n")
	fmt.Fprintf(&b, `{
  "mentions": [
    {"brand": %q, "position": 1, "context": "sentence about brand", "sentiment": "positive", "sentiment_score": 0.8, "is_primary_recommendation": true}
  ],
  "brands_not_mentioned": [%q],
  "overall_winner": %q,
  "zoom_context_is_webinar": true
}
`, keys[0], keys[len(keys)-1], keys[0])

	b.WriteString("\nBRAND VALUES (use these exact strings):\n")
	for _, d := range defs {
		fmt.Fprintf(&b, "- %q for %s", d.Key, d.DisplayName)
		if d.ExcludeContext != "" {
			b.WriteString(" (set zoom_context_is_webinar=false if the text is about " +
				strings.ReplaceAll(d.ExcludeContext, "|", ", ") + ")")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "- %q for any other brand\n", brand.Other)

	b.WriteString(`
RULES:
- position = ordinal (1st mentioned=1, 2nd=2, etc.)
- sentiment = "positive" | "neutral" | "negative"
- sentiment_score = -1.0 to 1.0
- is_primary_recommendation = true if brand is the top/first recommendation
- overall_winner = brand most favorably positioned, or "none"
`)
	fmt.Fprintf(&b, "- brands_not_mentioned = list of %s that are NOT mentioned", strings.Join(keys, "/"))
	return b.String()
}
