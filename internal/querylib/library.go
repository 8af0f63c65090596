// Package querylib supplies the ordered benchmark question library.
package querylib

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/geo-benchmark/internal/model"
)

//go:embed queries.yaml
var defaultQueriesYAML []byte

type libraryFile struct {
	Queries []model.QuerySeed `yaml:"queries"`
}

// Default returns the embedded library in file order.
func Default() []model.QuerySeed {
	seeds, err := Parse(defaultQueriesYAML)
	if err != nil {
		panic(eris.Wrap(err, "querylib: embedded library"))
	}
	return seeds
}

// Load reads a library override. An empty path yields Default().
func Load(path string) ([]model.QuerySeed, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "querylib: read %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates a library. Text is trimmed; empty text or
// category and duplicate text are rejected.
func Parse(data []byte) ([]model.QuerySeed, error) {
	var f libraryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "querylib: parse")
	}
	if len(f.Queries) == 0 {
		return nil, eris.New("querylib: library is empty")
	}

	seen := make(map[string]int, len(f.Queries))
	out := make([]model.QuerySeed, 0, len(f.Queries))
	for i, q := range f.Queries {
		q.Text = strings.TrimSpace(q.Text)
		q.Category = strings.TrimSpace(q.Category)
		q.Subcategory = strings.TrimSpace(q.Subcategory)
		if q.Text == "" {
			return nil, eris.Errorf("querylib: entry %d has no query_text", i+1)
		}
		if q.Category == "" {
			return nil, eris.Errorf("querylib: %q has no category", q.Text)
		}
		if prev, dup := seen[q.Text]; dup {
			return nil, eris.Errorf("querylib: entry %d duplicates entry %d: %q", i+1, prev, q.Text)
		}
		seen[q.Text] = i + 1
		out = append(out, q)
	}
	return out, nil
}

// Categories returns the distinct categories in first-seen order.
func Categories(seeds []model.QuerySeed) []string {
	var cats []string
	seen := make(map[string]bool)
	for _, s := range seeds {
		if !seen[s.Category] {
			seen[s.Category] = true
			cats = append(cats, s.Category)
		}
	}
	return cats
}
