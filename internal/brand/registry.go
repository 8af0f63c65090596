// Package brand holds the tracked-brand registry, alias resolution, and
// citation URL classification.
package brand

import (
	_ "embed"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

// Other is the bucket for any brand outside the tracked set.
const Other = "other"

//go:embed brands.yaml
var defaultBrandsYAML []byte

// Definition describes one tracked brand.
type Definition struct {
	Key            string   `yaml:"key"`
	DisplayName    string   `yaml:"display_name"`
	Aliases        []string `yaml:"aliases"`
	Domains        []string `yaml:"domains"`
	SecondaryHosts []string `yaml:"secondary_hosts"`
	Description    string   `yaml:"description"`
	ContextFilter  string   `yaml:"context_filter"`
	ExcludeContext string   `yaml:"exclude_context"`
}

// DualDomain reports whether the brand distinguishes primary and secondary hosts.
func (d Definition) DualDomain() bool {
	return len(d.SecondaryHosts) > 0
}

// Registry is an ordered, immutable set of brand definitions.
type Registry struct {
	defs   []Definition
	byKey  map[string]int
	alias  map[string]string
	scopes map[string]scope
}

// scope limits a brand to one product line. A text matching exclude is out
// of scope unless include also matches.
type scope struct {
	include *regexp.Regexp
	exclude *regexp.Regexp
}

func (s scope) rejects(text string) bool {
	if s.exclude == nil || !s.exclude.MatchString(text) {
		return false
	}
	return s.include == nil || !s.include.MatchString(text)
}

type registryFile struct {
	Brands []Definition `yaml:"brands"`
}

// Normalize case-folds and trims a brand identifier for comparison.
// Casers are stateful, so each call builds its own.
func Normalize(s string) string {
	return strings.TrimSpace(cases.Fold().String(s))
}

// Default returns the registry built from the embedded brand table.
func Default() *Registry {
	r, err := Parse(defaultBrandsYAML)
	if err != nil {
		panic(eris.Wrap(err, "brand: embedded registry"))
	}
	return r
}

// Load reads a registry from a YAML file. An empty path yields Default().
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "brand: read %s", path)
	}
	return Parse(data)
}

// Parse builds a registry from YAML bytes.
func Parse(data []byte) (*Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "brand: parse registry")
	}
	return New(f.Brands)
}

// New builds a registry from definitions, validating keys.
func New(defs []Definition) (*Registry, error) {
	if len(defs) == 0 {
		return nil, eris.New("brand: registry has no brands")
	}
	r := &Registry{
		byKey:  make(map[string]int, len(defs)),
		alias:  make(map[string]string),
		scopes: make(map[string]scope),
	}
	for _, d := range defs {
		d.Key = Normalize(d.Key)
		if d.Key == "" || d.Key == Other {
			return nil, eris.Errorf("brand: invalid key %q", d.Key)
		}
		if _, dup := r.byKey[d.Key]; dup {
			return nil, eris.Errorf("brand: duplicate key %q", d.Key)
		}
		d.Domains = normalizeHosts(d.Domains)
		d.SecondaryHosts = normalizeHosts(d.SecondaryHosts)
		if d.ExcludeContext != "" {
			sc, err := compileScope(d)
			if err != nil {
				return nil, err
			}
			r.scopes[d.Key] = sc
		}
		r.byKey[d.Key] = len(r.defs)
		r.defs = append(r.defs, d)
		r.alias[d.Key] = d.Key
		for _, a := range d.Aliases {
			if n := Normalize(a); n != "" {
				if _, taken := r.alias[n]; !taken {
					r.alias[n] = d.Key
				}
			}
		}
	}
	return r, nil
}

// Keys returns the tracked brand keys in registry order.
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.defs))
	for i, d := range r.defs {
		keys[i] = d.Key
	}
	return keys
}

// Definitions returns a copy of the definitions in registry order.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Get returns the definition for key.
func (r *Registry) Get(key string) (Definition, bool) {
	i, ok := r.byKey[Normalize(key)]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i], true
}

// IsTracked reports whether key names a tracked brand.
func (r *Registry) IsTracked(key string) bool {
	_, ok := r.byKey[Normalize(key)]
	return ok
}

// Scoped reports whether key carries a product-line filter.
func (r *Registry) Scoped(key string) bool {
	_, ok := r.scopes[Normalize(key)]
	return ok
}

// OutOfScope reports whether text is about a product line that key's
// exclude_context names and its context_filter does not.
func (r *Registry) OutOfScope(key, text string) bool {
	sc, ok := r.scopes[Normalize(key)]
	return ok && sc.rejects(text)
}

// Resolve maps a free-form brand string onto a tracked key or Other.
// Exact key or alias matches win; otherwise the first brand (in registry
// order) whose key, alias, or display name appears in s as whole words is
// chosen. A brand never resolves from a string naming one of its excluded
// product lines, so "Zoom Meetings" is Other.
func (r *Registry) Resolve(s string) string {
	n := Normalize(s)
	if n == "" || n == Other {
		return Other
	}
	if key, ok := r.alias[n]; ok {
		if r.OutOfScope(key, n) {
			return Other
		}
		return key
	}
	words := wordSeq(n)
	for _, d := range r.defs {
		if r.OutOfScope(d.Key, n) {
			continue
		}
		if containsWords(words, d.Key) || containsWords(words, Normalize(d.DisplayName)) {
			return d.Key
		}
		for _, a := range d.Aliases {
			if containsWords(words, Normalize(a)) {
				return d.Key
			}
		}
	}
	return Other
}

func compileScope(d Definition) (scope, error) {
	var sc scope
	var err error
	if sc.exclude, err = regexp.Compile("(?i)" + d.ExcludeContext); err != nil {
		return sc, eris.Wrapf(err, "brand: exclude_context for %s", d.Key)
	}
	if d.ContextFilter != "" {
		if sc.include, err = regexp.Compile("(?i)" + d.ContextFilter); err != nil {
			return sc, eris.Wrapf(err, "brand: context_filter for %s", d.Key)
		}
	}
	return sc, nil
}

// wordSeq splits s on anything that is not a letter or digit and rejoins the
// words padded with single spaces.
func wordSeq(s string) string {
	f := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(f) == 0 {
		return ""
	}
	return " " + strings.Join(f, " ") + " "
}

func containsWords(words, needle string) bool {
	w := wordSeq(needle)
	return w != "" && words != "" && strings.Contains(words, w)
}

func normalizeHosts(hosts []string) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if n := strings.TrimPrefix(Normalize(h), "www."); n != "" {
			out = append(out, n)
		}
	}
	return out
}
