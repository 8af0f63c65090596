package brand

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Classification is the brand and domain-type breakdown of one cited URL.
type Classification struct {
	Domain            string `json:"domain"`
	Brand             string `json:"brand_association"`
	IsPrimaryDomain   bool   `json:"is_primary_domain"`
	IsSecondaryDomain bool   `json:"is_secondary_domain"`
}

// Classify maps a URL onto a tracked brand. Domain keeps the full host for
// display; matching ignores a leading "www.". For a dual-domain brand exactly
// one of IsPrimaryDomain and IsSecondaryDomain is set.
func (r *Registry) Classify(rawURL string) Classification {
	host := hostOf(rawURL)
	out := Classification{Domain: host, Brand: Other}
	if host == "" {
		return out
	}

	bare := strings.TrimPrefix(host, "www.")
	registrable, err := publicsuffix.EffectiveTLDPlusOne(bare)
	if err != nil {
		registrable = bare
	}

	for _, d := range r.defs {
		if !matchesAny(bare, registrable, d.Domains) {
			continue
		}
		out.Brand = d.Key
		if d.DualDomain() {
			if matchesAny(bare, bare, d.SecondaryHosts) {
				out.IsSecondaryDomain = true
			} else {
				out.IsPrimaryDomain = true
			}
		}
		return out
	}
	return out
}

// hostOf extracts the lower-cased host (no port) from a URL. Scheme-less
// inputs such as "on24.com/path" are accepted.
func hostOf(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
}

func matchesAny(host, registrable string, domains []string) bool {
	for _, d := range domains {
		if registrable == d || host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
