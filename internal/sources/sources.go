// Package sources filters, deduplicates and groups the citation candidates
// returned alongside a grounded text generation.
package sources

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/newsforge/newsforge/internal/article"
)

// maxTitleLength is the point past which a candidate title is replaced by
// its hostname for display.
const maxTitleLength = 100

// DocumentURI is the non-navigable placeholder used for the synthetic
// source appended in document mode.
const DocumentURI = "#document"

// Candidate is one unvalidated citation-like record from the text backend.
type Candidate struct {
	Title string
	URI   string
}

// Resolver classifies and cleans citation candidates. The URL pattern
// lists are heuristics: they exclude non-citable aggregator/redirect URLs
// and identify opaque citation-redirect hosts whose literal hostname does
// not name the real source.
type Resolver struct {
	noisePatterns []string
	redirectHosts []string
}

// NewResolver creates a resolver with the given heuristics. Empty slices
// fall back to the defaults.
func NewResolver(noisePatterns, redirectHosts []string) *Resolver {
	r := &Resolver{noisePatterns: noisePatterns, redirectHosts: redirectHosts}
	if len(r.noisePatterns) == 0 {
		r.noisePatterns = []string{
			"google.com/search",
			"google.com/url",
			"bing.com/search",
			"duckduckgo.com/?q=",
		}
	}
	if len(r.redirectHosts) == 0 {
		r.redirectHosts = []string{"vertexaisearch"}
	}
	return r
}

// Resolve turns a noisy candidate list into a clean, deduplicated source
// list. Candidates missing either field are dropped, search-engine result
// URLs are dropped, titles are normalized, and duplicates by either URI or
// title are skipped (first occurrence wins). When docName is non-empty the
// generation ran in document mode and exactly one synthetic entry for the
// document itself is appended, regardless of how many candidates survived.
func (r *Resolver) Resolve(candidates []Candidate, docName string) []article.Source {
	out := []article.Source{}
	seenURI := map[string]bool{}
	seenTitle := map[string]bool{}

	for _, c := range candidates {
		title := strings.TrimSpace(c.Title)
		uri := strings.TrimSpace(c.URI)
		if title == "" || uri == "" {
			continue
		}
		if r.isSearchNoise(uri) {
			continue
		}

		title = r.normalizeTitle(title, uri)

		if seenURI[uri] || seenTitle[title] {
			continue
		}
		seenURI[uri] = true
		seenTitle[title] = true
		out = append(out, article.Source{Title: title, URI: uri})
	}

	if docName != "" {
		out = append(out, article.Source{Title: docName, URI: DocumentURI})
	}
	return out
}

// isSearchNoise reports whether the URI is a generic search-engine results
// or redirect URL rather than a citable source.
func (r *Resolver) isSearchNoise(uri string) bool {
	stripped := strings.TrimPrefix(strings.TrimPrefix(uri, "https://"), "http://")
	stripped = strings.TrimPrefix(stripped, "www.")
	for _, pattern := range r.noisePatterns {
		if strings.Contains(stripped, pattern) {
			return true
		}
	}
	return false
}

// isRedirectRouted reports whether the URI goes through an opaque citation
// redirect, hiding the real source hostname.
func (r *Resolver) isRedirectRouted(uri string) bool {
	host := hostOf(uri)
	for _, h := range r.redirectHosts {
		if strings.Contains(host, h) {
			return true
		}
	}
	return false
}

// normalizeTitle replaces URL-shaped or overlong titles with the bare
// hostname of the URI. Redirect-routed candidates keep their title as-is
// since the literal URI host is not the real source. URI parse failures
// leave the title unchanged.
func (r *Resolver) normalizeTitle(title, uri string) string {
	if r.isRedirectRouted(uri) {
		return title
	}
	looksLikeURL := strings.Contains(title, "http") || strings.Contains(title, "www.")
	if !looksLikeURL && len(title) <= maxTitleLength {
		return title
	}
	host := hostOf(uri)
	if host == "" {
		return title
	}
	return host
}

// Group is a set of sources sharing one domain label.
type Group struct {
	Domain      string           `json:"domain"`
	Occurrences int              `json:"occurrences"`
	Links       []article.Source `json:"links"`
}

var domainShaped = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]*\.[a-z]{2,}$`)

// GroupByDomain groups sources by hostname for display and export. Sources
// behind a citation redirect use their title as the domain label when it
// looks like a domain. Groups are sorted by descending occurrence count;
// equal counts keep first-seen order.
func (r *Resolver) GroupByDomain(srcs []article.Source) []Group {
	index := map[string]int{}
	var groups []Group

	for _, s := range srcs {
		key := r.domainKey(s)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Domain: key})
		}
		groups[i].Occurrences++
		groups[i].Links = append(groups[i].Links, s)
	}

	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].Occurrences > groups[b].Occurrences
	})
	return groups
}

// DomainLabels returns just the group labels, most frequent first.
func (r *Resolver) DomainLabels(srcs []article.Source) []string {
	groups := r.GroupByDomain(srcs)
	labels := make([]string, 0, len(groups))
	for _, g := range groups {
		labels = append(labels, g.Domain)
	}
	return labels
}

func (r *Resolver) domainKey(s article.Source) string {
	if r.isRedirectRouted(s.URI) {
		label := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s.Title)), "www.")
		if domainShaped.MatchString(label) {
			return label
		}
	}
	if host := hostOf(s.URI); host != "" {
		return host
	}
	// Malformed URI: the raw string is its own grouping key.
	return s.URI
}

// hostOf extracts the lowercased, www-stripped hostname of a URI, or ""
// when it cannot be parsed.
func hostOf(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
