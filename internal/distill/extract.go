// Package distill turns a raw HTML page into the artifacts the rest of
// the spider cares about: a meta-tag map, an image-URL set, an ordered
// list of JSON-LD blocks, and several flavors of outbound link
// detection, plus a deterministic cleaning pipeline over the same
// parsed document.
package distill

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document wraps a parsed page and exposes both extraction and cleaning
// over the same underlying tree. Extraction methods are read-only and
// may be called before or after cleaning; cleaning methods mutate the
// tree in place.
type Document struct {
	doc *goquery.Document
}

// Parse parses raw HTML into a Document.
func Parse(html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return &Document{doc: doc}, nil
}

// HTML serializes the current tree back to a string.
func (d *Document) HTML() (string, error) {
	return d.doc.Html()
}

// Selection exposes the root selection for steps that need full control.
func (d *Document) Selection() *goquery.Selection {
	return d.doc.Selection
}

// ExtractMetaTags returns, for every <meta> element, key = first
// non-empty of property|name|itemprop, value = content, both trimmed.
// On duplicate keys, the last occurrence in document order wins.
func (d *Document) ExtractMetaTags() map[string]string {
	out := make(map[string]string)
	d.doc.Find("meta").Each(func(_ int, sel *goquery.Selection) {
		key := firstNonEmptyAttr(sel, "property", "name", "itemprop")
		value, _ := sel.Attr("content")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key != "" && value != "" {
			out[key] = value
		}
	})
	return out
}

func firstNonEmptyAttr(sel *goquery.Selection, attrs ...string) string {
	for _, a := range attrs {
		if v, ok := sel.Attr(a); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// imageAttrs is the union of attributes scanned for image URLs.
var imageAttrs = []string{"src", "data-src", "data-lazy", "data-original", "data-srcset"}

// ExtractImageURLs returns the union, over every <img>, of the imageAttrs
// attributes, each trimmed.
func (d *Document) ExtractImageURLs() map[string]struct{} {
	out := make(map[string]struct{})
	d.doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		for _, attr := range imageAttrs {
			if v, ok := sel.Attr(attr); ok {
				v = strings.TrimSpace(v)
				if v != "" {
					out[v] = struct{}{}
				}
			}
		}
	})
	return out
}

// ExtractAllJSONLD returns the trimmed text of every
// <script type="application/ld+json"> in document order.
func (d *Document) ExtractAllJSONLD() []string {
	var out []string
	d.doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			out = append(out, text)
		}
	})
	return out
}

var articleIDRe = regexp.MustCompile(`-\d+$`)

// ExtractArticleLinks is the ID-based article-link detector: for each
// <a href>, root-relative hrefs are absolutized against base_url's
// host; the link must be same-host, have its query string stripped,
// have final length >= 80, and a path matching -\d+$.
func (d *Document) ExtractArticleLinks(baseURL string) map[string]struct{} {
	out := make(map[string]struct{})

	var baseHost string
	if baseURL != "" {
		if u, err := url.Parse(baseURL); err == nil {
			baseHost = u.Host
		}
	}

	d.doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if href == "" {
			return
		}

		if strings.HasPrefix(href, "/") {
			if baseHost == "" {
				return
			}
			href = "https://" + baseHost + href
		}

		if baseHost != "" && !strings.HasPrefix(href, "https://"+baseHost) {
			return
		}

		if idx := strings.Index(href, "?"); idx >= 0 {
			href = href[:idx]
		}

		if len(href) < 80 {
			return
		}

		if !articleIDRe.MatchString(href) {
			return
		}

		out[href] = struct{}{}
	})

	return out
}

// SlugConfig configures the slug-based article-link heuristic.
type SlugConfig struct {
	MinSlugLength      int
	MinHyphenCount     int
	MinPathDepth       int
	MinTotalPathLength int
	ExcludePaths       map[string]struct{}
	RequireLowercase   bool
	MinHyphenRatio     float64
}

// DefaultSlugConfig matches the source's defaults.
func DefaultSlugConfig() SlugConfig {
	return SlugConfig{
		MinSlugLength:      30,
		MinHyphenCount:     3,
		MinPathDepth:       1,
		MinTotalPathLength: 50,
		RequireLowercase:   true,
		MinHyphenRatio:     0.05,
	}
}

// IsProbableArticleSlug checks whether a URL path looks like an article
// slug using the configurable heuristics in cfg.
func IsProbableArticleSlug(urlPath string, cfg SlugConfig) bool {
	if urlPath == "" {
		return false
	}

	normalized := strings.Trim(urlPath, "/")
	if normalized == "" {
		return false
	}

	var parts []string
	for _, p := range strings.Split(normalized, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}

	if len(parts) < cfg.MinPathDepth {
		return false
	}

	for _, p := range parts {
		if _, excluded := cfg.ExcludePaths[strings.ToLower(p)]; excluded {
			return false
		}
	}

	slug := parts[len(parts)-1]
	totalLen := len(normalized)

	if totalLen < cfg.MinTotalPathLength {
		return false
	}
	if len(slug) < cfg.MinSlugLength {
		return false
	}

	hyphens := strings.Count(slug, "-")
	if hyphens < cfg.MinHyphenCount {
		return false
	}

	ratio := 0.0
	if len(slug) > 0 {
		ratio = float64(hyphens) / float64(len(slug))
	}
	if ratio < cfg.MinHyphenRatio {
		return false
	}

	if cfg.RequireLowercase && slug != strings.ToLower(slug) {
		return false
	}

	return true
}

// ExtractSlugArticleLinks extracts article links using the
// slug-heuristic detector: strip query/fragment, resolve relative
// hrefs, accept absolute URLs only when same-host, and keep those
// whose path passes IsProbableArticleSlug.
func (d *Document) ExtractSlugArticleLinks(baseURL string, cfg SlugConfig) map[string]struct{} {
	out := make(map[string]struct{})
	if baseURL == "" {
		return out
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return out
	}
	scheme := base.Scheme
	if scheme == "" {
		scheme = "https"
	}
	baseNetloc := scheme + "://" + base.Host

	d.doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if href == "" {
			return
		}
		href = stripQueryAndFragment(href)

		var fullURL, path string
		switch {
		case strings.HasPrefix(href, "/"):
			fullURL = resolveRef(baseNetloc, href)
			path = href
		case strings.HasPrefix(href, scheme+"://"+base.Host):
			fullURL = href
			if hu, err := url.Parse(href); err == nil {
				path = hu.Path
			}
		default:
			return
		}

		if !IsProbableArticleSlug(path, cfg) {
			return
		}
		out[fullURL] = struct{}{}
	})

	return out
}

// ExtractAllResolvedLinks absolutizes every <a href> that is same-host
// or root-relative, rejects foreign absolute URLs, and keeps those
// whose resolved length exceeds minLength.
func (d *Document) ExtractAllResolvedLinks(baseURL string, minLength int) map[string]struct{} {
	out := make(map[string]struct{})
	if baseURL == "" {
		return out
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return out
	}
	scheme := base.Scheme
	if scheme == "" {
		scheme = "https"
	}
	baseNetloc := scheme + "://" + base.Host

	d.doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if href == "" {
			return
		}
		href = stripQueryAndFragment(href)

		var fullURL string
		switch {
		case strings.HasPrefix(href, "/"):
			fullURL = resolveRef(baseNetloc, href)
		case strings.HasPrefix(href, scheme+"://"+base.Host):
			fullURL = href
		case strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://"):
			return
		default:
			fullURL = resolveRef(baseNetloc, href)
		}

		if len(fullURL) > minLength {
			out[fullURL] = struct{}{}
		}
	})

	return out
}

func stripQueryAndFragment(href string) string {
	if idx := strings.Index(href, "?"); idx >= 0 {
		href = href[:idx]
	}
	if idx := strings.Index(href, "#"); idx >= 0 {
		href = href[:idx]
	}
	return href
}

func resolveRef(baseNetloc, ref string) string {
	base, err := url.Parse(baseNetloc)
	if err != nil {
		return ref
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(rel).String()
}

// sortedKeys returns the keys of m in sorted order, for deterministic set
// iteration.
func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
