// Package dispatch selects a per-host scraper recipe and orchestrates
// the fetch + distill steps to produce a model.ScrapeResult. It
// expresses per-host variation as data (a registry of configured
// GenericScraper instances) rather than a class hierarchy, per the
// source's capability-interface design.
package dispatch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	htmlmd "github.com/JohannesKaufmann/html-to-markdown"

	"spiderd/internal/distill"
	"spiderd/internal/fetch"
	"spiderd/internal/model"
)

// Scraper is the small capability interface every per-host recipe
// implements.
type Scraper interface {
	Scrape(ctx context.Context, targetURL string) (*model.ScrapeResult, error)
}

// GenericScraper fetches a page via the fallback client, runs
// extraction on the parsed document, optionally merges
// extract_all_resolved_links into article_links, then runs the
// cleaning pipeline.
type GenericScraper struct {
	Fetcher                fetch.Client
	MergeResolvedLinks     bool
	ResolvedLinksMinLength int
	RequestTimeout         time.Duration
}

// NewGenericScraper builds a GenericScraper with the default request
// timeout and resolved-links threshold.
func NewGenericScraper(fetcher fetch.Client) *GenericScraper {
	return &GenericScraper{
		Fetcher:                fetcher,
		ResolvedLinksMinLength: 25,
		RequestTimeout:         30 * time.Second,
	}
}

func (s *GenericScraper) Scrape(ctx context.Context, targetURL string) (*model.ScrapeResult, error) {
	resp, err := s.Fetcher.Fetch(ctx, model.HttpRequest{URL: targetURL, Timeout: s.RequestTimeout})
	if err != nil {
		return nil, err
	}

	doc, err := distill.Parse(resp.Content)
	if err != nil {
		// Parse/distillation failures are non-fatal: a scrape that
		// cannot extract structure still returns whatever HTML was
		// fetched.
		return &model.ScrapeResult{
			URL:        resp.FinalURL,
			HTML:       resp.Content,
			StatusCode: resp.StatusCode,
		}, nil
	}

	metaTags := doc.ExtractMetaTags()
	images := doc.ExtractImageURLs()
	jsonLD := doc.ExtractAllJSONLD()
	articleLinks := doc.ExtractArticleLinks(resp.FinalURL)

	if s.MergeResolvedLinks {
		resolved := doc.ExtractAllResolvedLinks(resp.FinalURL, s.ResolvedLinksMinLength)
		for l := range resolved {
			articleLinks[l] = struct{}{}
		}
	}

	doc.Clean()
	cleanedHTML, err := doc.HTML()
	if err != nil {
		cleanedHTML = ""
	}

	markdown := htmlToMarkdown(resp.FinalURL, cleanedHTML)

	return &model.ScrapeResult{
		URL:          resp.FinalURL,
		HTML:         resp.Content,
		CleanedHTML:  cleanedHTML,
		Markdown:     markdown,
		MetaTags:     metaTags,
		Images:       images,
		JSONLDBlocks: jsonLD,
		ArticleLinks: articleLinks,
		StatusCode:   resp.StatusCode,
		Engine:       "dispatch",
	}, nil
}

func htmlToMarkdown(targetURL, cleanedHTML string) string {
	if cleanedHTML == "" {
		return ""
	}
	host := ""
	if u, err := url.Parse(targetURL); err == nil {
		host = u.Hostname()
	}
	converter := htmlmd.NewConverter(host, true, nil)
	md, err := converter.ConvertString(cleanedHTML)
	if err != nil {
		return ""
	}
	return md
}

// Registry selects a per-host scraper, keyed by host and
// host-without-www, falling back to a generic scraper.
type Registry struct {
	byHost  map[string]Scraper
	generic Scraper
}

// NewRegistry builds an empty Registry backed by the given fallback
// generic scraper.
func NewRegistry(generic Scraper) *Registry {
	return &Registry{byHost: make(map[string]Scraper), generic: generic}
}

// Register associates host (and its www-stripped form) with a scraper.
func (r *Registry) Register(host string, s Scraper) {
	host = strings.ToLower(host)
	r.byHost[host] = s
	r.byHost[strings.TrimPrefix(host, "www.")] = s
}

// ScraperFor resolves the scraper for targetURL's host, falling back to
// the generic scraper.
func (r *Registry) ScraperFor(targetURL string) (Scraper, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("dispatch: parse url: %w", err)
	}
	host := strings.ToLower(u.Hostname())

	if s, ok := r.byHost[host]; ok {
		return s, nil
	}
	if s, ok := r.byHost[strings.TrimPrefix(host, "www.")]; ok {
		return s, nil
	}
	return r.generic, nil
}

// Scrape resolves and invokes the scraper for targetURL.
func (r *Registry) Scrape(ctx context.Context, targetURL string) (*model.ScrapeResult, error) {
	s, err := r.ScraperFor(targetURL)
	if err != nil {
		return nil, err
	}
	return s.Scrape(ctx, targetURL)
}

// ResolvedLinkHosts are hosts whose generic recipe also merges
// extract_all_resolved_links into article_links, mirroring the
// source's NDTV-specific scraper.
var ResolvedLinkHosts = []string{"ndtvprofit.com", "www.ndtvprofit.com"}

// RegisterDefaults wires the resolved-link-merging recipe for the
// hosts in ResolvedLinkHosts, and returns a registry ready to use.
func RegisterDefaults(fetcher fetch.Client) *Registry {
	generic := NewGenericScraper(fetcher)
	reg := NewRegistry(generic)

	for _, host := range ResolvedLinkHosts {
		merging := NewGenericScraper(fetcher)
		merging.MergeResolvedLinks = true
		reg.Register(host, merging)
	}

	return reg
}
