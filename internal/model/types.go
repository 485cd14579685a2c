// Package model holds the shared data types passed between the fetch
// pipeline, the distiller, the scraper dispatcher, and the store.
package model

import "time"

// ScrapeRequest is the immutable input to a single scrape attempt.
type ScrapeRequest struct {
	URL string
}

// ScrapeResult is produced once per successful fetch. It is owned by the
// producing worker until handed off to the repository for persistence.
type ScrapeResult struct {
	URL         string
	HTML        string
	CleanedHTML string
	// Markdown is an additive, operator-facing rendering of CleanedHTML.
	// No invariant in this system reads or depends on it.
	Markdown         string
	MetaTags         map[string]string
	Images           map[string]struct{}
	JSONLDBlocks     []string
	ArticleLinks     map[string]struct{}
	JobCreatedAt     time.Time
	JobProcessedAt   time.Time
	Engine           string
	StatusCode       int
}

// ImageList returns Images as a sorted-free slice, convenient for
// persistence and JSON encoding.
func (r *ScrapeResult) ImageList() []string {
	out := make([]string, 0, len(r.Images))
	for u := range r.Images {
		out = append(out, u)
	}
	return out
}

// ArticleLinkList returns ArticleLinks as a slice.
func (r *ScrapeResult) ArticleLinkList() []string {
	out := make([]string, 0, len(r.ArticleLinks))
	for u := range r.ArticleLinks {
		out = append(out, u)
	}
	return out
}

// JobStatus enumerates the lifecycle of a ScrapeJob row.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobStarted   JobStatus = "started"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// ScrapeJob is one row per scrape attempt. Rows are immutable history:
// once written, a job row is never deleted.
type ScrapeJob struct {
	ID           string
	URL          string
	Status       JobStatus
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage *string
}

// QueueStatus enumerates the lifecycle of a UrlQueue row (the crawl
// frontier).
type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueDone       QueueStatus = "done"
	QueueFailed     QueueStatus = "failed"
)

// PoisonThreshold is the processing_count floor at which a URL is
// permanently skipped.
const PoisonThreshold = -5

// UrlQueueItem is a row of the crawl frontier.
type UrlQueueItem struct {
	URL             string
	Status          QueueStatus
	Priority        int
	ProcessingCount int
	LastProcessedAt *time.Time
	ErrorMessage    *string
	CreatedAt       time.Time
}

// Poisoned reports whether this item has exhausted its retry budget.
func (u *UrlQueueItem) Poisoned() bool {
	return u.ProcessingCount <= PoisonThreshold
}

// HttpRequest describes an outbound fetch, direct or via browser.
type HttpRequest struct {
	URL     string
	Referer string
	Headers map[string]string
	Timeout time.Duration
}

// HttpResponse is the normalized result of a fetch, regardless of which
// client produced it.
type HttpResponse struct {
	Content    string
	StatusCode int
	Headers    map[string]string
	FinalURL   string
}

// SeedSource describes one entry of the default news-source catalog.
type SeedSource struct {
	Name     string
	BaseURL  string
	Path     string
	Priority int
}

// SeedURL joins BaseURL and Path the way the source catalog does:
// trailing/leading slashes are normalized to exactly one separator.
func (s SeedSource) SeedURL() string {
	base := s.BaseURL
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	path := s.Path
	for len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	return base + "/" + path
}
