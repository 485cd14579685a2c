package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Simple Prometheus-style metrics for the spider.
// This is intentionally minimal and in-memory only.

var (
	mu sync.RWMutex

	fetchesTotal    = make(map[fetchKey]int64)
	retriesTotal    = make(map[string]int64)
	scrapeJobsTotal = make(map[string]int64)
	enqueuedTotal   = make(map[string]int64)
	skippedTotal    = make(map[skipKey]int64)
	queueDepthGauge int64
)

type fetchKey struct {
	Engine string
	Status string
}

type skipKey struct {
	Reason string
}

// RecordFetch increments the fetch counter keyed by engine and outcome
// status. The HTTP API middleware records each API request here under
// engine "httpapi" with status "ok", "client_error" or "error".
func RecordFetch(engine, status string) {
	mu.Lock()
	defer mu.Unlock()
	fetchesTotal[fetchKey{Engine: engine, Status: status}]++
}

// RecordRetry increments the retry counter for a given retry-chain
// handler ("backoff", "cooldown").
func RecordRetry(handler string) {
	mu.Lock()
	defer mu.Unlock()
	retriesTotal[handler]++
}

// RecordScrapeJob increments the job counter by terminal status
// ("completed", "failed").
func RecordScrapeJob(status string) {
	mu.Lock()
	defer mu.Unlock()
	scrapeJobsTotal[status]++
}

// RecordEnqueue increments the count of links admitted to the frontier
// for host.
func RecordEnqueue(host string) {
	mu.Lock()
	defer mu.Unlock()
	enqueuedTotal[host]++
}

// RecordSkip increments the count of links rejected during recursive
// enqueue, keyed by rejection reason ("filter_excluded", "already_done",
// "poisoned", "queue_full").
func RecordSkip(reason string) {
	mu.Lock()
	defer mu.Unlock()
	skippedTotal[skipKey{Reason: reason}]++
}

// SetQueueDepth sets the spiderd_queue_depth gauge to the given
// in-memory heap depth.
func SetQueueDepth(depth int) {
	mu.Lock()
	defer mu.Unlock()
	queueDepthGauge = int64(depth)
}

// Export returns Prometheus-style metrics text.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP spiderd_fetches_total Total fetch attempts by engine and outcome\n")
	b.WriteString("# TYPE spiderd_fetches_total counter\n")
	var fetchKeys []fetchKey
	for k := range fetchesTotal {
		fetchKeys = append(fetchKeys, k)
	}
	sort.Slice(fetchKeys, func(i, j int) bool {
		if fetchKeys[i].Engine != fetchKeys[j].Engine {
			return fetchKeys[i].Engine < fetchKeys[j].Engine
		}
		return fetchKeys[i].Status < fetchKeys[j].Status
	})
	for _, k := range fetchKeys {
		fmt.Fprintf(&b, "spiderd_fetches_total{engine=\"%s\",status=\"%s\"} %d\n",
			k.Engine, k.Status, fetchesTotal[k])
	}

	b.WriteString("# HELP spiderd_retries_total Total retry-chain invocations by handler\n")
	b.WriteString("# TYPE spiderd_retries_total counter\n")
	var handlers []string
	for h := range retriesTotal {
		handlers = append(handlers, h)
	}
	sort.Strings(handlers)
	for _, h := range handlers {
		fmt.Fprintf(&b, "spiderd_retries_total{handler=\"%s\"} %d\n", h, retriesTotal[h])
	}

	b.WriteString("# HELP spiderd_scrape_jobs_total Total scrape jobs by terminal status\n")
	b.WriteString("# TYPE spiderd_scrape_jobs_total counter\n")
	var statuses []string
	for s := range scrapeJobsTotal {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Fprintf(&b, "spiderd_scrape_jobs_total{status=\"%s\"} %d\n", s, scrapeJobsTotal[s])
	}

	b.WriteString("# HELP spiderd_links_enqueued_total Total article links admitted to the frontier by host\n")
	b.WriteString("# TYPE spiderd_links_enqueued_total counter\n")
	var enqueuedHosts []string
	for h := range enqueuedTotal {
		enqueuedHosts = append(enqueuedHosts, h)
	}
	sort.Strings(enqueuedHosts)
	for _, h := range enqueuedHosts {
		fmt.Fprintf(&b, "spiderd_links_enqueued_total{host=\"%s\"} %d\n", h, enqueuedTotal[h])
	}

	b.WriteString("# HELP spiderd_links_skipped_total Total article links rejected during recursive enqueue by reason\n")
	b.WriteString("# TYPE spiderd_links_skipped_total counter\n")
	var skipKeys []skipKey
	for k := range skippedTotal {
		skipKeys = append(skipKeys, k)
	}
	sort.Slice(skipKeys, func(i, j int) bool { return skipKeys[i].Reason < skipKeys[j].Reason })
	for _, k := range skipKeys {
		fmt.Fprintf(&b, "spiderd_links_skipped_total{reason=\"%s\"} %d\n", k.Reason, skippedTotal[k])
	}

	b.WriteString("# HELP spiderd_queue_depth Current in-memory frontier depth\n")
	b.WriteString("# TYPE spiderd_queue_depth gauge\n")
	fmt.Fprintf(&b, "spiderd_queue_depth %d\n", queueDepthGauge)

	return b.String()
}
