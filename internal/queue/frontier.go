package queue

import (
	"context"
	"net/url"
	"sort"

	"spiderd/internal/model"
	"spiderd/internal/store"
)

// LinkFilter is the minimal capability the frontier needs from the
// filter service: a yes/no exclusion check independent of priority.
type LinkFilter interface {
	ShouldExcludeURL(rawURL string) bool
}

// PriorityScorer is the minimal capability the frontier needs from the
// priority policy.
type PriorityScorer interface {
	ShouldExcludeURL(rawURL string) bool
	GetPriority(rawURL string) int
}

// DurableQueue is the subset of *store.Store the frontier needs, narrowed
// to an interface so admission logic can be tested without a live
// Postgres.
type DurableQueue interface {
	EnqueueURL(ctx context.Context, url string, priority int) (store.EnqueueOutcome, error)
	PendingURLs(ctx context.Context) ([]model.UrlQueueItem, error)
}

// Frontier combines the durable url_queue (source of truth) with the
// in-memory PriorityQueue (an eventually-consistent scheduling mirror).
// It implements the admission and recursive-enqueue rules.
type Frontier struct {
	Store    DurableQueue
	Heap     *PriorityQueue
	Filter   LinkFilter
	Priority PriorityScorer
}

// NewFrontier builds a Frontier over store, a heap bounded at maxQueueSize, and
// the given filter/priority policies. Either policy may be nil.
func NewFrontier(s DurableQueue, maxQueueSize int, linkFilter LinkFilter, priority PriorityScorer) *Frontier {
	return &Frontier{
		Store:    s,
		Heap:     New(maxQueueSize),
		Filter:   linkFilter,
		Priority: priority,
	}
}

// Outcome reports what EnqueueURL decided.
type Outcome int

const (
	OutcomeEnqueued Outcome = iota
	OutcomeFilterExcluded
	OutcomeAlreadyDone
	OutcomePoisoned
	OutcomeQueueFull
	// OutcomeLostRace reports that a concurrent writer already admitted
	// this URL; this call is a no-op and must not also push onto the
	// in-memory heap.
	OutcomeLostRace
)

// EnqueueURL implements the admission rule from spec.md §4.6: reject by
// filter or priority policy, resolve a zero priority via the policy,
// admit into the durable queue, then push into the in-memory heap.
func (f *Frontier) EnqueueURL(ctx context.Context, rawURL string, priority int) (Outcome, error) {
	if f.Filter != nil && f.Filter.ShouldExcludeURL(rawURL) {
		return OutcomeFilterExcluded, nil
	}
	if f.Priority != nil && f.Priority.ShouldExcludeURL(rawURL) {
		return OutcomeFilterExcluded, nil
	}
	if priority == 0 && f.Priority != nil {
		priority = f.Priority.GetPriority(rawURL)
	}

	outcome, err := f.Store.EnqueueURL(ctx, rawURL, priority)
	if err != nil {
		return 0, err
	}
	switch outcome {
	case store.EnqueueRejectedDone:
		return OutcomeAlreadyDone, nil
	case store.EnqueueRejectedPoisoned:
		return OutcomePoisoned, nil
	case store.EnqueueLostRace:
		return OutcomeLostRace, nil
	}

	if !f.Heap.Push(rawURL, priority) {
		return OutcomeQueueFull, nil
	}
	return OutcomeEnqueued, nil
}

// EnqueueArticleLinks implements _enqueue_article_links: sort the
// discovered links lexically, score each with the priority policy,
// interleave by (priority, host) to avoid a single source monopolizing
// the queue, then admit each in turn. It stops early once the heap
// reports full.
func (f *Frontier) EnqueueArticleLinks(ctx context.Context, links map[string]struct{}) (enqueued, skipped int, err error) {
	if len(links) == 0 {
		return 0, 0, nil
	}

	sorted := make([]string, 0, len(links))
	for l := range links {
		sorted = append(sorted, l)
	}
	sort.Strings(sorted)

	scored := make([]scoredLink, 0, len(sorted))
	for _, l := range sorted {
		priority := 0
		if f.Priority != nil {
			priority = f.Priority.GetPriority(l)
		}
		scored = append(scored, scoredLink{url: l, priority: priority})
	}

	ordered := interleaveByDomain(scored)

	for _, sl := range ordered {
		if f.Heap.Len() >= f.Heap.MaxSize() {
			break
		}

		outcome, admitErr := f.EnqueueURL(ctx, sl.url, sl.priority)
		if admitErr != nil {
			return enqueued, skipped, admitErr
		}
		if outcome == OutcomeEnqueued {
			enqueued++
		} else {
			skipped++
		}
		if outcome == OutcomeQueueFull {
			break
		}
	}

	return enqueued, skipped, nil
}

type scoredLink struct {
	url      string
	priority int
}

// interleaveByDomain groups links by (priority, host), then emits one
// link per host in round-robin within each priority class, ascending by
// priority, so a single source cannot monopolize a priority band.
func interleaveByDomain(links []scoredLink) []scoredLink {
	priorities := []int{}
	seenPriority := map[int]bool{}
	byPriorityDomain := map[int]map[string][]string{}

	for _, sl := range links {
		host := hostOf(sl.url)
		if !seenPriority[sl.priority] {
			seenPriority[sl.priority] = true
			priorities = append(priorities, sl.priority)
		}
		if byPriorityDomain[sl.priority] == nil {
			byPriorityDomain[sl.priority] = map[string][]string{}
		}
		byPriorityDomain[sl.priority][host] = append(byPriorityDomain[sl.priority][host], sl.url)
	}
	sort.Ints(priorities)

	var ordered []scoredLink
	for _, priority := range priorities {
		domainMap := byPriorityDomain[priority]
		domains := make([]string, 0, len(domainMap))
		for d := range domainMap {
			domains = append(domains, d)
		}
		sort.Strings(domains)

		for remaining := true; remaining; {
			remaining = false
			for _, d := range domains {
				queue := domainMap[d]
				if len(queue) == 0 {
					continue
				}
				ordered = append(ordered, scoredLink{url: queue[0], priority: priority})
				domainMap[d] = queue[1:]
				if len(domainMap[d]) > 0 {
					remaining = true
				}
			}
		}
	}
	return ordered
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

// Rebuild repopulates the in-memory heap from every pending row in the
// durable queue, the cold-start recovery path from spec.md §5.
func (f *Frontier) Rebuild(ctx context.Context) error {
	items, err := f.Store.PendingURLs(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		f.Heap.Push(item.URL, item.Priority)
	}
	return nil
}
