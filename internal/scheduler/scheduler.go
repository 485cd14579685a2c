// Package scheduler runs the spider's worker pool: each worker blocks on
// the frontier's in-memory heap, claims a URL, applies the politeness
// cooldown, dispatches a scrape, and feeds discovered links back into the
// frontier.
package scheduler

import (
	"context"
	"log"
	"net/url"
	"sync"
	"time"

	"spiderd/internal/model"
	"spiderd/internal/queue"
	"spiderd/internal/store"
)

// Config holds the worker-pool tuning knobs from spec.md §6.
type Config struct {
	MaxWorkers      int
	MaxQueueSize    int
	CooldownSeconds float64
}

// DefaultConfig returns the source's default tuning knobs.
func DefaultConfig() Config {
	return Config{MaxWorkers: 3, MaxQueueSize: 876, CooldownSeconds: 1.0}
}

// JobStore is the subset of *store.Store the scheduler needs, narrowed to
// an interface so the worker loop can be tested without a live Postgres.
type JobStore interface {
	ClaimForProcessing(ctx context.Context, url string) (bool, error)
	CreateJob(ctx context.Context, url string) (int64, error)
	StartJob(ctx context.Context, jobID int64) error
	CompleteJob(ctx context.Context, jobID int64) error
	FailJob(ctx context.Context, jobID int64, reason string) error
	MarkDone(ctx context.Context, url string) error
	MarkFailed(ctx context.Context, url string, reason string) error
	SaveResult(ctx context.Context, jobID int64, r *model.ScrapeResult) (int64, error)
	Stats(ctx context.Context) (store.Stats, error)
}

// Dispatcher resolves and invokes the scraper recipe for a URL.
type Dispatcher interface {
	Scrape(ctx context.Context, targetURL string) (*model.ScrapeResult, error)
}

// ContentFilter excludes a fetched result from persistence based on its
// raw HTML.
type ContentFilter interface {
	ShouldExcludeContent(url, html string) bool
}

// CooldownTracker gates a host's next fetch, optionally shared across
// processes (see internal/cooldown). When nil, the scheduler falls back
// to the flat per-request sleep from Config.CooldownSeconds.
type CooldownTracker interface {
	Ready(ctx context.Context, host string) (bool, error)
	MarkFetched(ctx context.Context, host string) error
}

// Scheduler owns the frontier, the store, the content filter, and the
// scraper registry, and runs the N-worker pool over them.
type Scheduler struct {
	cfg      Config
	store    JobStore
	frontier *queue.Frontier
	registry Dispatcher
	content  ContentFilter
	cooldown CooldownTracker

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// New builds a Scheduler. content may be nil, in which case results are
// never excluded post-fetch.
func New(cfg Config, st JobStore, frontier *queue.Frontier, registry Dispatcher, content ContentFilter) *Scheduler {
	return &Scheduler{cfg: cfg, store: st, frontier: frontier, registry: registry, content: content}
}

// WithCooldown attaches a cross-process cooldown tracker, replacing the
// flat per-request sleep with a per-host wait.
func (s *Scheduler) WithCooldown(tracker CooldownTracker) *Scheduler {
	s.cooldown = tracker
	return s
}

// Start launches max_workers worker goroutines. Calling Start while
// already running is a no-op, mirroring the source's lock-guarded
// idempotent start.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		log.Println("[scheduler] already running")
		return
	}

	workerCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for i := 0; i < s.cfg.MaxWorkers; i++ {
		s.wg.Add(1)
		go s.worker(workerCtx, i)
	}
	log.Printf("[scheduler] started %d workers, max queue %d", s.cfg.MaxWorkers, s.cfg.MaxQueueSize)
}

// Stop flips running=false, unblocks every worker with a sentinel, and
// joins them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.frontier.Heap.Close(s.cfg.MaxWorkers)
	s.wg.Wait()
	log.Println("[scheduler] stopped")
}

func (s *Scheduler) worker(ctx context.Context, id int) {
	defer s.wg.Done()
	for {
		item, err := s.frontier.Heap.Pop(ctx)
		if err != nil {
			return
		}
		if item == nil {
			// Sentinel or closed queue: shut down.
			return
		}
		s.processURL(ctx, item.URL)
	}
}

func (s *Scheduler) processURL(ctx context.Context, url string) {
	claimed, err := s.store.ClaimForProcessing(ctx, url)
	if err != nil {
		log.Printf("[scheduler] claim error for %s: %v", url, err)
		return
	}
	if !claimed {
		return
	}

	s.waitForCooldown(ctx, url)

	jobID, err := s.store.CreateJob(ctx, url)
	if err != nil {
		log.Printf("[scheduler] create job error for %s: %v", url, err)
		return
	}
	if err := s.store.StartJob(ctx, jobID); err != nil {
		log.Printf("[scheduler] start job error for %s: %v", url, err)
	}

	result, err := s.registry.Scrape(ctx, url)
	if err != nil {
		s.failURL(ctx, jobID, url, err)
		return
	}

	if s.content != nil && s.content.ShouldExcludeContent(url, result.HTML) {
		_ = s.store.FailJob(ctx, jobID, "Excluded by content filter")
		_ = s.store.MarkDone(ctx, url)
		return
	}

	if _, err := s.store.SaveResult(ctx, jobID, result); err != nil {
		s.failURL(ctx, jobID, url, err)
		return
	}
	if err := s.store.CompleteJob(ctx, jobID); err != nil {
		log.Printf("[scheduler] complete job error for %s: %v", url, err)
	}
	if err := s.store.MarkDone(ctx, url); err != nil {
		log.Printf("[scheduler] mark done error for %s: %v", url, err)
	}

	enqueued, skipped, err := s.frontier.EnqueueArticleLinks(ctx, result.ArticleLinks)
	if err != nil {
		log.Printf("[scheduler] enqueue article links error for %s: %v", url, err)
		return
	}
	log.Printf("[scheduler] %s: enqueued %d links, skipped %d", url, enqueued, skipped)
}

// waitForCooldown enforces politeness before a claimed URL is fetched. If
// a CooldownTracker is attached it polls per-host readiness, shared
// across processes; otherwise it falls back to the flat sleep.
func (s *Scheduler) waitForCooldown(ctx context.Context, targetURL string) {
	if s.cooldown == nil {
		if s.cfg.CooldownSeconds > 0 {
			time.Sleep(time.Duration(s.cfg.CooldownSeconds * float64(time.Second)))
		}
		return
	}

	host := hostOf(targetURL)
	for {
		ready, err := s.cooldown.Ready(ctx, host)
		if err != nil {
			log.Printf("[scheduler] cooldown check error for %s: %v", host, err)
			break
		}
		if ready {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
	if err := s.cooldown.MarkFetched(ctx, host); err != nil {
		log.Printf("[scheduler] cooldown mark error for %s: %v", host, err)
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

func (s *Scheduler) failURL(ctx context.Context, jobID int64, url string, cause error) {
	reason := cause.Error()
	if err := s.store.FailJob(ctx, jobID, reason); err != nil {
		log.Printf("[scheduler] fail job error for %s: %v", url, err)
	}
	if err := s.store.MarkFailed(ctx, url, reason); err != nil {
		log.Printf("[scheduler] mark failed error for %s: %v", url, err)
	}
}

// Stats exposes the sole introspection surface for the core: queue depth,
// database-backed status counts, worker count, and running state.
type Stats struct {
	Pending      int
	Processing   int
	Done         int
	Failed       int
	QueueSize    int
	MaxQueueSize int
	Workers      int
	Running      bool
}

func (s *Scheduler) Stats(ctx context.Context) (Stats, error) {
	dbStats, err := s.store.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}

	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return Stats{
		Pending:      dbStats.Pending,
		Processing:   dbStats.Processing,
		Done:         dbStats.Done,
		Failed:       dbStats.Failed,
		QueueSize:    s.frontier.Heap.Len(),
		MaxQueueSize: s.cfg.MaxQueueSize,
		Workers:      s.cfg.MaxWorkers,
		Running:      running,
	}, nil
}
