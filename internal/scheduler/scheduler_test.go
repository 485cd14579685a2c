package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spiderd/internal/model"
	"spiderd/internal/queue"
	"spiderd/internal/store"
)

type fakeStore struct {
	mu     sync.Mutex
	claims map[string]bool
	done   map[string]bool
	failed map[string]string
	jobs   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		claims: map[string]bool{},
		done:   map[string]bool{},
		failed: map[string]string{},
	}
}

func (f *fakeStore) ClaimForProcessing(_ context.Context, url string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims[url] = true
	return true, nil
}
func (f *fakeStore) CreateJob(_ context.Context, _ string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs++
	return f.jobs, nil
}
func (f *fakeStore) StartJob(context.Context, int64) error    { return nil }
func (f *fakeStore) CompleteJob(context.Context, int64) error { return nil }
func (f *fakeStore) FailJob(_ context.Context, _ int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed["job"] = reason
	return nil
}
func (f *fakeStore) MarkDone(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.done[url] = true
	return nil
}
func (f *fakeStore) MarkFailed(_ context.Context, url string, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[url] = reason
	return nil
}
func (f *fakeStore) SaveResult(context.Context, int64, *model.ScrapeResult) (int64, error) {
	return 1, nil
}
func (f *fakeStore) Stats(context.Context) (store.Stats, error) {
	return store.Stats{}, nil
}

type fakeDurableQueue struct{}

func (fakeDurableQueue) EnqueueURL(_ context.Context, _ string, _ int) (store.EnqueueOutcome, error) {
	return store.EnqueueInserted, nil
}
func (fakeDurableQueue) PendingURLs(context.Context) ([]model.UrlQueueItem, error) {
	return nil, nil
}

func newFrontier() *queue.Frontier {
	return &queue.Frontier{Store: fakeDurableQueue{}, Heap: queue.New(100)}
}

type fakeDispatcher struct {
	result *model.ScrapeResult
	err    error
}

func (d fakeDispatcher) Scrape(context.Context, string) (*model.ScrapeResult, error) {
	return d.result, d.err
}

func TestScheduler_ProcessURL_SuccessMarksDoneAndEnqueuesLinks(t *testing.T) {
	fs := newFakeStore()
	frontier := newFrontier()
	disp := fakeDispatcher{result: &model.ScrapeResult{
		URL:  "https://example.com/a",
		HTML: "<html>ok</html>",
		ArticleLinks: map[string]struct{}{
			"https://example.com/markets/story-12345": {},
		},
	}}

	s := New(Config{MaxWorkers: 1, MaxQueueSize: 100, CooldownSeconds: 0}, fs, frontier, disp, nil)
	s.processURL(t.Context(), "https://example.com/a")

	assert.True(t, fs.done["https://example.com/a"])
	assert.Equal(t, 1, frontier.Heap.Len())
}

func TestScheduler_ProcessURL_ContentFilterExcludesMarksFailedJobButDoneURL(t *testing.T) {
	fs := newFakeStore()
	frontier := newFrontier()
	disp := fakeDispatcher{result: &model.ScrapeResult{URL: "https://example.com/a", HTML: "noindex page"}}

	s := New(Config{MaxWorkers: 1, MaxQueueSize: 100}, fs, frontier, disp, rejectContent{})
	s.processURL(t.Context(), "https://example.com/a")

	assert.True(t, fs.done["https://example.com/a"])
	assert.Equal(t, "Excluded by content filter", fs.failed["job"])
}

func TestScheduler_ProcessURL_FetchErrorMarksFailed(t *testing.T) {
	fs := newFakeStore()
	frontier := newFrontier()
	disp := fakeDispatcher{err: errors.New("boom")}

	s := New(Config{MaxWorkers: 1, MaxQueueSize: 100}, fs, frontier, disp, nil)
	s.processURL(t.Context(), "https://example.com/a")

	assert.Equal(t, "boom", fs.failed["https://example.com/a"])
	assert.False(t, fs.done["https://example.com/a"])
}

type rejectContent struct{}

func (rejectContent) ShouldExcludeContent(string, string) bool { return true }

func TestScheduler_StartStop_GracefulShutdown(t *testing.T) {
	fs := newFakeStore()
	frontier := newFrontier()
	disp := fakeDispatcher{result: &model.ScrapeResult{URL: "https://example.com/a"}}

	s := New(Config{MaxWorkers: 2, MaxQueueSize: 100}, fs, frontier, disp, nil)
	s.Start(t.Context())

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}

type fakeCooldown struct {
	mu     sync.Mutex
	marked []string
}

func (f *fakeCooldown) Ready(context.Context, string) (bool, error) { return true, nil }
func (f *fakeCooldown) MarkFetched(_ context.Context, host string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, host)
	return nil
}

func TestScheduler_ProcessURL_UsesAttachedCooldownTracker(t *testing.T) {
	fs := newFakeStore()
	frontier := newFrontier()
	disp := fakeDispatcher{result: &model.ScrapeResult{URL: "https://example.com/a", HTML: "ok"}}
	cd := &fakeCooldown{}

	s := New(Config{MaxWorkers: 1, MaxQueueSize: 100}, fs, frontier, disp, nil).WithCooldown(cd)
	s.processURL(t.Context(), "https://example.com/a")

	assert.Equal(t, []string{"example.com"}, cd.marked)
}

func TestScheduler_Stats_ReportsQueueAndRunningState(t *testing.T) {
	fs := newFakeStore()
	frontier := newFrontier()
	frontier.Heap.Push("https://example.com/a", 0)
	disp := fakeDispatcher{}

	s := New(Config{MaxWorkers: 3, MaxQueueSize: 100}, fs, frontier, disp, nil)
	stats, err := s.Stats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.QueueSize)
	assert.Equal(t, 100, stats.MaxQueueSize)
	assert.Equal(t, 3, stats.Workers)
	assert.False(t, stats.Running)
}
