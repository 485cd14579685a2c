package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spiderd/internal/model"
	"spiderd/internal/queue"
	"spiderd/internal/scheduler"
	"spiderd/internal/store"
)

type fakeDurableQueue struct{}

func (fakeDurableQueue) EnqueueURL(context.Context, string, int) (store.EnqueueOutcome, error) {
	return store.EnqueueInserted, nil
}
func (fakeDurableQueue) PendingURLs(context.Context) ([]model.UrlQueueItem, error) {
	return nil, nil
}

type fakeJobStore struct{}

func (fakeJobStore) ClaimForProcessing(context.Context, string) (bool, error) { return true, nil }
func (fakeJobStore) CreateJob(context.Context, string) (int64, error)         { return 1, nil }
func (fakeJobStore) StartJob(context.Context, int64) error                    { return nil }
func (fakeJobStore) CompleteJob(context.Context, int64) error                 { return nil }
func (fakeJobStore) FailJob(context.Context, int64, string) error            { return nil }
func (fakeJobStore) MarkDone(context.Context, string) error                  { return nil }
func (fakeJobStore) MarkFailed(context.Context, string, string) error        { return nil }
func (fakeJobStore) SaveResult(context.Context, int64, *model.ScrapeResult) (int64, error) {
	return 1, nil
}
func (fakeJobStore) Stats(context.Context) (store.Stats, error) {
	return store.Stats{Pending: 2, Done: 5}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	frontier := &queue.Frontier{Store: fakeDurableQueue{}, Heap: queue.New(10)}
	sched := scheduler.New(scheduler.Config{MaxWorkers: 3, MaxQueueSize: 10}, fakeJobStore{}, frontier, nil, nil)
	seedFn := func(ctx context.Context, url string, priority int) (string, error) {
		return "enqueued", nil
	}
	return NewServer(sched, seedFn, nil)
}

func TestStatsEndpoint_ReturnsJSONStats(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSeedEndpoint_RejectsMissingURL(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/seed", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSeedEndpoint_AcceptsValidURL(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/seed", bytes.NewReader([]byte(`{"url":"https://example.com/a"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint_ReturnsPlainText(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
