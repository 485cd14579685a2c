package metrics

import (
	"strings"
	"testing"
)

func TestRecordFetchAndExport(t *testing.T) {
	RecordFetch("direct", "ok")

	out := Export()
	if !strings.Contains(out, `spiderd_fetches_total{engine="direct",status="ok"}`) {
		t.Fatalf("expected fetch metric for direct/ok in export, got:\n%s", out)
	}
}

func TestRecordRetryAndExport(t *testing.T) {
	RecordRetry("backoff")
	RecordRetry("cooldown")

	out := Export()
	if !strings.Contains(out, `spiderd_retries_total{handler="backoff"}`) {
		t.Fatalf("expected retry metric for backoff in export, got:\n%s", out)
	}
	if !strings.Contains(out, `spiderd_retries_total{handler="cooldown"}`) {
		t.Fatalf("expected retry metric for cooldown in export, got:\n%s", out)
	}
}

func TestRecordScrapeJobAndExport(t *testing.T) {
	RecordScrapeJob("completed")
	RecordScrapeJob("failed")

	out := Export()
	if !strings.Contains(out, `spiderd_scrape_jobs_total{status="completed"}`) {
		t.Fatalf("expected scrape job metric for completed in export, got:\n%s", out)
	}
	if !strings.Contains(out, `spiderd_scrape_jobs_total{status="failed"}`) {
		t.Fatalf("expected scrape job metric for failed in export, got:\n%s", out)
	}
}

func TestRecordEnqueueAndSkipAndExport(t *testing.T) {
	RecordEnqueue("moneycontrol.com")
	RecordSkip("already_done")
	SetQueueDepth(42)

	out := Export()
	if !strings.Contains(out, `spiderd_links_enqueued_total{host="moneycontrol.com"}`) {
		t.Fatalf("expected enqueued metric for moneycontrol.com in export, got:\n%s", out)
	}
	if !strings.Contains(out, `spiderd_links_skipped_total{reason="already_done"}`) {
		t.Fatalf("expected skipped metric for already_done in export, got:\n%s", out)
	}
	if !strings.Contains(out, "spiderd_queue_depth 42") {
		t.Fatalf("expected queue depth gauge of 42 in export, got:\n%s", out)
	}
}
