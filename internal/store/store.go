// Package store persists jobs, results, and the URL queue frontier to
// Postgres via a pgx connection pool. Each repository method opens and
// releases its own pool connection per spec.md's per-worker-session
// ownership model; there is no long-lived session state held here.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"spiderd/internal/model"
)

const uniqueViolation = "23505"

// Store wraps a pgx connection pool.
type Store struct {
	Pool *pgxpool.Pool
}

// New builds a Store from an already-opened pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

// Open parses dsn and opens a connection pool.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open pool: %w", err)
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (duplicate URL at enqueue, treated as a benign no-op).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// --- scrape_jobs ---------------------------------------------------------

// CreateJob inserts a new pending job for url and returns its id.
func (s *Store) CreateJob(ctx context.Context, url string) (int64, error) {
	var id int64
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO scrape_jobs (url, status, created_at) VALUES ($1, 'pending', now()) RETURNING id`,
		url,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: create job: %w", err)
	}
	return id, nil
}

// StartJob transitions a job to started.
func (s *Store) StartJob(ctx context.Context, jobID int64) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE scrape_jobs SET status = 'started', started_at = now() WHERE id = $1`,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("store: start job: %w", err)
	}
	return nil
}

// CompleteJob marks a job completed.
func (s *Store) CompleteJob(ctx context.Context, jobID int64) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE scrape_jobs SET status = 'completed', completed_at = now() WHERE id = $1`,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("store: complete job: %w", err)
	}
	return nil
}

// FailJob marks a job failed with a truncated error message.
func (s *Store) FailJob(ctx context.Context, jobID int64, reason string) error {
	if len(reason) > 500 {
		reason = reason[:500]
	}
	_, err := s.Pool.Exec(ctx,
		`UPDATE scrape_jobs SET status = 'failed', completed_at = now(), error_message = $2 WHERE id = $1`,
		jobID, reason,
	)
	if err != nil {
		return fmt.Errorf("store: fail job: %w", err)
	}
	return nil
}

// --- scrape_results and children ------------------------------------------

// SaveResult persists a ScrapeResult and its denormalized child rows in a
// single transaction. Child inserts are loose-coupled by result_id with no
// foreign-key cascade, per the data model.
func (s *Store) SaveResult(ctx context.Context, jobID int64, r *model.ScrapeResult) (int64, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: save result begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var resultID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO scrape_results (job_id, url, html, cleaned_html, created_at)
		 VALUES ($1, $2, $3, $4, now()) RETURNING id`,
		jobID, r.URL, r.HTML, r.CleanedHTML,
	).Scan(&resultID)
	if err != nil {
		return 0, fmt.Errorf("store: insert result: %w", err)
	}

	for k, v := range r.MetaTags {
		if _, err := tx.Exec(ctx,
			`INSERT INTO meta_tags (result_id, key, value, created_at) VALUES ($1, $2, $3, now())`,
			resultID, k, v,
		); err != nil {
			return 0, fmt.Errorf("store: insert meta tag: %w", err)
		}
	}

	for _, img := range r.ImageList() {
		if len(img) > 2048 {
			img = img[:2048]
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO image_urls (result_id, url, created_at) VALUES ($1, $2, now())`,
			resultID, img,
		); err != nil {
			return 0, fmt.Errorf("store: insert image url: %w", err)
		}
	}

	for _, block := range r.JSONLDBlocks {
		if _, err := tx.Exec(ctx,
			`INSERT INTO json_ld_blocks (result_id, content, created_at) VALUES ($1, $2, now())`,
			resultID, block,
		); err != nil {
			return 0, fmt.Errorf("store: insert json-ld block: %w", err)
		}
	}

	for _, link := range r.ArticleLinkList() {
		if _, err := tx.Exec(ctx,
			`INSERT INTO article_links (result_id, url, created_at) VALUES ($1, $2, now())`,
			resultID, link,
		); err != nil {
			return 0, fmt.Errorf("store: insert article link: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("store: save result commit: %w", err)
	}
	return resultID, nil
}

// --- url_queue -------------------------------------------------------------

// EnqueueOutcome reports what admission decided for a URL.
type EnqueueOutcome int

const (
	EnqueueInserted EnqueueOutcome = iota
	EnqueueUpdated
	EnqueueRejectedDone
	EnqueueRejectedPoisoned
	// EnqueueLostRace reports that a concurrent writer inserted the same
	// URL first. Treated as a no-op skip, not an admission, mirroring
	// spider_service.py's IntegrityError handling.
	EnqueueLostRace
)

// EnqueueURL implements the admission transaction from spec.md §4.6: look
// up the URL, insert if absent, reject if done or poisoned, else reset to
// pending with the given priority. A unique-constraint violation on insert
// (lost the race to a concurrent writer) reports EnqueueLostRace: the row
// already exists under a concurrent writer's priority, so this call did
// not admit it.
func (s *Store) EnqueueURL(ctx context.Context, url string, priority int) (EnqueueOutcome, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: enqueue begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	var processingCount int
	err = tx.QueryRow(ctx,
		`SELECT status, processing_count FROM url_queue WHERE url = $1 FOR UPDATE`,
		url,
	).Scan(&status, &processingCount)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_, insertErr := tx.Exec(ctx,
			`INSERT INTO url_queue (url, status, priority, processing_count, created_at)
			 VALUES ($1, 'pending', $2, 0, now())`,
			url, priority,
		)
		if insertErr != nil {
			if isUniqueViolation(insertErr) {
				return EnqueueLostRace, nil
			}
			return 0, fmt.Errorf("store: enqueue insert: %w", insertErr)
		}
		if err := tx.Commit(ctx); err != nil {
			return 0, fmt.Errorf("store: enqueue commit: %w", err)
		}
		return EnqueueInserted, nil

	case err != nil:
		return 0, fmt.Errorf("store: enqueue lookup: %w", err)
	}

	if status == "done" {
		return EnqueueRejectedDone, nil
	}
	if processingCount <= model.PoisonThreshold {
		return EnqueueRejectedPoisoned, nil
	}

	if _, err := tx.Exec(ctx,
		`UPDATE url_queue SET status = 'pending', priority = $2 WHERE url = $1`,
		url, priority,
	); err != nil {
		return 0, fmt.Errorf("store: enqueue update: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("store: enqueue commit: %w", err)
	}
	return EnqueueUpdated, nil
}

// ClaimForProcessing re-reads url and, unless it is done or poisoned, sets
// status=processing and last_processed_at=now in one transaction. Returns
// false if the URL could not be claimed.
func (s *Store) ClaimForProcessing(ctx context.Context, url string) (bool, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("store: claim begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	var processingCount int
	err = tx.QueryRow(ctx,
		`SELECT status, processing_count FROM url_queue WHERE url = $1 FOR UPDATE`,
		url,
	).Scan(&status, &processingCount)
	if err != nil {
		return false, fmt.Errorf("store: claim lookup: %w", err)
	}

	if status == "done" || processingCount <= model.PoisonThreshold {
		return false, nil
	}

	if _, err := tx.Exec(ctx,
		`UPDATE url_queue SET status = 'processing', last_processed_at = now() WHERE url = $1`,
		url,
	); err != nil {
		return false, fmt.Errorf("store: claim update: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("store: claim commit: %w", err)
	}
	return true, nil
}

// MarkDone sets status=done and processing_count=1, terminal per the data
// model: a done URL is never re-enqueued.
func (s *Store) MarkDone(ctx context.Context, url string) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE url_queue SET status = 'done', processing_count = 1, last_processed_at = now() WHERE url = $1`,
		url,
	)
	if err != nil {
		return fmt.Errorf("store: mark done: %w", err)
	}
	return nil
}

// MarkFailed decrements processing_count and sets status=failed with a
// truncated error message.
func (s *Store) MarkFailed(ctx context.Context, url string, reason string) error {
	if len(reason) > 500 {
		reason = reason[:500]
	}
	_, err := s.Pool.Exec(ctx,
		`UPDATE url_queue SET status = 'failed', processing_count = processing_count - 1, error_message = $2 WHERE url = $1`,
		url, reason,
	)
	if err != nil {
		return fmt.Errorf("store: mark failed: %w", err)
	}
	return nil
}

// PendingURLs returns every row with status=pending, ordered by priority
// then created_at, used to rebuild the in-memory heap on a cold start.
func (s *Store) PendingURLs(ctx context.Context) ([]model.UrlQueueItem, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT url, status, priority, processing_count, created_at FROM url_queue WHERE status = 'pending' ORDER BY priority ASC, created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("store: pending urls: %w", err)
	}
	defer rows.Close()

	var items []model.UrlQueueItem
	for rows.Next() {
		var item model.UrlQueueItem
		var createdAt time.Time
		if err := rows.Scan(&item.URL, &item.Status, &item.Priority, &item.ProcessingCount, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan pending url: %w", err)
		}
		item.CreatedAt = createdAt
		items = append(items, item)
	}
	return items, rows.Err()
}

// Stats aggregates url_queue row counts by status for the introspection
// surface.
type Stats struct {
	Pending    int
	Processing int
	Done       int
	Failed     int
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.Pool.Query(ctx, `SELECT status, count(*) FROM url_queue GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("store: stats: %w", err)
	}
	defer rows.Close()

	var st Stats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("store: scan stats: %w", err)
		}
		switch status {
		case "pending":
			st.Pending = count
		case "processing":
			st.Processing = count
		case "done":
			st.Done = count
		case "failed":
			st.Failed = count
		}
	}
	return st, rows.Err()
}
