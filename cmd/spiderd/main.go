package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"spiderd/internal/config"
	"spiderd/internal/cooldown"
	"spiderd/internal/dispatch"
	"spiderd/internal/fetch"
	"spiderd/internal/filter"
	"spiderd/internal/httpapi"
	"spiderd/internal/migrate"
	"spiderd/internal/model"
	"spiderd/internal/queue"
	"spiderd/internal/scheduler"
	"spiderd/internal/seed"
	"spiderd/internal/store"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg := config.Load(*configPath)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if err := migrate.Run(cfg.Database.DSN); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(rootCtx, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open store failed: %v", err)
	}
	defer st.Close()

	linkFilter := filter.NewPatternFilter(
		nonEmpty(cfg.Filter.URLExcludePatterns, filter.DefaultURLExcludePatterns),
		nonEmpty(cfg.Filter.ContentExcludePatterns, filter.DefaultContentExcludePatterns),
		false,
	)
	priorityPolicy := filter.NewPriorityPolicy(
		nonEmpty(cfg.Priority.ExcludePatterns, filter.DefaultExcludeURLPatterns),
		nonEmpty(cfg.Priority.HighPriorityPatterns, filter.DefaultHighPriorityPatterns),
		nonEmpty(cfg.Priority.LowPriorityPatterns, filter.DefaultLowPriorityPatterns),
		false,
	)

	frontier := queue.NewFrontier(st, cfg.Worker.MaxQueueSize, linkFilter, priorityPolicy)
	if err := frontier.Rebuild(rootCtx); err != nil {
		log.Fatalf("rebuild frontier failed: %v", err)
	}

	direct := fetch.NewDirectClient(time.Duration(cfg.Fetch.TimeoutMs) * time.Millisecond)
	var browser *fetch.BrowserClient
	if cfg.Rod.Enabled {
		browser = fetch.NewBrowserClient(fetch.BrowserConfig{
			WebsocketURL:          cfg.Rod.WebsocketURL,
			Timeout:               time.Duration(cfg.Rod.TimeoutMs) * time.Millisecond,
			WaitForLoad:           cfg.Rod.WaitForLoad,
			WaitForNetworkIdle:    cfg.Rod.WaitForNetworkIdle,
			AdditionalWaitSeconds: cfg.Rod.AdditionalWaitSeconds,
		})
		defer browser.Close()
	}
	fetcher := fetch.NewFallbackClient(direct, browser)
	registry := dispatch.RegisterDefaults(fetcher)

	sched := scheduler.New(
		scheduler.Config{
			MaxWorkers:      cfg.Worker.MaxWorkers,
			MaxQueueSize:    cfg.Worker.MaxQueueSize,
			CooldownSeconds: cfg.Worker.CooldownSeconds,
		},
		st, frontier, registry, linkFilter,
	)

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("parse redis url failed: %v", err)
		}
		rdb := redis.NewClient(opts)
		window := time.Duration(cfg.Worker.CooldownSeconds * float64(time.Second))
		tracker := cooldown.NewFallbackTracker(
			cooldown.NewRedisTracker(rdb, window),
			cooldown.NewLocalTracker(window),
		)
		sched.WithCooldown(tracker)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	seedSources := cfg.Seeds.Sources
	if len(seedSources) == 0 {
		seedSources = seed.Catalog()
	}
	seedFrontier(rootCtx, frontier, seedSources, logger)

	sched.Start(rootCtx)

	seedFn := func(ctx context.Context, rawURL string, priority int) (string, error) {
		outcome, err := frontier.EnqueueURL(ctx, rawURL, priority)
		if err != nil {
			return "", err
		}
		return outcomeName(outcome), nil
	}
	apiServer := httpapi.NewServer(sched, seedFn, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		if err := apiServer.Listen(addr); err != nil {
			log.Printf("http server stopped: %v", err)
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutdown signal received")
	sched.Stop()
}

// seedFrontier enqueues every source's start URL at its configured
// priority, logging but not failing startup on individual rejections.
func seedFrontier(ctx context.Context, frontier *queue.Frontier, sources []model.SeedSource, logger *slog.Logger) {
	for _, src := range sources {
		outcome, err := frontier.EnqueueURL(ctx, src.SeedURL(), src.Priority)
		if err != nil {
			logger.Error("seed enqueue failed", "source", src.Name, "url", src.SeedURL(), "error", err)
			continue
		}
		logger.Info("seeded source", "source", src.Name, "url", src.SeedURL(), "outcome", outcomeName(outcome))
	}
}

func nonEmpty(patterns, fallback []string) []string {
	if len(patterns) == 0 {
		return fallback
	}
	return patterns
}

func outcomeName(o queue.Outcome) string {
	switch o {
	case queue.OutcomeEnqueued:
		return "enqueued"
	case queue.OutcomeFilterExcluded:
		return "filter_excluded"
	case queue.OutcomeAlreadyDone:
		return "already_done"
	case queue.OutcomePoisoned:
		return "poisoned"
	case queue.OutcomeQueueFull:
		return "queue_full"
	case queue.OutcomeLostRace:
		return "lost_race"
	default:
		return "unknown"
	}
}
