// Command crawler runs a single crawl from a seed URL and, unless told
// otherwise, rebuilds the index from the stored pages afterwards.
//
// With Kafka enabled the crawl.complete and index.complete events are
// published so a running indexer or searcher can react.
//
// Usage:
//
//	go run ./cmd/crawler -seed https://example.com [-max 100] [-workers 8] [-reset] [-skip-index]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/crawler"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/events"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/store/backend"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	seed := flag.String("seed", "", "URL to start crawling from (required)")
	maxPages := flag.Int("max", 0, "maximum pages to store, 0 uses crawler.maxPages")
	workers := flag.Int("workers", 0, "fetch workers, 0 uses crawler.concurrency")
	reset := flag.Bool("reset", false, "drop previously crawled pages first")
	skipIndex := flag.Bool("skip-index", false, "do not rebuild the index after crawling")
	flag.Parse()

	if *seed == "" {
		fmt.Fprintln(os.Stderr, "missing -seed")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	req := pipeline.Request{
		Seed:        *seed,
		MaxPages:    *maxPages,
		Concurrency: *workers,
		Reset:       *reset,
		SkipIndex:   *skipIndex,
	}
	if err := run(cfg, req); err != nil {
		slog.Error("crawl failed", "error", err)
		os.Exit(1)
	}
}

// run owns every resource so deferred closes happen before main exits.
func run(cfg *config.Config, req pipeline.Request) error {
	slog.Info("starting crawl",
		"seed", req.Seed,
		"store", cfg.Store.Driver,
		"kafka", cfg.Kafka.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := backend.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	ix, err := indexer.New(st, indexer.OptionsFromConfig(cfg.Indexer), nil)
	if err != nil {
		return fmt.Errorf("creating indexer: %w", err)
	}
	cr := crawler.New(st, crawler.NewHTTPFetcher(cfg.Crawler), nil)

	var collector *events.Collector
	if cfg.Kafka.Enabled {
		crawlProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CrawlComplete)
		defer crawlProducer.Close()
		indexProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer indexProducer.Close()
		collector = events.NewCollector(map[string]events.Publisher{
			events.TypeCrawlComplete: crawlProducer,
			events.TypeIndexComplete: indexProducer,
		}, 16)
		collector.Start(ctx)
		// Close before the producers so buffered events are flushed.
		defer collector.Close()
	}

	p := pipeline.New(cr, ix, collector, nil, crawler.OptionsFromConfig(cfg.Crawler))
	outcome, err := p.Crawl(ctx, req)
	if outcome != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(outcome); encErr != nil {
			slog.Warn("failed to print outcome", "error", encErr)
		}
	}
	return err
}
