package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/events"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/store/backend"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	once := flag.Bool("once", false, "build the index once and exit instead of consuming from kafka")
	workers := flag.Int("workers", 0, "override indexer.workers")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *workers > 0 {
		cfg.Indexer.Workers = *workers
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer service",
		"store", cfg.Store.Driver,
		"workers", cfg.Indexer.Workers,
		"formula", cfg.Indexer.LengthFormula,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	st, err := backend.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if cfg.Metrics.Enabled && !*once {
		checker := health.NewChecker()
		checker.Register("store", health.PingCheck(st, false))
		checker.Register("index", health.ReadyCheck(st.IsIndexReady, "index not ready"))
		metricsServer := metrics.NewServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		metricsServer.Handle("GET /health/live", checker.LiveHandler())
		metricsServer.Handle("GET /health/ready", checker.ReadyHandler())
		metricsServer.Start()
		defer metricsServer.Shutdown(context.Background())
	}

	ix, err := indexer.New(st, indexer.OptionsFromConfig(cfg.Indexer), m)
	if err != nil {
		slog.Error("failed to create indexer", "error", err)
		os.Exit(1)
	}

	if *once || !cfg.Kafka.Enabled {
		report, err := ix.Build(ctx)
		if err != nil {
			slog.Error("index build failed", "error", err)
			os.Exit(1)
		}
		slog.Info("index built",
			"documents", report.Documents,
			"terms", report.Terms,
			"duration", report.Duration.String(),
		)
		return
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
	defer producer.Close()
	collector := events.NewCollector(map[string]events.Publisher{
		events.TypeIndexComplete: producer,
	}, 64)
	collector.Start(ctx)
	defer collector.Close()

	handle := consumer.HandleMessage(ix, collector)
	topics := []string{cfg.Kafka.Topics.CrawlComplete, cfg.Kafka.Topics.IndexRebuild}
	var wg sync.WaitGroup
	for _, topic := range topics {
		c := kafka.NewConsumer(cfg.Kafka, topic, "indexer", handle)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Start(ctx); err != nil {
				slog.Error("consumer error", "topic", topic, "error", err)
			}
		}()
	}

	slog.Info("indexer service ready, consuming from kafka",
		"topics", topics,
		"group", cfg.Kafka.ConsumerGroup,
	)
	wg.Wait()
	slog.Info("indexer service stopped")
}
