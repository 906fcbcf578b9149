package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/crawler"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/events"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/store/backend"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/redis"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "store", cfg.Store.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		metricsServer.Start()
		defer metricsServer.Shutdown(context.Background())
	}

	st, err := backend.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("search cache enabled",
				"addr", cfg.Redis.Addr,
				"ttl", cfg.Redis.CacheTTL,
			)
		}
	}

	var collector *events.Collector
	if cfg.Kafka.Enabled {
		crawlProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CrawlComplete)
		defer crawlProducer.Close()
		indexProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer indexProducer.Close()
		collector = events.NewCollector(map[string]events.Publisher{
			events.TypeCrawlComplete: crawlProducer,
			events.TypeIndexComplete: indexProducer,
		}, 256)
		collector.Start(ctx)
		defer collector.Close()

		if queryCache != nil {
			invalidator := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, "searcher",
				cache.InvalidateOnIndexComplete(queryCache))
			go func() {
				if err := invalidator.Start(ctx); err != nil {
					slog.Error("cache invalidation consumer error", "error", err)
				}
			}()
		}
		slog.Info("pipeline events enabled", "brokers", cfg.Kafka.Brokers)
	}

	ix, err := indexer.New(st, indexer.OptionsFromConfig(cfg.Indexer), m)
	if err != nil {
		slog.Error("failed to create indexer", "error", err)
		os.Exit(1)
	}
	cr := crawler.New(st, crawler.NewHTTPFetcher(cfg.Crawler), m)
	var invalidator pipeline.Invalidator
	if queryCache != nil {
		invalidator = queryCache
	}
	pipe := pipeline.New(cr, ix, collector, invalidator, crawler.OptionsFromConfig(cfg.Crawler))

	if cfg.Indexer.RebuildOnStart {
		go func() {
			if _, err := pipe.Rebuild(ctx); err != nil {
				slog.Error("start-up index rebuild failed", "error", err)
			}
		}()
	}

	checker := health.NewChecker()
	checker.Register("store", health.PingCheck(st, false))
	checker.Register("index", health.ReadyCheck(st.IsIndexReady, "index not ready"))
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient, true))
	}

	exec := executor.New(st, cfg.Search.Workers)
	h := handler.New(exec, pipe, queryCache, m, cfg.Search.DefaultLimit, cfg.Search.MaxResults)

	api := http.NewServeMux()
	h.QueryRoutes(api)
	api.HandleFunc("GET /health/live", checker.LiveHandler())
	api.HandleFunc("GET /health/ready", checker.ReadyHandler())

	// crawl and rebuild run to completion, so they bypass the timeout
	var pipelineRoutes http.Handler
	pipelineMux := http.NewServeMux()
	h.PipelineRoutes(pipelineMux)
	pipelineRoutes = pipelineMux
	if cfg.Server.CrawlRatePerMinute > 0 {
		limiter := middleware.NewClientLimiter(cfg.Server.CrawlRatePerMinute, cfg.Server.CrawlBurst, 10*time.Minute)
		go limiter.Cleanup(ctx, time.Minute)
		pipelineRoutes = middleware.RateLimit(limiter)(pipelineMux)
	}

	mux := http.NewServeMux()
	mux.Handle("/", middleware.Timeout(cfg.Server.WriteTimeout)(api))
	mux.Handle("/api/v1/crawl", pipelineRoutes)
	mux.Handle("/api/v1/index/rebuild", pipelineRoutes)

	var chain http.Handler = mux
	chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins))(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     chain,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
