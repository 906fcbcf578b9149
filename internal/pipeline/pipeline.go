// Package pipeline chains a crawl and the index build that follows it, and
// announces both on the event bus.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/crawler"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/events"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/tracing"
)

// Crawler runs one crawl. *crawler.Crawler satisfies it.
type Crawler interface {
	Run(ctx context.Context, seed string, opts crawler.Options) (*crawler.Result, error)
}

// Invalidator drops cached query results after the index changed.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Request struct {
	Seed        string `json:"seed"`
	MaxPages    int    `json:"max_pages"`
	Concurrency int    `json:"concurrency"`
	Reset       bool   `json:"reset"`
	// SkipIndex leaves the build to a separate indexer service listening
	// for crawl.complete.
	SkipIndex bool `json:"skip_index"`
}

type Outcome struct {
	Crawl    *crawler.Result `json:"crawl"`
	Index    *indexer.Report `json:"index,omitempty"`
	Duration time.Duration   `json:"duration"`
}

type Pipeline struct {
	crawler     Crawler
	builder     consumer.Builder
	tracker     consumer.Tracker
	invalidator Invalidator
	defaults    crawler.Options
	logger      *slog.Logger
}

// New wires a pipeline. tracker and invalidator may be nil.
func New(c Crawler, b consumer.Builder, tracker consumer.Tracker, invalidator Invalidator, defaults crawler.Options) *Pipeline {
	if tracker == nil {
		tracker = (*events.Collector)(nil)
	}
	return &Pipeline{
		crawler:     c,
		builder:     b,
		tracker:     tracker,
		invalidator: invalidator,
		defaults:    defaults,
		logger:      slog.Default().With("component", "pipeline"),
	}
}

// Crawl runs the crawl described by req and, unless SkipIndex is set, the
// index build, blocking until both finish. Zero MaxPages and Concurrency
// fall back to the configured defaults.
func (p *Pipeline) Crawl(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()
	opts := p.defaults
	opts.Reset = req.Reset
	if req.MaxPages != 0 {
		opts.MaxPages = req.MaxPages
	}
	if req.Concurrency != 0 {
		opts.Concurrency = req.Concurrency
	}

	ctx, span := tracing.Start(ctx, "pipeline.crawl")
	defer span.End()
	span.SetAttr("seed", req.Seed)

	out := &Outcome{}
	crawlCtx, crawlSpan := tracing.Start(ctx, "crawl")
	res, err := p.crawler.Run(crawlCtx, req.Seed, opts)
	if res != nil {
		crawlSpan.SetAttr("crawled", res.Crawled)
	}
	crawlSpan.End()
	out.Crawl = res
	if err != nil {
		return out, fmt.Errorf("crawling %s: %w", req.Seed, err)
	}
	p.tracker.Track(events.TypeCrawlComplete, req.Seed, events.CrawlCompleted{
		Seed:       res.Seed,
		Crawled:    res.Crawled,
		Failed:     res.Failed,
		Duplicates: res.Duplicates,
		DurationMs: res.Duration.Milliseconds(),
		RequestID:  logger.RequestID(ctx),
		Timestamp:  time.Now().UTC(),
	})
	if req.SkipIndex {
		out.Duration = time.Since(start)
		return out, nil
	}

	report, err := p.build(ctx)
	out.Index = report
	out.Duration = time.Since(start)
	if ctx.Err() == nil {
		p.tracker.Track(events.TypeIndexComplete, "index", consumer.Completed(report, err))
		p.invalidate(ctx)
	}
	if err != nil {
		return out, fmt.Errorf("indexing: %w", err)
	}
	p.logger.Info("crawl and index finished",
		"seed", req.Seed,
		"crawled", res.Crawled,
		"documents", report.Documents,
		"terms", report.Terms,
		"duration", out.Duration.Round(time.Millisecond).String(),
	)
	return out, nil
}

// Rebuild rebuilds the index from the stored crawl records.
func (p *Pipeline) Rebuild(ctx context.Context) (*indexer.Report, error) {
	ctx, span := tracing.Start(ctx, "pipeline.rebuild")
	defer span.End()
	report, err := p.build(ctx)
	if ctx.Err() == nil {
		p.tracker.Track(events.TypeIndexComplete, "index", consumer.Completed(report, err))
		p.invalidate(ctx)
	}
	return report, err
}

func (p *Pipeline) build(ctx context.Context) (*indexer.Report, error) {
	ctx, span := tracing.Start(ctx, "index")
	defer span.End()
	// The build resets the index first; cached pages from the old build
	// must not outlive that.
	p.invalidate(ctx)
	report, err := p.builder.Build(ctx)
	if report != nil {
		span.SetAttr("documents", report.Documents)
		span.SetAttr("terms", report.Terms)
	}
	return report, err
}

func (p *Pipeline) invalidate(ctx context.Context) {
	if p.invalidator == nil {
		return
	}
	if err := p.invalidator.Invalidate(ctx); err != nil {
		p.logger.Warn("cache invalidation failed", "error", err)
	}
}
