// Package crawler discovers pages from a seed URL with a bounded pool of
// fetch workers and stores each new page as a crawl record holding its
// normalized term bag.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/store"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/syncx"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/textnorm"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/resilience"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// State is the lifecycle phase of a crawl run.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Options controls a crawl run.
type Options struct {
	MaxPages          int
	Concurrency       int
	Reset             bool
	FetchTimeout      time.Duration
	RequestsPerSecond float64
	LockStripes       int
}

// OptionsFromConfig maps the crawler config section onto Options.
func OptionsFromConfig(cfg config.CrawlerConfig) Options {
	return Options{
		MaxPages:          cfg.MaxPages,
		Concurrency:       cfg.Concurrency,
		FetchTimeout:      cfg.FetchTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		LockStripes:       256,
	}
}

// Result summarizes a finished run.
type Result struct {
	Seed       string        `json:"seed"`
	Crawled    int           `json:"crawled"`
	Failed     int64         `json:"failed"`
	Duplicates int64         `json:"duplicates"`
	Duration   time.Duration `json:"duration"`
}

// Crawler runs one crawl at a time. It is reusable once a run is done.
type Crawler struct {
	store   store.Store
	fetcher Fetcher
	metrics *metrics.Metrics
	logger  *slog.Logger
	state   atomic.Int32
}

func New(s store.Store, fetcher Fetcher, m *metrics.Metrics) *Crawler {
	return &Crawler{
		store:   s,
		fetcher: fetcher,
		metrics: m,
		logger:  slog.Default().With("component", "crawler"),
	}
}

// State reports the current phase.
func (c *Crawler) State() State {
	return State(c.state.Load())
}

// run holds the per-run mutable state shared by workers.
type run struct {
	opts     Options
	frontier *frontier
	dedup    *syncx.KeyLock
	limiter  *rate.Limiter
	stop     context.CancelFunc

	mu      sync.Mutex
	crawled int

	failed     atomic.Int64
	duplicates atomic.Int64
}

func (r *run) full() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.crawled >= r.opts.MaxPages
}

// Run crawls from seed until MaxPages records are stored or the frontier
// is exhausted. Per-page failures are skipped; only store resets and
// cancellation of ctx surface as errors.
func (c *Crawler) Run(ctx context.Context, seed string, opts Options) (*Result, error) {
	if opts.MaxPages <= 0 || opts.Concurrency <= 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"maxPages and concurrency must be positive (got %d, %d)", opts.MaxPages, opts.Concurrency)
	}
	if seed == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "seed url is required")
	}
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) &&
		!c.state.CompareAndSwap(int32(StateDone), int32(StateRunning)) {
		return nil, apperrors.ErrCrawlRunning
	}
	defer c.state.Store(int32(StateDone))

	start := time.Now()
	if opts.Reset {
		if err := c.store.ResetCrawlRecords(ctx); err != nil {
			return nil, fmt.Errorf("resetting crawl records: %w", err)
		}
		c.logger.Info("crawl records reset")
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	r := &run{
		opts:     opts,
		frontier: newFrontier(seed),
		dedup:    syncx.NewKeyLock(opts.LockStripes),
		stop:     stop,
	}
	if opts.RequestsPerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Concurrency)
	}

	c.logger.Info("crawl started",
		"seed", seed,
		"max_pages", opts.MaxPages,
		"concurrency", opts.Concurrency,
	)

	var g errgroup.Group
	g.SetLimit(opts.Concurrency)
	for !r.full() {
		next, ok := r.frontier.Pop(runCtx)
		if !ok {
			break
		}
		if r.full() {
			r.frontier.Done()
			break
		}
		c.metrics.SetFrontierSize(r.frontier.Len())
		g.Go(func() error {
			defer r.frontier.Done()
			c.visit(runCtx, r, next)
			return nil
		})
	}
	c.state.Store(int32(StateDraining))
	_ = g.Wait()

	r.mu.Lock()
	crawled := r.crawled
	r.mu.Unlock()
	res := &Result{
		Seed:       seed,
		Crawled:    crawled,
		Failed:     r.failed.Load(),
		Duplicates: r.duplicates.Load(),
		Duration:   time.Since(start),
	}
	c.logger.Info("crawl finished",
		"crawled", res.Crawled,
		"failed", res.Failed,
		"duplicates", res.Duplicates,
		"duration", res.Duration.Round(time.Millisecond).String(),
	)
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("crawl cancelled: %w", err)
	}
	return res, nil
}

func (c *Crawler) visit(ctx context.Context, r *run, pageURL string) {
	log := c.logger.With("url", pageURL)
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return
		}
	}

	var page *Page
	err := resilience.WithTimeout(ctx, r.opts.FetchTimeout, "fetch", func(ctx context.Context) error {
		p, err := c.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		if ctx.Err() == nil {
			r.failed.Add(1)
			reason := "fetch"
			if errors.Is(err, ErrNoTitle) || errors.Is(err, ErrNotHTML) {
				reason = "parse"
			}
			c.metrics.FetchFailed(reason)
			log.Debug("page skipped", "reason", reason, "error", err)
		}
		return
	}

	if added := r.frontier.Push(page.Links...); added > 0 {
		c.metrics.SetFrontierSize(r.frontier.Len())
	}

	unlock := r.dedup.Lock(page.Title + "\x00" + pageURL)
	defer unlock()

	exists, err := c.store.CrawlRecordExists(ctx, page.Title, pageURL)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.failed.Add(1)
		c.metrics.FetchFailed("store")
		log.Warn("duplicate check failed", "error", err)
		return
	}
	if exists {
		r.duplicates.Add(1)
		c.metrics.DuplicateSkipped()
		log.Debug("duplicate page skipped", "title", page.Title)
		return
	}

	bag := textnorm.Normalize(page.Text)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.crawled >= r.opts.MaxPages {
		return
	}
	if _, err := c.store.InsertCrawlRecord(ctx, store.CrawlRecord{
		URL:     pageURL,
		Title:   page.Title,
		TermBag: bag,
	}); err != nil {
		if ctx.Err() != nil {
			return
		}
		r.failed.Add(1)
		c.metrics.FetchFailed("store")
		log.Warn("storing crawl record failed", "error", err)
		return
	}
	r.crawled++
	c.metrics.PageCrawled()
	log.Info("page crawled",
		"crawled", r.crawled,
		"max_pages", r.opts.MaxPages,
		"terms", len(bag),
	)
	if r.crawled >= r.opts.MaxPages {
		r.stop()
	}
}
