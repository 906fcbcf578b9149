// Package indexer turns crawl records into the inverted index. A build runs
// in two phases: posting lists are built first, then each document's length
// is computed from the finished document frequencies.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/store"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/syncx"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Options controls a build.
type Options struct {
	Workers       int
	LengthFormula string
	LockStripes   int
}

// OptionsFromConfig maps the indexer config section onto Options.
func OptionsFromConfig(cfg config.IndexerConfig) Options {
	return Options{
		Workers:       cfg.Workers,
		LengthFormula: cfg.LengthFormula,
		LockStripes:   cfg.LockStripes,
	}
}

// Report summarizes a build.
type Report struct {
	Documents   int           `json:"documents"`
	Terms       int           `json:"terms"`
	FailedTasks int           `json:"failed_tasks"`
	Formula     string        `json:"formula"`
	Duration    time.Duration `json:"duration"`
}

type Indexer struct {
	store   store.Store
	opts    Options
	length  LengthFunc
	terms   *syncx.KeyLock
	metrics *metrics.Metrics
	logger  *slog.Logger

	// one build at a time
	buildMu sync.Mutex
}

func New(s store.Store, opts Options, m *metrics.Metrics) (*Indexer, error) {
	if opts.Workers <= 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "indexer workers must be positive, got %d", opts.Workers)
	}
	length, err := LengthFor(opts.LengthFormula)
	if err != nil {
		return nil, err
	}
	if opts.LengthFormula == "" {
		opts.LengthFormula = config.LengthLegacy
	}
	return &Indexer{
		store:   s,
		opts:    opts,
		length:  length,
		terms:   syncx.NewKeyLock(opts.LockStripes),
		metrics: m,
		logger:  slog.Default().With("component", "indexer"),
	}, nil
}

// taskErrors collects per-task failures from concurrent workers.
type taskErrors struct {
	mu   sync.Mutex
	errs []error
}

func (t *taskErrors) add(err error) {
	t.mu.Lock()
	t.errs = append(t.errs, err)
	t.mu.Unlock()
}

func (t *taskErrors) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.errs)
}

// Build rebuilds the index from the current crawl records. The index is
// reset first, so repeated builds over the same records give the same
// result. The index is marked ready only when every task succeeded;
// otherwise the returned error wraps errors.ErrIndexIncomplete together
// with every task error.
func (ix *Indexer) Build(ctx context.Context) (*Report, error) {
	ix.buildMu.Lock()
	defer ix.buildMu.Unlock()

	start := time.Now()
	report := &Report{Formula: ix.opts.LengthFormula}
	status := "failed"
	defer func() {
		report.Duration = time.Since(start)
		ix.metrics.IndexBuilt(status, report.Duration, report.Documents, report.Terms)
	}()

	if err := ix.store.ResetIndex(ctx); err != nil {
		return report, fmt.Errorf("resetting index: %w", err)
	}
	docs, err := ix.loadDocuments(ctx)
	if err != nil {
		return report, err
	}
	report.Documents = len(docs)
	ix.logger.Info("index build started",
		"documents", len(docs),
		"workers", ix.opts.Workers,
		"formula", ix.opts.LengthFormula,
	)

	failures := &taskErrors{}
	if err := ix.buildPostings(ctx, docs, failures); err != nil {
		status = "cancelled"
		return report, err
	}

	entries, err := ix.store.ListTerms(ctx)
	if err != nil {
		return report, fmt.Errorf("listing terms: %w", err)
	}
	df := make(map[string]int, len(entries))
	for _, e := range entries {
		df[e.Term] = e.DocFrequency
	}
	report.Terms = len(df)

	if err := ix.computeLengths(ctx, docs, df, failures); err != nil {
		status = "cancelled"
		return report, err
	}

	if n := failures.len(); n > 0 {
		status = "incomplete"
		report.FailedTasks = n
		ix.logger.Error("index build incomplete",
			"failed_tasks", n,
			"documents", report.Documents,
			"terms", report.Terms,
		)
		return report, fmt.Errorf("%w: %d tasks failed: %w", apperrors.ErrIndexIncomplete, n, errors.Join(failures.errs...))
	}

	if err := ix.store.SetIndexReady(ctx, true); err != nil {
		return report, fmt.Errorf("marking index ready: %w", err)
	}
	status = "success"
	ix.logger.Info("index build finished",
		"documents", report.Documents,
		"terms", report.Terms,
		"duration", time.Since(start).Round(time.Millisecond).String(),
	)
	return report, nil
}

func (ix *Indexer) loadDocuments(ctx context.Context) ([]store.Document, error) {
	records, err := ix.store.ListCrawlRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing crawl records: %w", err)
	}
	docs := make([]store.Document, 0, len(records))
	for _, rec := range records {
		doc := store.Document{URL: rec.URL, Title: rec.Title, TermBag: rec.TermBag}
		id, err := ix.store.InsertDocument(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("copying crawl record %d: %w", rec.ID, err)
		}
		doc.ID = id
		docs = append(docs, doc)
	}
	return docs, nil
}

// buildPostings is phase 1: one task per (document, term).
func (ix *Indexer) buildPostings(ctx context.Context, docs []store.Document, failures *taskErrors) error {
	var g errgroup.Group
	g.SetLimit(ix.opts.Workers)
	for _, doc := range docs {
		for _, term := range sortedTerms(doc.TermBag) {
			if ctx.Err() != nil {
				break
			}
			posting := store.Posting{
				DocumentID:       doc.ID,
				Title:            doc.Title,
				URL:              doc.URL,
				TermDocFrequency: doc.TermBag[term],
			}
			g.Go(func() error {
				unlock := ix.terms.Lock(term)
				defer unlock()
				if err := ix.store.UpsertTerm(ctx, term, posting); err != nil {
					if ctx.Err() == nil {
						ix.metrics.IndexTaskFailed("postings")
						failures.add(fmt.Errorf("posting %q for document %d: %w", term, posting.DocumentID, err))
					}
				}
				return nil
			})
		}
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("index build cancelled during postings: %w", err)
	}
	return nil
}

// computeLengths is phase 2: one task per document.
func (ix *Indexer) computeLengths(ctx context.Context, docs []store.Document, df map[string]int, failures *taskErrors) error {
	n := len(docs)
	var g errgroup.Group
	g.SetLimit(ix.opts.Workers)
	for _, doc := range docs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			length, err := ix.length(doc.TermBag, df, n)
			if err == nil {
				err = ix.store.SetDocumentLength(ctx, doc.ID, length)
			}
			if err != nil && ctx.Err() == nil {
				ix.metrics.IndexTaskFailed("length")
				failures.add(fmt.Errorf("length of document %d: %w", doc.ID, err))
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("index build cancelled during lengths: %w", err)
	}
	return nil
}

func sortedTerms(bag map[string]int) []string {
	terms := make([]string, 0, len(bag))
	for term := range bag {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}
