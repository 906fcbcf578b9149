// Package executor answers ranked keyword queries against the index and
// computes Rocchio-refined queries from relevance feedback.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/tracing"
	"golang.org/x/sync/errgroup"
)

type SearchResult struct {
	Terms     []string           `json:"terms"`
	TotalHits int                `json:"total_hits"`
	Results   []ranker.ScoredDoc `json:"results"`
	TermStats map[string]int     `json:"term_stats"`
}

// Refinement is the outcome of one feedback round.
type Refinement struct {
	Vector ranker.Vector `json:"vector"`
	Result *SearchResult `json:"result"`
}

type Executor struct {
	store   store.Store
	workers int
	logger  *slog.Logger
}

func New(s store.Store, workers int) *Executor {
	if workers <= 0 {
		workers = 1
	}
	return &Executor{
		store:   s,
		workers: workers,
		logger:  slog.Default().With("component", "query-executor"),
	}
}

// Ready reports apperrors.ErrIndexNotReady until a build has completed.
func (e *Executor) Ready(ctx context.Context) error {
	_, err := e.snapshot(ctx)
	return err
}

// snapshot returns the generation of a ready index. The generation is read
// first so a reset landing between the two reads shows up as not ready.
func (e *Executor) snapshot(ctx context.Context) (int64, error) {
	gen, err := e.store.IndexGeneration(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading index generation: %w", err)
	}
	ready, err := e.store.IsIndexReady(ctx)
	if err != nil {
		return 0, fmt.Errorf("checking index state: %w", err)
	}
	if !ready {
		return 0, apperrors.ErrIndexNotReady
	}
	return gen, nil
}

// verify fails when the index was reset after snapshot returned gen, in
// which case anything read in between may mix two builds.
func (e *Executor) verify(ctx context.Context, gen int64) error {
	current, err := e.snapshot(ctx)
	if err != nil {
		return err
	}
	if current != gen {
		e.logger.Debug("index rebuilt during query", "from", gen, "to", current)
		return apperrors.ErrIndexNotReady
	}
	return nil
}

// orStale prefers ErrIndexNotReady over err when a reset explains it, such
// as a feedback document vanishing mid-rebuild.
func (e *Executor) orStale(ctx context.Context, gen int64, err error) error {
	if verr := e.verify(ctx, gen); verr != nil {
		return verr
	}
	return err
}

// Search scores every document containing a query term and returns the
// best k. Terms are lowercased; terms absent from the index contribute
// nothing. Per-term scoring runs in parallel and partial scores are merged
// in query order.
func (e *Executor) Search(ctx context.Context, terms []string, k int) (*SearchResult, error) {
	if k <= 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "k must be positive, got %d", k)
	}
	gen, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	lowered := make([]string, len(terms))
	for i, term := range terms {
		lowered[i] = strings.ToLower(term)
	}

	n, err := e.store.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}

	partials := make([]*ranker.Accumulator, len(lowered))
	frequencies := make([]int, len(lowered))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, term := range lowered {
		g.Go(func() error {
			entry, err := e.store.FindTerm(gctx, term)
			if errors.Is(err, apperrors.ErrTermNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("looking up term %q: %w", term, err)
			}
			acc := ranker.NewAccumulator()
			weight := ranker.TermWeight(entry.DocFrequency, n)
			for _, p := range entry.Postings {
				acc.Add(p, weight)
			}
			partials[i] = acc
			frequencies[i] = entry.DocFrequency
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scores := ranker.NewAccumulator()
	termStats := make(map[string]int)
	for i, term := range lowered {
		scores.Merge(partials[i])
		if partials[i] != nil {
			termStats[term] = frequencies[i]
		}
	}

	lengths, err := e.lengths(ctx, scores.DocumentIDs())
	if err != nil {
		return nil, err
	}
	if err := e.verify(ctx, gen); err != nil {
		return nil, err
	}
	results := scores.Rank(lengths, k)
	e.logger.Debug("query executed",
		"terms", lowered,
		"candidates", scores.Len(),
		"results", len(results),
	)
	return &SearchResult{
		Terms:     lowered,
		TotalHits: len(lengths),
		Results:   results,
		TermStats: termStats,
	}, nil
}

// lengths loads the stored length of each document. Documents that are
// gone or not yet measured are left out.
func (e *Executor) lengths(ctx context.Context, ids []int64) (map[int64]float64, error) {
	var mu sync.Mutex
	out := make(map[int64]float64, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, id := range ids {
		g.Go(func() error {
			doc, err := e.store.GetDocument(gctx, id)
			if errors.Is(err, apperrors.ErrDocumentNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("loading document %d: %w", id, err)
			}
			if doc.Length == nil {
				return nil
			}
			mu.Lock()
			out[id] = *doc.Length
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Rocchio returns the refined query vector for the given feedback. At least
// one relevant document is required.
func (e *Executor) Rocchio(ctx context.Context, query []string, relevant, nonRelevant []int64) (ranker.Vector, error) {
	if len(relevant) == 0 {
		return nil, apperrors.ErrEmptyFeedback
	}
	gen, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	lowered := make([]string, len(query))
	for i, term := range query {
		lowered[i] = strings.ToLower(term)
	}

	n, err := e.store.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}
	entries, err := e.store.ListTerms(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing terms: %w", err)
	}
	stats := ranker.IndexStats{
		TotalDocs:    n,
		DocFrequency: make(map[string]int, len(entries)),
		Postings:     make(map[string]int, len(entries)),
	}
	for _, entry := range entries {
		stats.DocFrequency[entry.Term] = entry.DocFrequency
		stats.Postings[entry.Term] = len(entry.Postings)
	}

	relevantBags, err := e.bags(ctx, relevant)
	if err != nil {
		return nil, e.orStale(ctx, gen, err)
	}
	nonRelevantBags, err := e.bags(ctx, nonRelevant)
	if err != nil {
		return nil, e.orStale(ctx, gen, err)
	}
	if err := e.verify(ctx, gen); err != nil {
		return nil, err
	}
	vec, err := ranker.Rocchio(lowered, stats, relevantBags, nonRelevantBags)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("query refined",
		"query", lowered,
		"relevant", len(relevant),
		"non_relevant", len(nonRelevant),
		"terms", len(vec),
	)
	return vec, nil
}

func (e *Executor) bags(ctx context.Context, ids []int64) ([]map[string]int, error) {
	out := make([]map[string]int, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, id := range ids {
		g.Go(func() error {
			doc, err := e.store.GetDocument(gctx, id)
			if err != nil {
				return fmt.Errorf("loading feedback document %d: %w", id, err)
			}
			out[i] = doc.TermBag
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Refine runs one feedback round: Rocchio, then a search with the refined
// vector's terms.
func (e *Executor) Refine(ctx context.Context, query []string, k int, relevant, nonRelevant []int64) (*Refinement, error) {
	ctx, span := tracing.Start(ctx, "feedback")
	defer span.End()

	rocchioCtx, rocchioSpan := tracing.Start(ctx, "rocchio")
	vec, err := e.Rocchio(rocchioCtx, query, relevant, nonRelevant)
	rocchioSpan.SetAttr("terms", len(vec))
	rocchioSpan.End()
	if err != nil {
		return nil, err
	}

	searchCtx, searchSpan := tracing.Start(ctx, "search")
	result, err := e.Search(searchCtx, vec.Terms(), k)
	if result != nil {
		searchSpan.SetAttr("results", len(result.Results))
	}
	searchSpan.End()
	if err != nil {
		return nil, err
	}
	return &Refinement{Vector: vec, Result: result}, nil
}
