package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/metrics"
)

type SearchExecutor interface {
	Ready(ctx context.Context) error
	Search(ctx context.Context, terms []string, k int) (*executor.SearchResult, error)
	Refine(ctx context.Context, query []string, k int, relevant, nonRelevant []int64) (*executor.Refinement, error)
}

type Pipeline interface {
	Crawl(ctx context.Context, req pipeline.Request) (*pipeline.Outcome, error)
	Rebuild(ctx context.Context) (*indexer.Report, error)
}

type Handler struct {
	executor     SearchExecutor
	pipeline     Pipeline
	cache        *cache.QueryCache
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New builds the API handler. pipeline and queryCache may be nil, which
// disables the crawl and cache endpoints.
func New(exec SearchExecutor, p Pipeline, queryCache *cache.QueryCache, m *metrics.Metrics, defaultLimit, maxResults int) *Handler {
	return &Handler{
		executor:     exec,
		pipeline:     p,
		cache:        queryCache,
		metrics:      m,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	h.QueryRoutes(mux)
	h.PipelineRoutes(mux)
}

// QueryRoutes registers the short-lived query and cache endpoints.
func (h *Handler) QueryRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/feedback", h.Feedback)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// PipelineRoutes registers the crawl and rebuild endpoints, which block
// until the work is done.
func (h *Handler) PipelineRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/crawl", h.Crawl)
	mux.HandleFunc("POST /api/v1/index/rebuild", h.Rebuild)
}

func (h *Handler) limit(raw string) (int, error) {
	if raw == "" {
		return h.defaultLimit, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 1 {
		return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "k must be a positive integer")
	}
	return min(parsed, h.maxResults), nil
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	k, err := h.limit(r.URL.Query().Get("k"))
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	// Checked before the cache so a reset index never serves cached pages.
	if err := h.executor.Ready(ctx); err != nil {
		h.metrics.SearchServed("error", "skipped", time.Since(start), 0)
		h.writeAppError(w, err)
		return
	}

	plan := parser.Parse(query)
	if len(plan.Terms) == 0 {
		h.writeJSON(w, http.StatusOK, &executor.SearchResult{
			Terms:   plan.Terms,
			Results: []ranker.ScoredDoc{},
		})
		return
	}

	var result *executor.SearchResult
	cacheStatus := "disabled"
	if h.cache != nil {
		var hit bool
		result, hit, err = h.cache.GetOrCompute(ctx, plan.Terms, k, func() (*executor.SearchResult, error) {
			return h.executor.Search(ctx, plan.Terms, k)
		})
		cacheStatus = "miss"
		if hit {
			cacheStatus = "hit"
		}
	} else {
		result, err = h.executor.Search(ctx, plan.Terms, k)
	}
	if err != nil {
		h.metrics.SearchServed("error", cacheStatus, time.Since(start), 0)
		log.Error("search execution failed", "query", query, "error", err)
		h.writeAppError(w, err)
		return
	}

	resultType := "hit"
	if len(result.Results) == 0 {
		resultType = "zero"
	}
	h.metrics.SearchServed(resultType, cacheStatus, time.Since(start), len(result.Results))
	log.Info("search completed",
		"query", query,
		"terms", plan.Terms,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache", cacheStatus,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	w.Header().Set("X-Cache", cacheStatus)
	h.writeJSON(w, http.StatusOK, result)
}

// FeedbackRequest marks documents of a result page. When NonRelevant is
// empty, every shown document not marked relevant counts as non-relevant.
type FeedbackRequest struct {
	Query       string  `json:"query"`
	K           int     `json:"k"`
	Relevant    []int64 `json:"relevant"`
	NonRelevant []int64 `json:"non_relevant"`
	Shown       []int64 `json:"shown"`
}

func (req *FeedbackRequest) nonRelevant() []int64 {
	if len(req.NonRelevant) > 0 {
		return req.NonRelevant
	}
	relevant := make(map[int64]bool, len(req.Relevant))
	for _, id := range req.Relevant {
		relevant[id] = true
	}
	out := make([]int64, 0, len(req.Shown))
	for _, id := range req.Shown {
		if !relevant[id] {
			out = append(out, id)
		}
	}
	return out
}

func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.executor.Ready(ctx); err != nil {
		h.writeAppError(w, err)
		return
	}
	plan := parser.Parse(req.Query)
	if len(plan.Terms) == 0 {
		h.writeError(w, http.StatusBadRequest, "query has no searchable terms")
		return
	}
	k := h.defaultLimit
	if req.K != 0 {
		var err error
		if k, err = h.limit(strconv.Itoa(req.K)); err != nil {
			h.writeAppError(w, err)
			return
		}
	}

	refined, err := h.executor.Refine(ctx, plan.Terms, k, req.Relevant, req.nonRelevant())
	if err != nil {
		logger.FromContext(ctx).Warn("feedback failed", "query", req.Query, "error", err)
		h.writeAppError(w, err)
		return
	}
	h.metrics.FeedbackRound()
	h.writeJSON(w, http.StatusOK, refined)
}

func (h *Handler) Crawl(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		h.writeError(w, http.StatusServiceUnavailable, "crawling is disabled")
		return
	}
	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	out, err := h.pipeline.Crawl(r.Context(), req)
	if err != nil {
		logger.FromContext(r.Context()).Error("crawl failed", "seed", req.Seed, "error", err)
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		h.writeError(w, http.StatusServiceUnavailable, "indexing is disabled")
		return
	}
	report, err := h.pipeline.Rebuild(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("index rebuild failed", "error", err)
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		"breaker":  h.cache.BreakerState().String(),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError reports err with the status its sentinel maps to. Internal
// errors are not echoed to the client.
func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		message = appErr.Message
	case status == http.StatusInternalServerError:
		message = "internal error"
	case errors.Is(err, apperrors.ErrIndexNotReady):
		message = apperrors.ErrIndexNotReady.Error()
	}
	h.writeError(w, status, message)
}
