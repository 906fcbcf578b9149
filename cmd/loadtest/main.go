// Command loadtest replays a query set against a running searcher. After a
// successful search a share of the workers, set by -feedback, marks the top
// result relevant and sends a feedback round for the same query, so the
// Rocchio path is loaded alongside plain search.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-concurrency 10] [-duration 30s] [-k 10] [-feedback 0.2]
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/searcher/handler"
)

const (
	endpointSearch   = "search"
	endpointFeedback = "feedback"
)

var defaultQueries = []string{
	"web crawler",
	"search engine",
	"inverted index",
	"relevance feedback",
	"term frequency",
	"document ranking",
	"stemming words",
	"hyperlinks",
	"breadth first search",
	"query expansion",
}

type Config struct {
	BaseURL       string
	Concurrency   int
	Duration      time.Duration
	K             int
	Queries       []string
	FeedbackRatio float64
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	k := flag.Int("k", 10, "results requested per query")
	queryList := flag.String("queries", "", "comma-separated queries, defaults to a built-in set")
	feedback := flag.Float64("feedback", 0.2, "share of successful searches followed by a feedback round, 0 to 1")
	flag.Parse()

	cfg := Config{
		BaseURL:       strings.TrimRight(*baseURL, "/"),
		Concurrency:   max(*concurrency, 1),
		Duration:      *duration,
		K:             *k,
		Queries:       defaultQueries,
		FeedbackRatio: min(max(*feedback, 0), 1),
	}
	if *queryList != "" {
		cfg.Queries = strings.Split(*queryList, ",")
	}

	fmt.Printf("target %s, %d workers for %s, %d queries, feedback %.0f%%\n\n",
		cfg.BaseURL, cfg.Concurrency, cfg.Duration, len(cfg.Queries), cfg.FeedbackRatio*100)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()
	start := time.Now()
	stats := run(ctx, cfg, newClient(cfg.Concurrency))
	if !stats.report(os.Stdout, time.Since(start)) {
		fmt.Println("no requests completed, is the searcher running?")
		os.Exit(1)
	}
}

func newClient(concurrency int) *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// run drives the workers until ctx is done.
func run(ctx context.Context, cfg Config, client *http.Client) *Stats {
	stats := NewStats(endpointSearch, endpointFeedback)
	var wg sync.WaitGroup
	for i := range cfg.Concurrency {
		w := &worker{
			cfg:    cfg,
			client: client,
			search: stats.endpoint(endpointSearch),
			fb:     stats.endpoint(endpointFeedback),
			rng:    rand.New(rand.NewPCG(uint64(i), uint64(time.Now().UnixNano()))),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx, i)
		}()
	}
	wg.Wait()
	return stats
}

type worker struct {
	cfg    Config
	client *http.Client
	search *endpointStats
	fb     *endpointStats
	rng    *rand.Rand
}

func (w *worker) loop(ctx context.Context, offset int) {
	for i := offset; ctx.Err() == nil; i++ {
		query := w.cfg.Queries[i%len(w.cfg.Queries)]
		page := w.doSearch(ctx, query)
		if page == nil || len(page.Results) == 0 || w.rng.Float64() >= w.cfg.FeedbackRatio {
			continue
		}
		w.doFeedback(ctx, query, page)
	}
}

// doSearch returns the decoded page, or nil when the request failed.
func (w *worker) doSearch(ctx context.Context, query string) *executor.SearchResult {
	target := fmt.Sprintf("%s/api/v1/search?q=%s&k=%d", w.cfg.BaseURL, url.QueryEscape(query), w.cfg.K)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		w.search.record(0, 0, false, err)
		return nil
	}
	var page executor.SearchResult
	took, status, header, err := w.do(req, &page)
	if ctx.Err() != nil {
		return nil
	}
	w.search.record(took, status, header.Get("X-Cache") == "hit", err)
	if err != nil || status != http.StatusOK {
		return nil
	}
	return &page
}

// doFeedback marks the top result relevant and every other shown result
// non-relevant.
func (w *worker) doFeedback(ctx context.Context, query string, page *executor.SearchResult) {
	fb := handler.FeedbackRequest{
		Query:    query,
		K:        w.cfg.K,
		Relevant: []int64{page.Results[0].DocumentID},
	}
	for _, doc := range page.Results {
		fb.Shown = append(fb.Shown, doc.DocumentID)
	}
	body, err := json.Marshal(fb)
	if err != nil {
		w.fb.record(0, 0, false, err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.BaseURL+"/api/v1/feedback", bytes.NewReader(body))
	if err != nil {
		w.fb.record(0, 0, false, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	took, status, _, err := w.do(req, nil)
	if ctx.Err() != nil {
		return
	}
	w.fb.record(took, status, false, err)
}

// do sends req and decodes a 200 body into out when out is non-nil.
func (w *worker) do(req *http.Request, out any) (time.Duration, int, http.Header, error) {
	start := time.Now()
	resp, err := w.client.Do(req)
	if err != nil {
		return time.Since(start), 0, nil, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		err = json.NewDecoder(resp.Body).Decode(out)
	} else {
		_, err = io.Copy(io.Discard, resp.Body)
	}
	if err != nil {
		err = fmt.Errorf("reading %s response: %w", req.URL.Path, err)
	}
	return time.Since(start), resp.StatusCode, resp.Header, err
}
