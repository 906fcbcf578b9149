// Package e2e runs the whole engine in-process: a fixture website served by
// httptest is crawled over real HTTP into an SQLite store, indexed, and
// queried through the public HTTP API.
//
// Run with:
//
//	go test -v -timeout=120s ./test/e2e/...
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/crawler"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/store/sqlstore"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/middleware"
)

// ---------------------------------------------------------------------------
// Fixture site
// ---------------------------------------------------------------------------

var fixturePages = map[string]string{
	"/": `<html><head><title>Pet Encyclopedia</title></head><body>
<p>An encyclopedia about household pets.</p>
<a href="/cats">Cats</a> <a href="/dogs">Dogs</a> <a href="fish">Fish</a>
</body></html>`,
	"/cats": `<html><head><title>Cats</title></head><body>
<p>Cats purr when content. Kittens grow into cats and chase mice.</p>
<a href="/">Home</a> <a href="/dogs#top">Dogs</a>
</body></html>`,
	"/dogs": `<html><head><title>Dogs</title></head><body>
<p>Dogs bark at strangers and fetch sticks. Puppies love walks.</p>
<a href="/">Home</a>
</body></html>`,
	"/fish": `<html><head><title>Fish</title></head><body>
<p>Fish swim in water tanks and never bark.</p>
<a href="/">Home</a> <a href="/missing">Missing</a>
</body></html>`,
}

func fixtureSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, ok := fixturePages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// ---------------------------------------------------------------------------
// Engine
// ---------------------------------------------------------------------------

func startEngine(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	st, err := sqlstore.OpenSQLite(ctx, filepath.Join(t.TempDir(), "e2e.db"))
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ix, err := indexer.New(st, indexer.Options{Workers: 4, LengthFormula: config.LengthLegacy}, nil)
	if err != nil {
		t.Fatal(err)
	}
	fetcher := crawler.NewHTTPFetcher(config.CrawlerConfig{UserAgent: "e2e", MaxBodyBytes: 1 << 20})
	defaults := crawler.Options{MaxPages: 10, Concurrency: 3, FetchTimeout: 5 * time.Second}
	p := pipeline.New(crawler.New(st, fetcher, nil), ix, nil, nil, defaults)

	h := handler.New(executor.New(st, 2), p, nil, nil, 10, 50)
	checker := health.NewChecker()
	checker.Register("index", health.ReadyCheck(st.IsIndexReady, "index not ready"))

	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	srv := httptest.NewServer(middleware.RequestID(mux))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any, out any) int {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func search(t *testing.T, base, query string) executor.SearchResult {
	t.Helper()
	resp, err := http.Get(base + "/api/v1/search?k=5&q=" + query)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search %q: status %d", query, resp.StatusCode)
	}
	var result executor.SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	return result
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

// TestCrawlIndexSearch crawls the fixture site through the API and checks
// that queries rank the matching page first.
func TestCrawlIndexSearch(t *testing.T) {
	site := fixtureSite(t)
	engine := startEngine(t)

	resp, err := http.Get(engine.URL + "/health/ready")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("ready before indexing: status %d, want 503", resp.StatusCode)
	}

	var outcome pipeline.Outcome
	status := postJSON(t, engine.URL+"/api/v1/crawl", pipeline.Request{Seed: site.URL + "/"}, &outcome)
	if status != http.StatusOK {
		t.Fatalf("crawl status = %d", status)
	}
	if outcome.Crawl.Crawled != 4 || outcome.Crawl.Failed != 1 {
		t.Errorf("crawl = %+v, want 4 crawled and the missing page failed", outcome.Crawl)
	}
	if outcome.Index == nil || outcome.Index.Documents != 4 {
		t.Fatalf("index report = %+v", outcome.Index)
	}

	resp, err = http.Get(engine.URL + "/health/ready")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready after indexing: status %d", resp.StatusCode)
	}

	tests := []struct {
		query     string
		wantTitle string
	}{
		{"kittens+purr", "Cats"},
		{"puppies", "Dogs"},
		{"swimming", "Fish"},
		{"encyclopedia", "Pet Encyclopedia"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			result := search(t, engine.URL, tt.query)
			if len(result.Results) == 0 {
				t.Fatalf("no results for %q", tt.query)
			}
			if got := result.Results[0].Title; got != tt.wantTitle {
				t.Errorf("top result = %q, want %q", got, tt.wantTitle)
			}
		})
	}

	if result := search(t, engine.URL, "zebra"); len(result.Results) != 0 {
		t.Errorf("expected no results for an unknown term, got %+v", result.Results)
	}
}

// TestFeedbackExpandsQuery marks one result relevant and checks that its
// distinctive terms enter the refined query.
func TestFeedbackExpandsQuery(t *testing.T) {
	site := fixtureSite(t)
	engine := startEngine(t)
	if status := postJSON(t, engine.URL+"/api/v1/crawl", pipeline.Request{Seed: site.URL + "/"}, nil); status != http.StatusOK {
		t.Fatalf("crawl status = %d", status)
	}

	first := search(t, engine.URL, "bark")
	if len(first.Results) < 2 {
		t.Fatalf("expected dogs and fish for bark, got %+v", first.Results)
	}
	var relevant int64
	shown := make([]int64, 0, len(first.Results))
	for _, doc := range first.Results {
		shown = append(shown, doc.DocumentID)
		if doc.Title == "Dogs" {
			relevant = doc.DocumentID
		}
	}
	if relevant == 0 {
		t.Fatalf("Dogs missing from %+v", first.Results)
	}

	var refined executor.Refinement
	status := postJSON(t, engine.URL+"/api/v1/feedback", handler.FeedbackRequest{
		Query:    "bark",
		Relevant: []int64{relevant},
		Shown:    shown,
	}, &refined)
	if status != http.StatusOK {
		t.Fatalf("feedback status = %d", status)
	}
	if refined.Vector.Weight("puppi") <= 0 {
		t.Errorf("expected the relevant page's terms in %+v", refined.Vector)
	}
	if refined.Vector.Weight("swim") != 0 {
		t.Errorf("non-relevant only terms must not be added: %+v", refined.Vector)
	}
	if len(refined.Result.Results) == 0 || refined.Result.Results[0].Title != "Dogs" {
		t.Errorf("refined ranking = %+v, want Dogs first", refined.Result.Results)
	}

	status = postJSON(t, engine.URL+"/api/v1/feedback", handler.FeedbackRequest{Query: "bark", Shown: shown}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("feedback without relevant docs: status %d, want 400", status)
	}
}
