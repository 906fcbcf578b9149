package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/searcher/ranker"
)

func TestRunMixesSearchAndFeedback(t *testing.T) {
	var badFeedback atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Cache", "hit")
		json.NewEncoder(w).Encode(executor.SearchResult{
			Terms:   strings.Fields(r.URL.Query().Get("q")),
			Results: []ranker.ScoredDoc{{DocumentID: 7}, {DocumentID: 9}},
		})
	})
	mux.HandleFunc("POST /api/v1/feedback", func(w http.ResponseWriter, r *http.Request) {
		var req handler.FeedbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
			len(req.Relevant) != 1 || req.Relevant[0] != 7 || len(req.Shown) != 2 {
			badFeedback.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := Config{
		BaseURL:       srv.URL,
		Concurrency:   2,
		K:             2,
		Queries:       []string{"cats", "dogs"},
		FeedbackRatio: 1,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	stats := run(ctx, cfg, srv.Client())

	search := stats.endpoint(endpointSearch).summarize()
	fb := stats.endpoint(endpointFeedback).summarize()
	if search.Requests == 0 || fb.Requests == 0 {
		t.Fatalf("search requests = %d, feedback requests = %d, want both > 0", search.Requests, fb.Requests)
	}
	if search.Failures != 0 || search.CacheHits != search.Requests {
		t.Errorf("search summary = %+v", search)
	}
	if n := badFeedback.Load(); n != 0 {
		t.Errorf("%d malformed feedback requests", n)
	}
	if fb.Failures != 0 {
		t.Errorf("feedback failures = %d", fb.Failures)
	}
}

func TestRunSkipsFeedbackOnFailedSearch(t *testing.T) {
	var feedbacks atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"index not ready"}`, http.StatusServiceUnavailable)
	})
	mux.HandleFunc("POST /api/v1/feedback", func(http.ResponseWriter, *http.Request) {
		feedbacks.Add(1)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	stats := run(ctx, Config{BaseURL: srv.URL, Concurrency: 1, K: 5, Queries: []string{"cats"}, FeedbackRatio: 1}, srv.Client())

	search := stats.endpoint(endpointSearch).summarize()
	if search.Requests == 0 || search.Failures != search.Requests {
		t.Errorf("search summary = %+v, want every request failed", search)
	}
	if search.Codes[http.StatusServiceUnavailable] != search.Requests {
		t.Errorf("status codes = %v", search.Codes)
	}
	if n := feedbacks.Load(); n != 0 {
		t.Errorf("feedback sent %d times after failed searches", n)
	}
}

func TestReport(t *testing.T) {
	stats := NewStats(endpointSearch, endpointFeedback)
	var buf bytes.Buffer
	if stats.report(&buf, time.Second) {
		t.Error("report claims completion with no requests")
	}

	s := stats.endpoint(endpointSearch)
	s.record(10*time.Millisecond, http.StatusOK, true, nil)
	s.record(30*time.Millisecond, http.StatusOK, false, nil)
	s.record(0, 0, false, context.DeadlineExceeded)
	buf.Reset()
	if !stats.report(&buf, time.Second) {
		t.Fatal("report claims nothing completed")
	}
	out := buf.String()
	for _, want := range []string{"=== search ===", "requests  3", "failures  1", "cached    50.00%", "HTTP 200: 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "=== feedback ===") {
		t.Errorf("idle endpoint reported:\n%s", out)
	}
}

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	tests := []struct {
		p    float64
		want time.Duration
	}{
		{0, 1},
		{50, 5},
		{90, 9},
		{99, 10},
		{100, 10},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.p); got != tt.want {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("percentile(nil) = %v", got)
	}
}
