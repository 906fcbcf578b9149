package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.PageCrawled()
	m.FetchFailed("parse")
	m.IndexBuilt("success", time.Second, 3, 7)
	m.SearchServed("hit", "miss", time.Millisecond, 2)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	seen := make(map[string]bool)
	for _, f := range families {
		seen[f.GetName()] = true
	}
	for _, name := range []string{
		"crawler_pages_crawled_total",
		"crawler_fetch_failures_total",
		"indexer_builds_total",
		"indexer_documents",
		"search_queries_total",
	} {
		if !seen[name] {
			t.Errorf("metric %s not gathered", name)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.PageCrawled()
	m.FetchFailed("fetch")
	m.IndexBuilt("error", time.Second, 0, 0)
	m.SearchServed("error", "none", time.Millisecond, 0)
	m.CacheHit()
	m.SetBreakerState("redis", 1)
}

func TestServerRoutes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SearchServed("hit", "miss", time.Millisecond, 3)

	s := NewServer(0, reg)
	s.Handle("GET /health/ready", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/metrics", http.StatusOK, "search_queries_total"},
		{"/", http.StatusOK, "GET /health/ready"},
		{"/health/ready", http.StatusServiceUnavailable, ""},
		{"/nope", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if !strings.Contains(string(body), tt.body) {
				t.Errorf("body does not contain %q:\n%s", tt.body, body)
			}
		})
	}
}
