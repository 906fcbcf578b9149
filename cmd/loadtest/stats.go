package main

import (
	"fmt"
	"io"
	"math"
	"slices"
	"sync"
	"time"
)

// endpointStats aggregates the requests sent to one endpoint.
type endpointStats struct {
	mu          sync.Mutex
	requests    int
	failures    int
	cacheHits   int
	latencies   []time.Duration
	statusCodes map[int]int
}

func newEndpointStats() *endpointStats {
	return &endpointStats{statusCodes: make(map[int]int)}
}

// record counts one request. Transport errors carry status 0 and no latency.
func (e *endpointStats) record(took time.Duration, status int, cacheHit bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests++
	if err != nil {
		e.failures++
		return
	}
	if status < 200 || status >= 300 {
		e.failures++
	}
	if cacheHit {
		e.cacheHits++
	}
	e.latencies = append(e.latencies, took)
	e.statusCodes[status]++
}

type summary struct {
	Requests  int
	Failures  int
	CacheHits int
	Min       time.Duration
	Mean      time.Duration
	P50       time.Duration
	P90       time.Duration
	P99       time.Duration
	Max       time.Duration
	Codes     map[int]int
}

func (e *endpointStats) summarize() summary {
	e.mu.Lock()
	s := summary{
		Requests:  e.requests,
		Failures:  e.failures,
		CacheHits: e.cacheHits,
		Codes:     make(map[int]int, len(e.statusCodes)),
	}
	for code, n := range e.statusCodes {
		s.Codes[code] = n
	}
	sorted := slices.Clone(e.latencies)
	e.mu.Unlock()

	if len(sorted) == 0 {
		return s
	}
	slices.Sort(sorted)
	var total time.Duration
	for _, l := range sorted {
		total += l
	}
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Mean = total / time.Duration(len(sorted))
	s.P50 = percentile(sorted, 50)
	s.P90 = percentile(sorted, 90)
	s.P99 = percentile(sorted, 99)
	return s
}

// Stats keys per-endpoint stats by endpoint name.
type Stats struct {
	endpoints map[string]*endpointStats
}

func NewStats(endpoints ...string) *Stats {
	s := &Stats{endpoints: make(map[string]*endpointStats, len(endpoints))}
	for _, name := range endpoints {
		s.endpoints[name] = newEndpointStats()
	}
	return s
}

func (s *Stats) endpoint(name string) *endpointStats {
	return s.endpoints[name]
}

// report writes one block per endpoint that saw traffic and reports whether
// any request completed at all.
func (s *Stats) report(w io.Writer, elapsed time.Duration) bool {
	names := make([]string, 0, len(s.endpoints))
	for name := range s.endpoints {
		names = append(names, name)
	}
	slices.Sort(names)

	completed := false
	for _, name := range names {
		sum := s.endpoints[name].summarize()
		if sum.Requests == 0 {
			continue
		}
		completed = true
		ok := sum.Requests - sum.Failures
		fmt.Fprintf(w, "=== %s ===\n", name)
		fmt.Fprintf(w, "requests  %d (%.1f/s)\n", sum.Requests, float64(sum.Requests)/elapsed.Seconds())
		fmt.Fprintf(w, "failures  %d (%.2f%%)\n", sum.Failures, float64(sum.Failures)/float64(sum.Requests)*100)
		if name == endpointSearch && ok > 0 {
			fmt.Fprintf(w, "cached    %.2f%% of successful\n", float64(sum.CacheHits)/float64(ok)*100)
		}
		fmt.Fprintf(w, "latency   min %s  mean %s  p50 %s  p90 %s  p99 %s  max %s\n",
			sum.Min, sum.Mean, sum.P50, sum.P90, sum.P99, sum.Max)
		codes := make([]int, 0, len(sum.Codes))
		for code := range sum.Codes {
			codes = append(codes, code)
		}
		slices.Sort(codes)
		for _, code := range codes {
			fmt.Fprintf(w, "  HTTP %d: %d\n", code, sum.Codes[code])
		}
		fmt.Fprintln(w)
	}
	return completed
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
