// Package events defines the pipeline events exchanged over Kafka and a
// buffered collector that publishes them off the caller's goroutine.
package events

import "time"

const (
	TypeCrawlComplete = "crawl.complete"
	TypeIndexRebuild  = "index.rebuild"
	TypeIndexComplete = "index.complete"
)

type CrawlCompleted struct {
	Seed       string    `json:"seed"`
	Crawled    int       `json:"crawled"`
	Failed     int64     `json:"failed"`
	Duplicates int64     `json:"duplicates"`
	DurationMs int64     `json:"duration_ms"`
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type IndexRebuildRequested struct {
	Reason    string    `json:"reason"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// IndexCompleted is published after every build attempt. Status is
// "success", "incomplete" or "failed".
type IndexCompleted struct {
	Status      string    `json:"status"`
	Documents   int       `json:"documents"`
	Terms       int       `json:"terms"`
	FailedTasks int       `json:"failed_tasks"`
	DurationMs  int64     `json:"duration_ms"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
