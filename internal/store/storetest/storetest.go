// Package storetest holds the behavioural contract every store.Store
// implementation must satisfy.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/errors"
)

// Run exercises s, which must start empty.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("crawl records", func(t *testing.T) {
		if _, err := s.InsertCrawlRecord(ctx, store.CrawlRecord{
			URL: "https://example.com/a", Title: "A", TermBag: map[string]int{"cat": 2},
		}); err != nil {
			t.Fatalf("InsertCrawlRecord: %v", err)
		}
		exists, err := s.CrawlRecordExists(ctx, "A", "https://example.com/a")
		if err != nil || !exists {
			t.Fatalf("CrawlRecordExists = %v, %v; want true", exists, err)
		}
		exists, err = s.CrawlRecordExists(ctx, "A", "https://example.com/b")
		if err != nil || exists {
			t.Fatalf("CrawlRecordExists(other url) = %v, %v; want false", exists, err)
		}
		records, err := s.ListCrawlRecords(ctx)
		if err != nil {
			t.Fatalf("ListCrawlRecords: %v", err)
		}
		if len(records) != 1 || records[0].TermBag["cat"] != 2 {
			t.Fatalf("unexpected records %+v", records)
		}
		if err := s.ResetCrawlRecords(ctx); err != nil {
			t.Fatalf("ResetCrawlRecords: %v", err)
		}
		if n, _ := s.CountCrawlRecords(ctx); n != 0 {
			t.Errorf("CountCrawlRecords after reset = %d", n)
		}
	})

	t.Run("documents", func(t *testing.T) {
		id, err := s.InsertDocument(ctx, store.Document{
			URL: "https://example.com/d", Title: "D", TermBag: map[string]int{"dog": 1},
		})
		if err != nil {
			t.Fatalf("InsertDocument: %v", err)
		}
		doc, err := s.GetDocument(ctx, id)
		if err != nil {
			t.Fatalf("GetDocument: %v", err)
		}
		if doc.Length != nil {
			t.Errorf("fresh document has length %v", *doc.Length)
		}
		if err := s.SetDocumentLength(ctx, id, 1.5); err != nil {
			t.Fatalf("SetDocumentLength: %v", err)
		}
		doc, _ = s.GetDocument(ctx, id)
		if doc.Length == nil || *doc.Length != 1.5 {
			t.Errorf("length = %v, want 1.5", doc.Length)
		}
		if _, err := s.GetDocument(ctx, id+1000); !errors.Is(err, apperrors.ErrDocumentNotFound) {
			t.Errorf("expected ErrDocumentNotFound, got %v", err)
		}
		if err := s.SetDocumentLength(ctx, id+1000, 1); !errors.Is(err, apperrors.ErrDocumentNotFound) {
			t.Errorf("expected ErrDocumentNotFound, got %v", err)
		}
	})

	t.Run("terms", func(t *testing.T) {
		if _, err := s.FindTerm(ctx, "absent"); !errors.Is(err, apperrors.ErrTermNotFound) {
			t.Fatalf("expected ErrTermNotFound, got %v", err)
		}
		for _, p := range []store.Posting{
			{DocumentID: 1, Title: "one", URL: "u1", TermDocFrequency: 3},
			{DocumentID: 2, Title: "two", URL: "u2", TermDocFrequency: 1},
			{DocumentID: 1, Title: "one", URL: "u1", TermDocFrequency: 3},
		} {
			if err := s.UpsertTerm(ctx, "cat", p); err != nil {
				t.Fatalf("UpsertTerm: %v", err)
			}
		}
		entry, err := s.FindTerm(ctx, "cat")
		if err != nil {
			t.Fatalf("FindTerm: %v", err)
		}
		if entry.DocFrequency != 2 || len(entry.Postings) != 2 {
			t.Fatalf("entry = %+v, want two postings", entry)
		}
		if entry.Postings[0].DocumentID != 1 || entry.Postings[1].DocumentID != 2 {
			t.Errorf("postings not in insertion order: %+v", entry.Postings)
		}
		all, err := s.ListTerms(ctx)
		if err != nil {
			t.Fatalf("ListTerms: %v", err)
		}
		if len(all) != 1 || all[0].Term != "cat" {
			t.Errorf("ListTerms = %+v", all)
		}
	})

	t.Run("concurrent upserts", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make(chan error, 40)
		for i := 0; i < 40; i++ {
			wg.Add(1)
			go func(doc int64) {
				defer wg.Done()
				errs <- s.UpsertTerm(ctx, "shared", store.Posting{
					DocumentID: doc, Title: fmt.Sprint(doc), URL: fmt.Sprint("u", doc), TermDocFrequency: 1,
				})
			}(int64(100 + i%20))
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("UpsertTerm: %v", err)
			}
		}
		entry, err := s.FindTerm(ctx, "shared")
		if err != nil {
			t.Fatalf("FindTerm: %v", err)
		}
		if entry.DocFrequency != 20 || len(entry.Postings) != 20 {
			t.Errorf("docFrequency = %d postings = %d, want 20/20", entry.DocFrequency, len(entry.Postings))
		}
	})

	t.Run("ready flag and reset", func(t *testing.T) {
		if ready, _ := s.IsIndexReady(ctx); ready {
			t.Fatal("index ready before SetIndexReady")
		}
		if err := s.SetIndexReady(ctx, true); err != nil {
			t.Fatalf("SetIndexReady: %v", err)
		}
		if ready, _ := s.IsIndexReady(ctx); !ready {
			t.Fatal("index not ready after SetIndexReady(true)")
		}
		before, err := s.IndexGeneration(ctx)
		if err != nil {
			t.Fatalf("IndexGeneration: %v", err)
		}
		if err := s.ResetIndex(ctx); err != nil {
			t.Fatalf("ResetIndex: %v", err)
		}
		if ready, _ := s.IsIndexReady(ctx); ready {
			t.Error("index still ready after reset")
		}
		if gen, _ := s.IndexGeneration(ctx); gen != before+1 {
			t.Errorf("generation after reset = %d, want %d", gen, before+1)
		}
		if err := s.ResetIndex(ctx); err != nil {
			t.Fatalf("second ResetIndex: %v", err)
		}
		if gen, _ := s.IndexGeneration(ctx); gen != before+2 {
			t.Errorf("generation after second reset = %d, want %d", gen, before+2)
		}
		if n, _ := s.CountDocuments(ctx); n != 0 {
			t.Errorf("CountDocuments after reset = %d", n)
		}
		if terms, _ := s.ListTerms(ctx); len(terms) != 0 {
			t.Errorf("ListTerms after reset = %d entries", len(terms))
		}
	})

	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
