package benchmark

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/store"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/config"
)

// vocabulary returns n distinct stemmed-looking terms.
func vocabulary(n int) []string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("term%d", i)
	}
	return words
}

// syntheticRecords builds a reproducible crawl with a skewed term
// distribution so a few terms appear in most pages.
func syntheticRecords(docs, vocab, termsPerDoc int) []store.CrawlRecord {
	rng := rand.New(rand.NewPCG(42, 7))
	words := vocabulary(vocab)
	records := make([]store.CrawlRecord, docs)
	for i := range records {
		bag := make(map[string]int, termsPerDoc)
		for range termsPerDoc {
			// Squaring the uniform draw favours low-numbered terms.
			f := rng.Float64()
			bag[words[int(f*f*float64(vocab))]]++
		}
		records[i] = store.CrawlRecord{
			URL:     fmt.Sprintf("http://bench.local/page/%d", i),
			Title:   fmt.Sprintf("page %d", i),
			TermBag: bag,
		}
	}
	return records
}

func seededStore(b *testing.B, records []store.CrawlRecord) *store.Memory {
	b.Helper()
	s := store.NewMemory()
	for _, rec := range records {
		if _, err := s.InsertCrawlRecord(context.Background(), rec); err != nil {
			b.Fatal(err)
		}
	}
	return s
}

func indexedStore(b *testing.B, docs int) *store.Memory {
	b.Helper()
	s := seededStore(b, syntheticRecords(docs, 2000, 120))
	ix, err := indexer.New(s, indexer.Options{Workers: 8, LengthFormula: config.LengthLegacy}, nil)
	if err != nil {
		b.Fatal(err)
	}
	if _, err := ix.Build(context.Background()); err != nil {
		b.Fatal(err)
	}
	return s
}

// pageText produces prose-like text of roughly n words.
func pageText(n int) string {
	sentence := []string{
		"The", "crawlers", "were", "running", "across", "thousands", "of",
		"linked", "pages,", "indexing", "every", "word", "they", "found.",
	}
	var sb strings.Builder
	for i := range n {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(sentence[i%len(sentence)])
	}
	return sb.String()
}
