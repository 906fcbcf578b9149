package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/store"
)

// BenchmarkSearch measures end-to-end query execution against an indexed
// in-memory corpus with an increasing number of query terms.
func BenchmarkSearch(b *testing.B) {
	s := indexedStore(b, 1000)
	exec := executor.New(s, 4)
	words := vocabulary(2000)
	for _, numTerms := range []int{1, 3, 6} {
		terms := make([]string, numTerms)
		for i := range terms {
			terms[i] = words[i*7]
		}
		b.Run(fmt.Sprintf("terms_%d", numTerms), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := exec.Search(context.Background(), terms, 10); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkRefine measures one round of relevance feedback plus the
// re-run of the expanded query.
func BenchmarkRefine(b *testing.B) {
	s := indexedStore(b, 500)
	exec := executor.New(s, 4)
	ctx := context.Background()
	ids, err := s.ListDocumentIDs(ctx)
	if err != nil {
		b.Fatal(err)
	}
	query := []string{"term3", "term11"}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := exec.Refine(ctx, query, 10, ids[:3], ids[3:10]); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkAccumulatorRank measures scoring and sorting for different
// candidate set sizes.
func BenchmarkAccumulatorRank(b *testing.B) {
	for _, numDocs := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("docs_%d", numDocs), func(b *testing.B) {
			acc := ranker.NewAccumulator()
			lengths := make(map[int64]float64, numDocs)
			for i := range numDocs {
				id := int64(i + 1)
				acc.Add(store.Posting{DocumentID: id, TermDocFrequency: i%10 + 1}, ranker.TermWeight(i%50+1, numDocs))
				lengths[id] = 1 + float64(i%17)/4
			}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				ranked := acc.Rank(lengths, 10)
				_ = ranked
			}
		})
	}
}
