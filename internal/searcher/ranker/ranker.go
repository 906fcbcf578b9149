// Package ranker holds the scoring arithmetic of the query engine: the
// per-term posting weight, score accumulation in a stable order, length
// normalization and the Rocchio relevance-feedback update.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/store"
)

type ScoredDoc struct {
	DocumentID int64   `json:"document_id"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Score      float64 `json:"score"`
}

// TermWeight is (1 + ln df) * ln(1 + n/df). The document frequency stands
// in for the term frequency, so every posting of a term gets the same
// weight.
func TermWeight(df, n int) float64 {
	if df <= 0 {
		return 0
	}
	return (1 + math.Log(float64(df))) * math.Log(1+float64(n)/float64(df))
}

// Accumulator sums per-document scores and remembers the order in which
// documents were first scored, which breaks ties when ranking.
type Accumulator struct {
	order  []int64
	scores map[int64]float64
	refs   map[int64]store.Posting
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		scores: make(map[int64]float64),
		refs:   make(map[int64]store.Posting),
	}
}

// Add credits weight to the posting's document.
func (a *Accumulator) Add(p store.Posting, weight float64) {
	if _, ok := a.scores[p.DocumentID]; !ok {
		a.order = append(a.order, p.DocumentID)
		a.refs[p.DocumentID] = p
	}
	a.scores[p.DocumentID] += weight
}

// Merge folds other into a, keeping a's order first.
func (a *Accumulator) Merge(other *Accumulator) {
	if other == nil {
		return
	}
	for _, id := range other.order {
		a.Add(other.refs[id], other.scores[id])
	}
}

// Len returns the number of scored documents.
func (a *Accumulator) Len() int {
	return len(a.order)
}

// DocumentIDs returns the scored documents in accumulation order.
func (a *Accumulator) DocumentIDs() []int64 {
	out := make([]int64, len(a.order))
	copy(out, a.order)
	return out
}

// Rank divides every score by the document's length and returns the best
// k, highest first. Documents without a length, or with a zero length, are
// left out. Equal scores keep accumulation order.
func (a *Accumulator) Rank(lengths map[int64]float64, k int) []ScoredDoc {
	result := make([]ScoredDoc, 0, len(a.order))
	for _, id := range a.order {
		length, ok := lengths[id]
		if !ok || length == 0 {
			continue
		}
		ref := a.refs[id]
		result = append(result, ScoredDoc{
			DocumentID: id,
			Title:      ref.Title,
			URL:        ref.URL,
			Score:      a.scores[id] / length,
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Score > result[j].Score
	})
	if k > 0 && len(result) > k {
		result = result[:k]
	}
	return result
}
