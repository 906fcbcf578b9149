package ranker

import (
	"fmt"
	"math"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/errors"
)

const (
	Alpha = 0.5
	Beta  = 0.7
	Gamma = 0.1
)

type WeightedTerm struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// Vector is a query vector ordered by weight, highest first.
type Vector []WeightedTerm

// Terms returns the vector's terms in order.
func (v Vector) Terms() []string {
	out := make([]string, len(v))
	for i, wt := range v {
		out[i] = wt.Term
	}
	return out
}

// Weight returns the weight of term, or 0 when absent.
func (v Vector) Weight(term string) float64 {
	for _, wt := range v {
		if wt.Term == term {
			return wt.Weight
		}
	}
	return 0
}

// IndexStats is the view of the index Rocchio needs: the corpus size and,
// per indexed term, its document frequency and posting count.
type IndexStats struct {
	TotalDocs    int
	DocFrequency map[string]int
	Postings     map[string]int
}

// Rocchio computes the refined query vector. Each relevant or non-relevant
// document contributes, per term of its bag, the term's corpus document
// frequency. Query terms start at 1.0 and are combined as
// Alpha*old + new; other terms are kept only with a positive weight.
func Rocchio(query []string, stats IndexStats, relevant, nonRelevant []map[string]int) (Vector, error) {
	if len(relevant) == 0 {
		return nil, apperrors.ErrEmptyFeedback
	}
	relevantFreq := accumulate(relevant, stats.DocFrequency)
	nonRelevantFreq := accumulate(nonRelevant, stats.DocFrequency)

	weights := make(map[string]float64, len(query))
	inQuery := make(map[string]bool, len(query))
	for _, term := range query {
		weights[term] = 1.0
		inQuery[term] = true
	}

	for term, postings := range stats.Postings {
		if postings <= 0 {
			continue
		}
		idf := math.Log10(float64(stats.TotalDocs) / float64(postings))
		var w float64
		if f, ok := relevantFreq[term]; ok {
			w += Beta * idf * (float64(f) / float64(len(relevant)))
		}
		if f, ok := nonRelevantFreq[term]; ok {
			w -= Gamma * idf * (float64(f) / float64(len(nonRelevant)))
		}
		switch {
		case inQuery[term]:
			weights[term] = Alpha*weights[term] + w
		case w > 0:
			weights[term] = w
		}
	}

	vec := make(Vector, 0, len(weights))
	for term, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("weight of %q is %v: %w", term, w, apperrors.ErrNumeric)
		}
		vec = append(vec, WeightedTerm{Term: term, Weight: w})
	}
	sort.Slice(vec, func(i, j int) bool {
		if vec[i].Weight != vec[j].Weight {
			return vec[i].Weight > vec[j].Weight
		}
		return vec[i].Term < vec[j].Term
	})
	return vec, nil
}

func accumulate(bags []map[string]int, df map[string]int) map[string]int {
	out := make(map[string]int)
	for _, bag := range bags {
		for term := range bag {
			if f, ok := df[term]; ok {
				out[term] += f
			}
		}
	}
	return out
}
