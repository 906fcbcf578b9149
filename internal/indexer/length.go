package indexer

import (
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/errors"
)

// LengthFunc computes a document's length from its term bag, the corpus
// document frequencies and the corpus size.
type LengthFunc func(bag map[string]int, df map[string]int, n int) (float64, error)

// LengthFor returns the length function registered under name.
func LengthFor(name string) (LengthFunc, error) {
	switch name {
	case config.LengthLegacy, "":
		return LegacyLength, nil
	case config.LengthCosine:
		return CosineLength, nil
	default:
		return nil, fmt.Errorf("unknown length formula %q", name)
	}
}

// NormalizedIDF is ln(n/df)/ln(n). A single-document corpus has ln(n) = 0
// and every term gets 0.
func NormalizedIDF(n, df int) float64 {
	if n <= 1 {
		return 0
	}
	return math.Log(float64(n)/float64(df)) / math.Log(float64(n))
}

// LegacyLength is sqrt(sum(nidf^4)). Term counts do not contribute.
func LegacyLength(bag map[string]int, df map[string]int, n int) (float64, error) {
	var sum float64
	for term := range bag {
		freq, err := lookupDF(df, term)
		if err != nil {
			return 0, err
		}
		w := NormalizedIDF(n, freq)
		w *= w
		sum += w * w
	}
	return checkFinite(math.Sqrt(sum))
}

// CosineLength is the Euclidean norm of the max-tf normalized tf-idf vector.
func CosineLength(bag map[string]int, df map[string]int, n int) (float64, error) {
	maxTF := 0
	for _, count := range bag {
		if count > maxTF {
			maxTF = count
		}
	}
	if maxTF == 0 {
		return 0, nil
	}
	var sum float64
	for term, count := range bag {
		freq, err := lookupDF(df, term)
		if err != nil {
			return 0, err
		}
		w := float64(count) / float64(maxTF) * NormalizedIDF(n, freq)
		sum += w * w
	}
	return checkFinite(math.Sqrt(sum))
}

func lookupDF(df map[string]int, term string) (int, error) {
	freq, ok := df[term]
	if !ok || freq <= 0 {
		return 0, fmt.Errorf("term %q: %w", term, apperrors.ErrTermNotFound)
	}
	return freq, nil
}

func checkFinite(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("document length %v: %w", v, apperrors.ErrNumeric)
	}
	return v, nil
}
