// Package parser turns raw query text into index terms.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/textnorm"
)

type QueryPlan struct {
	RawQuery string
	Terms    []string
}

// Parse normalizes each word of query the way page text is normalized, so
// "Running Cats" looks up "run" and "cat". Order and repeats are kept since
// both affect scoring.
func Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		RawQuery: query,
		Terms:    make([]string, 0),
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	plan.Terms = append(plan.Terms, textnorm.Terms(query)...)
	return plan
}

// Key identifies a plan for caching. Terms are not reordered.
func (p *QueryPlan) Key() string {
	return strings.Join(p.Terms, " ")
}
