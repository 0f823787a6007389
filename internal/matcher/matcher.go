// Package matcher scores parsed listings against the user's interest
// queries. The relevance model itself is a black box behind the Scorer
// interface; this package owns the orchestration around it: brand
// pre-filtering, thresholding, and per-pair failure isolation.
package matcher

import (
	"context"
	"log"
	"strings"

	"carwatch/internal/listing"
	"carwatch/internal/queries"
)

// Scorer is the trained relevance model, seen as a scoring oracle over
// a (query, listing-description) pair. Scores are in [0, 1].
type Scorer interface {
	Score(ctx context.Context, query, listingText string) (float64, error)
}

// Matcher applies the query set to listing batches.
type Matcher struct {
	scorer Scorer
}

// New builds a matcher on top of a scoring oracle.
func New(scorer Scorer) *Matcher {
	return &Matcher{scorer: scorer}
}

// Match returns, per listing URL, the query texts the listing satisfies
// strictly above the threshold. A query with a brand filter is never
// scored against a listing whose brand attribute misses every filter
// token, whatever the model would say. A scorer failure for one pair is
// logged and treated as a non-match; it never fails the batch. A
// listing may satisfy zero, one, or many queries independently.
func (m *Matcher) Match(ctx context.Context, listings []listing.Listing, qs []queries.Query, threshold float64) map[string][]string {
	hits := map[string][]string{}

	for _, l := range listings {
		text := l.Description()
		for _, q := range qs {
			if !brandAllowed(q, l) {
				continue
			}

			score, err := m.scorer.Score(ctx, q.Text, text)
			if err != nil {
				log.Printf("Scoring failed for %q against %s: %v", q.Text, l.URL, err)
				continue
			}
			if score > threshold {
				hits[l.URL] = append(hits[l.URL], q.Text)
			}
		}
	}

	return hits
}

// brandAllowed applies the hard brand pre-filter: a filtered query only
// ever reaches the model when the listing's brand token set intersects
// the filter tokens, case-sensitively. A listing without a brand
// attribute intersects nothing, so filtered queries skip it.
func brandAllowed(q queries.Query, l listing.Listing) bool {
	tokens := q.BrandTokens()
	if len(tokens) == 0 {
		return true
	}
	for _, b := range strings.Fields(l.Brand()) {
		for _, tok := range tokens {
			if b == tok {
				return true
			}
		}
	}
	return false
}
