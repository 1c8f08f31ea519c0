// Package recognizer matches visitor photos against catalog fingerprints and
// resolves them to the place the visitor should be routed to.
package recognizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/tripmarket/placelens/internal/catalog"
	"github.com/tripmarket/placelens/internal/dhash"
)

// DefaultThreshold is the acceptance threshold in differing bits.
// Candidates at this distance or further are never returned as matches.
const DefaultThreshold = 10

// ErrNoMatch is the normal outcome when no stored fingerprint is close enough
// to the query. It is not a system failure.
var ErrNoMatch = errors.New("no matching place found")

// Match is the result of a successful similarity query.
type Match struct {
	PlaceID  int64
	Distance int
}

// Matcher selects the closest below-threshold candidate for a query
// fingerprint. It holds no state beyond the threshold and is safe for
// concurrent use.
type Matcher struct {
	threshold int
}

// NewMatcher creates a matcher with the given acceptance threshold.
// A threshold <= 0 falls back to DefaultThreshold.
func NewMatcher(threshold int) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold}
}

// Threshold returns the configured acceptance threshold.
func (m *Matcher) Threshold() int {
	return m.threshold
}

// Best scans candidates and returns the one with the lowest Hamming distance
// to query, provided it is strictly below the threshold. Ties keep the first
// candidate encountered in scan order. An empty collection yields ErrNoMatch,
// never an error. Candidates with no stored fingerprint are skipped; a
// fingerprint of a different declared length is an invariant violation and
// fails the whole query.
func (m *Matcher) Best(query dhash.Fingerprint, candidates []catalog.Candidate) (Match, error) {
	best := Match{Distance: -1}

	for _, c := range candidates {
		if c.Fingerprint.IsZero() {
			continue
		}
		d, err := dhash.Distance(query, c.Fingerprint)
		if err != nil {
			return Match{}, fmt.Errorf("compare fingerprint for place %d: %w", c.PlaceID, err)
		}
		if d >= m.threshold {
			continue
		}
		if best.Distance < 0 || d < best.Distance {
			best = Match{PlaceID: c.PlaceID, Distance: d}
		}
	}

	if best.Distance < 0 {
		return Match{}, ErrNoMatch
	}
	return best, nil
}

// Service ties the hash generator and matcher to a catalog candidate source.
type Service struct {
	source  catalog.CandidateSource
	matcher *Matcher
}

// NewService creates a recognition service reading candidates from source.
func NewService(source catalog.CandidateSource, threshold int) *Service {
	return &Service{
		source:  source,
		matcher: NewMatcher(threshold),
	}
}

// Matcher exposes the underlying matcher.
func (s *Service) Matcher() *Matcher {
	return s.matcher
}

// Recognize hashes the uploaded image and finds the best catalog match.
// Returns dhash.ErrDecode for undecodable input and ErrNoMatch when nothing
// clears the threshold. The candidate listing is a fresh read per call, so
// concurrent recognitions share no mutable state.
func (s *Service) Recognize(ctx context.Context, imageData []byte) (Match, error) {
	query, err := dhash.Compute(imageData)
	if err != nil {
		return Match{}, err
	}

	candidates, err := s.source.ListCandidates(ctx)
	if err != nil {
		return Match{}, fmt.Errorf("list candidates: %w", err)
	}

	return s.matcher.Best(query, candidates)
}
