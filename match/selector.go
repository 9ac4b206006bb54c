// Copyright 2026 The HouseFinder Authors
// SPDX-License-Identifier: Apache-2.0

package match

import (
	"context"
	"log"

	"github.com/jcodagnone/housefinder/spatial"
)

// MatchResult is the outcome of a successful match.
type MatchResult struct {
	Listing    *Listing `json:"listing"`
	Confidence float64  `json:"confidence"`
	DistanceM  float64  `json:"distance_m"`
	Scored     int      `json:"scored"`
	Skipped    int      `json:"skipped"`
}

// Selector orchestrates the pipeline: candidate retrieval, feature
// extraction, scoring and the final pick.
type Selector struct {
	provider  *CandidateProvider
	extractor Extractor
	photos    *PhotoFetcher
	searchLog SearchLogRepository
	radius    float64
}

// NewSelector creates a selector. searchLog may be nil to disable auditing
// (used by the one-shot CLI).
func NewSelector(provider *CandidateProvider, extractor Extractor, photos *PhotoFetcher, searchLog SearchLogRepository) *Selector {
	return &Selector{
		provider:  provider,
		extractor: extractor,
		photos:    photos,
		searchLog: searchLog,
		radius:    DefaultSearchRadius,
	}
}

// SetRadius overrides the candidate search radius. Non-positive values are
// ignored.
func (s *Selector) SetRadius(radius float64) {
	if radius > 0 {
		s.radius = radius
	}
}

// Match picks the candidate listing whose photo is most similar to the
// uploaded image. imageRef is the blob-store handle of the upload, recorded
// in the audit log.
//
// A failure on one candidate (photo fetch, decode, inference) is logged and
// the candidate skipped; it never aborts the request. Ties are broken
// deterministically by the smaller internal listing identifier.
func (s *Selector) Match(ctx context.Context, image []byte, point spatial.Point, imageRef string) (*MatchResult, error) {
	candidates, err := s.provider.FindNearby(ctx, point, s.radius)
	if err != nil {
		return nil, err
	}

	// The upload is embedded once, not per candidate.
	uploaded, err := s.extractor.Extract(ctx, image)
	if err != nil {
		return nil, err
	}

	var (
		best      *Listing
		bestScore float64
		scored    int
		skipped   int
	)

	for _, candidate := range candidates {
		if candidate.PhotoURL == nil {
			continue
		}

		score, err := s.scoreCandidate(ctx, uploaded, candidate)
		if err != nil {
			log.Printf("skipping candidate %s: %v", candidate.ID, err)

			skipped++

			continue
		}

		scored++

		if best == nil || score > bestScore ||
			(score == bestScore && candidate.ID < best.ID) {
			best = candidate
			bestScore = score
		}
	}

	if best == nil {
		if err := s.record(imageRef, point, nil, nil); err != nil {
			return nil, err
		}

		return nil, NewError(ErrorTypeNoMatch, "no matching property found")
	}

	if err := s.record(imageRef, point, &best.ID, &bestScore); err != nil {
		return nil, err
	}

	return &MatchResult{
		Listing:    best,
		Confidence: bestScore,
		DistanceM:  point.HaversineDistance(best.Point),
		Scored:     scored,
		Skipped:    skipped,
	}, nil
}

func (s *Selector) scoreCandidate(ctx context.Context, uploaded FeatureVector, candidate *Listing) (float64, error) {
	photo, err := s.photos.Fetch(ctx, *candidate.PhotoURL)
	if err != nil {
		return 0, err
	}

	vector, err := s.extractor.Extract(ctx, photo)
	if err != nil {
		return 0, err
	}

	return CosineSimilarity(uploaded, vector)
}

func (s *Selector) record(imageRef string, point spatial.Point, matchedID *string, confidence *float64) error {
	if s.searchLog == nil {
		return nil
	}

	err := s.searchLog.SaveSearchRecord(&SearchRecord{
		UserImageRef:     imageRef,
		SearchPoint:      &point,
		MatchedListingID: matchedID,
		Confidence:       confidence,
	})
	if err != nil {
		return WrapError(ErrorTypeStorage, "recording search", err)
	}

	return nil
}
