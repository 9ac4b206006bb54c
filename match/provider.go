// Copyright 2026 The HouseFinder Authors
// SPDX-License-Identifier: Apache-2.0

package match

import (
	"context"
	"errors"
	"log"

	"github.com/jcodagnone/housefinder/spatial"
)

// DefaultSearchRadius is the candidate search radius in meters.
const DefaultSearchRadius = 50.0

// CandidateProvider answers "which listings are near this point". The spatial
// store is authoritative; a miss falls back to the external listing source,
// whose results are persisted so the next lookup is served locally.
type CandidateProvider struct {
	repo   ListingRepository
	source ListingSource
}

// NewCandidateProvider creates a provider. source may be nil, in which case
// store misses stay misses.
func NewCandidateProvider(repo ListingRepository, source ListingSource) *CandidateProvider {
	return &CandidateProvider{repo: repo, source: source}
}

// FindNearby returns the listings within radius meters of point. An empty
// result after the upstream fallback is a valid empty result, not an error.
func (p *CandidateProvider) FindNearby(ctx context.Context, point spatial.Point, radius float64) ([]*Listing, error) {
	if radius <= 0 {
		radius = DefaultSearchRadius
	}

	listings, err := p.repo.FindWithinRadius(point, radius)
	if err != nil {
		return nil, WrapError(ErrorTypeStorage, "querying spatial store", err)
	}

	if len(listings) > 0 || p.source == nil {
		return listings, nil
	}

	// Cache miss: ask the provider and persist whatever parses.
	raws, err := p.source.SearchByLocation(ctx, point, radius)
	if err != nil {
		return nil, err
	}

	parsed := make([]*Listing, 0, len(raws))

	for _, raw := range raws {
		listing, err := ParseListing(raw)
		if err != nil {
			if errors.Is(err, ErrNoCoordinates) {
				log.Printf("skipping external record %q: %v", string(raw.ID), err)

				continue
			}

			return nil, err
		}

		parsed = append(parsed, listing)
	}

	if len(parsed) > 0 {
		// Records already present are deduplicated by external identifier,
		// so a re-fetch is idempotent.
		if err := p.repo.BulkInsertListings(parsed); err != nil {
			return nil, WrapError(ErrorTypeStorage, "persisting fetched listings", err)
		}
	}

	listings, err = p.repo.FindWithinRadius(point, radius)
	if err != nil {
		return nil, WrapError(ErrorTypeStorage, "querying spatial store", err)
	}

	return listings, nil
}
