// Copyright 2026 The HouseFinder Authors
// SPDX-License-Identifier: Apache-2.0

package match

import (
	"context"
	"errors"
	"testing"

	"github.com/jcodagnone/housefinder/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	raws  []*RawListing
	err   error
	calls int
}

func (s *stubSource) SearchByLocation(context.Context, spatial.Point, float64) ([]*RawListing, error) {
	s.calls++

	return s.raws, s.err
}

func (s *stubSource) PropertyDetails(context.Context, string) (*RawListing, error) {
	return nil, nil
}

func rawNear(id string, point spatial.Point, photo string) *RawListing {
	raw := &RawListing{
		ID:        flexString(id),
		Address:   "near the search point",
		Latitude:  &point.Lat,
		Longitude: &point.Lng,
	}
	if photo != "" {
		raw.Photos = []struct {
			Href string `json:"href"`
		}{{Href: photo}}
	}

	return raw
}

func TestFindNearbyServedFromStore(t *testing.T) {
	db := setupTestDB(t)
	repo := NewListingRepository(db)

	center := spatial.Point{Lat: 38.897675, Lng: -77.036530}
	require.NoError(t, repo.BulkInsertListings([]*Listing{
		newTestListing("local", "ext-local", center.Lat, center.Lng),
	}))

	source := &stubSource{}
	provider := NewCandidateProvider(repo, source)

	listings, err := provider.FindNearby(context.Background(), center, 50)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "local", listings[0].ID)
	assert.Zero(t, source.calls, "a store hit must not reach the provider")
}

func TestFindNearbyFallsBackAndPersists(t *testing.T) {
	db := setupTestDB(t)
	repo := NewListingRepository(db)

	center := spatial.Point{Lat: 38.897675, Lng: -77.036530}
	source := &stubSource{
		raws: []*RawListing{
			rawNear("ext-1", center, "https://photos.example.com/1.jpg"),
			rawNear("ext-2", center, ""),
			{ID: "ext-broken", Address: "no coordinates"},
		},
	}
	provider := NewCandidateProvider(repo, source)

	listings, err := provider.FindNearby(context.Background(), center, 50)
	require.NoError(t, err)
	assert.Len(t, listings, 2, "record without coordinates is skipped, not fatal")
	assert.Equal(t, 1, source.calls)

	count, err := repo.CountListings()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Second search in the same area is answered locally.
	listings, err = provider.FindNearby(context.Background(), center, 50)
	require.NoError(t, err)
	assert.Len(t, listings, 2)
	assert.Equal(t, 1, source.calls)
}

func TestFindNearbyDoubleMissIsEmpty(t *testing.T) {
	db := setupTestDB(t)
	provider := NewCandidateProvider(NewListingRepository(db), &stubSource{})

	listings, err := provider.FindNearby(context.Background(), spatial.Point{Lat: 10, Lng: 10}, 50)
	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestFindNearbyWithoutSource(t *testing.T) {
	db := setupTestDB(t)
	provider := NewCandidateProvider(NewListingRepository(db), nil)

	listings, err := provider.FindNearby(context.Background(), spatial.Point{Lat: 10, Lng: 10}, 50)
	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestFindNearbySourceErrorPropagates(t *testing.T) {
	db := setupTestDB(t)
	source := &stubSource{err: WrapError(ErrorTypeUpstreamFetch, "provider down", errors.New("boom"))}
	provider := NewCandidateProvider(NewListingRepository(db), source)

	_, err := provider.FindNearby(context.Background(), spatial.Point{Lat: 10, Lng: 10}, 50)
	assert.Equal(t, ErrorTypeUpstreamFetch, TypeOf(err))
}

func TestFindNearbyDefaultsRadius(t *testing.T) {
	db := setupTestDB(t)
	repo := NewListingRepository(db)

	center := spatial.Point{Lat: 38.897675, Lng: -77.036530}
	require.NoError(t, repo.BulkInsertListings([]*Listing{
		newTestListing("close", "ext-close", center.Lat+0.0001, center.Lng),
	}))

	provider := NewCandidateProvider(repo, nil)

	listings, err := provider.FindNearby(context.Background(), center, 0)
	require.NoError(t, err)
	assert.Len(t, listings, 1)
}
