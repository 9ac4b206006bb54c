// Copyright 2026 The HouseFinder Authors
// SPDX-License-Identifier: Apache-2.0

package match

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jcodagnone/housefinder/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtractor struct {
	vectors map[string]FeatureVector
	errs    map[string]error
}

func (s *stubExtractor) Extract(_ context.Context, image []byte) (FeatureVector, error) {
	if err, ok := s.errs[string(image)]; ok {
		return nil, err
	}

	v, ok := s.vectors[string(image)]
	if !ok {
		return nil, NewError(ErrorTypeImageDecode, "unknown payload")
	}

	return v, nil
}

func (s *stubExtractor) Dimension() int { return 2 }

// photoServer serves a fixed body per path; /fail always errors.
func photoServer(t *testing.T, photos map[string]string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := photos[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server
}

var testCenter = spatial.Point{Lat: 38.897675, Lng: -77.036530}

func listingWithPhoto(id string, photoURL string) *Listing {
	listing := newTestListing(id, "ext-"+id, testCenter.Lat+0.0001, testCenter.Lng)
	listing.PhotoURL = &photoURL

	return listing
}

func TestMatchPicksMostSimilarPhoto(t *testing.T) {
	db := setupTestDB(t)
	repo := NewListingRepository(db)
	searchLog := NewSearchLogRepository(db)

	server := photoServer(t, map[string]string{
		"/a": "photo-a",
		"/b": "photo-b",
	})

	require.NoError(t, repo.BulkInsertListings([]*Listing{
		listingWithPhoto("a", server.URL+"/a"),
		listingWithPhoto("b", server.URL+"/b"),
	}))

	extractor := &stubExtractor{vectors: map[string]FeatureVector{
		"upload":  {1, 0},
		"photo-a": {1, 0},
		"photo-b": {0, 1},
	}}

	selector := NewSelector(NewCandidateProvider(repo, nil), extractor, NewPhotoFetcher(0), searchLog)

	result, err := selector.Match(context.Background(), []byte("upload"), testCenter, "upload-ref")
	require.NoError(t, err)

	assert.Equal(t, "a", result.Listing.ID)
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)
	assert.Equal(t, 2, result.Scored)
	assert.Zero(t, result.Skipped)
	assert.InDelta(t, 11.1, result.DistanceM, 1.0)

	// The attempt is recorded with the winner.
	var matched string
	require.NoError(t, db.QueryRow(
		"SELECT matched_listing_id FROM search_logs WHERE user_image_ref = 'upload-ref'",
	).Scan(&matched))
	assert.Equal(t, "a", matched)
}

func TestMatchSkipsFailingCandidates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewListingRepository(db)

	server := photoServer(t, map[string]string{
		"/good":      "photo-good",
		"/undecoded": "garbage",
	})

	require.NoError(t, repo.BulkInsertListings([]*Listing{
		listingWithPhoto("a-fetch-fails", server.URL+"/fail"),
		listingWithPhoto("b-decode-fails", server.URL+"/undecoded"),
		listingWithPhoto("c-good", server.URL+"/good"),
	}))

	extractor := &stubExtractor{vectors: map[string]FeatureVector{
		"upload":     {1, 0},
		"photo-good": {0.8, 0.2},
	}}

	selector := NewSelector(NewCandidateProvider(repo, nil), extractor, NewPhotoFetcher(0),
		NewSearchLogRepository(db))

	result, err := selector.Match(context.Background(), []byte("upload"), testCenter, "ref")
	require.NoError(t, err)

	assert.Equal(t, "c-good", result.Listing.ID)
	assert.Equal(t, 1, result.Scored)
	assert.Equal(t, 2, result.Skipped)
}

func TestMatchNoCandidates(t *testing.T) {
	db := setupTestDB(t)
	searchLog := NewSearchLogRepository(db)

	extractor := &stubExtractor{vectors: map[string]FeatureVector{"upload": {1, 0}}}
	selector := NewSelector(NewCandidateProvider(NewListingRepository(db), nil), extractor,
		NewPhotoFetcher(0), searchLog)

	_, err := selector.Match(context.Background(), []byte("upload"), testCenter, "ref")
	assert.True(t, IsNoMatch(err))

	// The failed attempt is still recorded, with no winner.
	count, err := searchLog.CountSearchRecords()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var nullMatches int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM search_logs WHERE matched_listing_id IS NULL",
	).Scan(&nullMatches))
	assert.Equal(t, 1, nullMatches)
}

func TestMatchAllCandidatesFail(t *testing.T) {
	db := setupTestDB(t)
	repo := NewListingRepository(db)

	server := photoServer(t, nil) // every path 500s

	require.NoError(t, repo.BulkInsertListings([]*Listing{
		listingWithPhoto("a", server.URL+"/a"),
		listingWithPhoto("b", server.URL+"/b"),
	}))

	extractor := &stubExtractor{vectors: map[string]FeatureVector{"upload": {1, 0}}}
	selector := NewSelector(NewCandidateProvider(repo, nil), extractor, NewPhotoFetcher(0),
		NewSearchLogRepository(db))

	_, err := selector.Match(context.Background(), []byte("upload"), testCenter, "ref")
	assert.True(t, IsNoMatch(err))
}

func TestMatchUploadExtractionFailureAborts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewListingRepository(db)

	require.NoError(t, repo.BulkInsertListings([]*Listing{
		listingWithPhoto("a", "https://unused.invalid/a"),
	}))

	extractor := &stubExtractor{
		vectors: map[string]FeatureVector{},
		errs:    map[string]error{"upload": NewError(ErrorTypeModelInference, "model down")},
	}
	searchLog := NewSearchLogRepository(db)
	selector := NewSelector(NewCandidateProvider(repo, nil), extractor, NewPhotoFetcher(0), searchLog)

	_, err := selector.Match(context.Background(), []byte("upload"), testCenter, "ref")
	assert.Equal(t, ErrorTypeModelInference, TypeOf(err))

	// An aborted attempt never reaches the audit log.
	count, err := searchLog.CountSearchRecords()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMatchTieBreaksOnSmallerID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewListingRepository(db)

	server := photoServer(t, map[string]string{"/same": "photo-same"})

	require.NoError(t, repo.BulkInsertListings([]*Listing{
		listingWithPhoto("zz-last", server.URL+"/same"),
		listingWithPhoto("aa-first", server.URL+"/same"),
	}))

	extractor := &stubExtractor{vectors: map[string]FeatureVector{
		"upload":     {1, 0},
		"photo-same": {1, 0},
	}}

	selector := NewSelector(NewCandidateProvider(repo, nil), extractor, NewPhotoFetcher(0),
		NewSearchLogRepository(db))

	for i := 0; i < 3; i++ {
		result, err := selector.Match(context.Background(), []byte("upload"), testCenter, "ref")
		require.NoError(t, err)
		assert.Equal(t, "aa-first", result.Listing.ID)
	}
}

func TestMatchIgnoresCandidatesWithoutPhoto(t *testing.T) {
	db := setupTestDB(t)
	repo := NewListingRepository(db)

	server := photoServer(t, map[string]string{"/a": "photo-a"})

	noPhoto := newTestListing("no-photo", "ext-np", testCenter.Lat, testCenter.Lng)
	noPhoto.PhotoURL = nil

	require.NoError(t, repo.BulkInsertListings([]*Listing{
		noPhoto,
		listingWithPhoto("with-photo", server.URL+"/a"),
	}))

	extractor := &stubExtractor{vectors: map[string]FeatureVector{
		"upload":  {1, 0},
		"photo-a": {1, 0},
	}}

	selector := NewSelector(NewCandidateProvider(repo, nil), extractor, NewPhotoFetcher(0),
		NewSearchLogRepository(db))

	result, err := selector.Match(context.Background(), []byte("upload"), testCenter, "ref")
	require.NoError(t, err)
	assert.Equal(t, "with-photo", result.Listing.ID)
	assert.Equal(t, 1, result.Scored)
	assert.Zero(t, result.Skipped)
}
