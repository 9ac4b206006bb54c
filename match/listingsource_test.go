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

func TestListingSourceSearchByLocation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/properties", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "housefinder/test", r.Header.Get("User-Agent"))

		query := r.URL.Query()
		assert.Equal(t, "38.897675", query.Get("latitude"))
		assert.Equal(t, "-77.03653", query.Get("longitude"))
		assert.Equal(t, "50", query.Get("radius"))
		assert.Equal(t, "25", query.Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"properties": [
				{"id": "ext-1", "address": "somewhere", "latitude": 38.8977, "longitude": -77.0365},
				{"id": 2, "address": {"oneLine": "structured"}}
			]
		}`))
	}))
	defer server.Close()

	source := NewListingSource(&SourceOptions{
		BaseURL:    server.URL,
		APIKey:     "test-key",
		UserAgent:  "housefinder/test",
		MaxResults: 25,
	})

	raws, err := source.SearchByLocation(context.Background(),
		spatial.Point{Lat: 38.897675, Lng: -77.036530}, 50)
	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.Equal(t, "ext-1", string(raws[0].ID))
	assert.Equal(t, "structured", string(raws[1].Address))
}

func TestListingSourceSearchUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	source := NewListingSource(&SourceOptions{BaseURL: server.URL})

	_, err := source.SearchByLocation(context.Background(), spatial.Point{Lat: 1, Lng: 2}, 50)
	assert.Equal(t, ErrorTypeUpstreamFetch, TypeOf(err))
}

func TestListingSourcePropertyDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/properties/ext-1":
			_, _ = w.Write([]byte(`{"id": "ext-1", "address": "found"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	source := NewListingSource(&SourceOptions{BaseURL: server.URL})

	raw, err := source.PropertyDetails(context.Background(), "ext-1")
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.Equal(t, "found", string(raw.Address))

	// An unknown identifier is not an error, the provider just doesn't know it.
	raw, err = source.PropertyDetails(context.Background(), "ext-unknown")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestListingSourceDefaults(t *testing.T) {
	source := NewListingSource(nil)

	client, ok := source.(*bridgeClient)
	require.True(t, ok)
	assert.Equal(t, "https://api.bridgedataoutput.com/api/v2", client.baseURL)
	assert.Equal(t, 50, client.maxResults)
}
