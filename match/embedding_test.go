// Copyright 2026 The HouseFinder Authors
// SPDX-License-Identifier: Apache-2.0

package match

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngMagic is enough for content-type sniffing to say image/png.
var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestCosineSimilarity(t *testing.T) {
	a := FeatureVector{1, 0, 0}
	b := FeatureVector{0, 1, 0}

	identical, err := CosineSimilarity(a, a)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, identical, 1e-9)

	orthogonal, err := CosineSimilarity(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, orthogonal, 1e-9)

	opposite, err := CosineSimilarity(a, FeatureVector{-1, 0, 0})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, opposite, 1e-9)
}

func TestCosineSimilarityIsSymmetric(t *testing.T) {
	a := FeatureVector{0.3, -0.2, 0.9}
	b := FeatureVector{0.1, 0.7, -0.4}

	ab, err := CosineSimilarity(a, b)
	require.NoError(t, err)
	ba, err := CosineSimilarity(b, a)
	require.NoError(t, err)

	assert.Equal(t, ab, ba)
}

func TestCosineSimilarityScaleInvariant(t *testing.T) {
	a := FeatureVector{0.3, -0.2, 0.9}
	scaled := FeatureVector{0.6, -0.4, 1.8}

	got, err := CosineSimilarity(a, scaled)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, 1e-6)
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity(FeatureVector{1, 2}, FeatureVector{1, 2, 3})
	assert.Equal(t, ErrorTypeDimensionMismatch, TypeOf(err))
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	got, err := CosineSimilarity(FeatureVector{0, 0}, FeatureVector{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestClipClientExtract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/embeddings", r.URL.Path)

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)

		decoded, err := base64.StdEncoding.DecodeString(req.Image)
		require.NoError(t, err)
		assert.Equal(t, pngMagic, decoded)

		_ = json.NewEncoder(w).Encode(embeddingResponse{Embedding: []float32{1, 2, 3}})
	}))
	defer server.Close()

	clip := NewClipClient(server.URL, "test-model", 3)

	vector, err := clip.Extract(context.Background(), pngMagic)
	require.NoError(t, err)
	assert.Equal(t, FeatureVector{1, 2, 3}, vector)
	assert.Equal(t, 3, clip.Dimension())
}

func TestClipClientRejectsNonImagePayload(t *testing.T) {
	clip := NewClipClient("http://unused.invalid", "m", 3)

	_, err := clip.Extract(context.Background(), []byte("definitely not an image"))
	assert.Equal(t, ErrorTypeImageDecode, TypeOf(err))
}

func TestClipClientServerRejectsImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	clip := NewClipClient(server.URL, "m", 3)

	_, err := clip.Extract(context.Background(), pngMagic)
	assert.Equal(t, ErrorTypeImageDecode, TypeOf(err))
}

func TestClipClientServerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	clip := NewClipClient(server.URL, "m", 3)

	_, err := clip.Extract(context.Background(), pngMagic)
	assert.Equal(t, ErrorTypeModelInference, TypeOf(err))
}

func TestClipClientDimensionVerification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(embeddingResponse{Embedding: []float32{1, 2}})
	}))
	defer server.Close()

	clip := NewClipClient(server.URL, "m", 3)

	_, err := clip.Extract(context.Background(), pngMagic)
	assert.Equal(t, ErrorTypeModelInference, TypeOf(err))
}

func TestClipClientPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)

			return
		}

		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	clip := NewClipClient(server.URL, "m", 0)
	require.NoError(t, clip.Ping(context.Background()))
	assert.Equal(t, DefaultEmbeddingDimension, clip.Dimension())
}

func TestClipClientPingUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // refuse connections

	clip := NewClipClient(server.URL, "m", 0)
	err := clip.Ping(context.Background())
	assert.Equal(t, ErrorTypeModelInference, TypeOf(err))
}
