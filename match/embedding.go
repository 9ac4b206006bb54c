// Copyright 2026 The HouseFinder Authors
// SPDX-License-Identifier: Apache-2.0

package match

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// FeatureVector is a fixed-length embedding of one image's visual content.
// Vectors are ephemeral: scoped to a single match operation, never persisted.
type FeatureVector []float32

// Extractor maps an image to a FeatureVector. Implementations must return
// vectors of the same dimensionality on every call, or scores between
// different calls would be meaningless.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (FeatureVector, error)
	Dimension() int
}

// CosineSimilarity computes the cosine similarity of two vectors, the dot
// product of their L2-normalized forms. The result is in [-1, 1].
func CosineSimilarity(a, b FeatureVector) (float64, error) {
	if len(a) != len(b) {
		return 0, NewError(ErrorTypeDimensionMismatch,
			fmt.Sprintf("vector dimensions differ: %d vs %d", len(a), len(b)))
	}

	var dot, normA, normB float64

	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// ClipClient extracts embeddings from a local CLIP inference server. The
// server loads the vision model once at its own startup; one ClipClient is
// created in the composition root and shared by every in-flight request, so
// the model is never reloaded per call.
type ClipClient struct {
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
}

// DefaultEmbeddingDimension matches clip-vit-base-patch32.
const DefaultEmbeddingDimension = 512

// NewClipClient creates a client for the CLIP embedding server.
func NewClipClient(baseURL, model string, dimension int) *ClipClient {
	if dimension <= 0 {
		dimension = DefaultEmbeddingDimension
	}

	return &ClipClient{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		model:     model,
		dimension: dimension,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Dimension returns the embedding dimensionality, constant for the process
// lifetime.
func (c *ClipClient) Dimension() int {
	return c.dimension
}

// Ping verifies the embedding server is up and its model loaded. Called once
// at startup before the first request is served.
func (c *ClipClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return WrapError(ErrorTypeModelInference, "embedding server unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return NewError(ErrorTypeModelInference,
			fmt.Sprintf("embedding server health returned status %d", resp.StatusCode))
	}

	return nil
}

type embeddingRequest struct {
	Model string `json:"model"`
	Image string `json:"image"` // base64
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Extract computes the embedding of one image.
func (c *ClipClient) Extract(ctx context.Context, image []byte) (FeatureVector, error) {
	if !strings.HasPrefix(http.DetectContentType(image), "image/") {
		return nil, NewError(ErrorTypeImageDecode, "payload is not a decodable image")
	}

	body, err := json.Marshal(embeddingRequest{
		Model: c.model,
		Image: base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embedding request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, WrapError(ErrorTypeModelInference, "embedding request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		// The server decodes the image; a 400 means it couldn't.
		return nil, NewError(ErrorTypeImageDecode, "embedding server rejected image")
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return nil, NewError(ErrorTypeModelInference,
			fmt.Sprintf("embedding server returned status %d: %s", resp.StatusCode, body))
	}

	var embResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, WrapError(ErrorTypeModelInference, "decoding embedding response", err)
	}

	if len(embResp.Embedding) != c.dimension {
		return nil, NewError(ErrorTypeModelInference,
			fmt.Sprintf("embedding server returned %d dimensions, expected %d",
				len(embResp.Embedding), c.dimension))
	}

	return embResp.Embedding, nil
}
