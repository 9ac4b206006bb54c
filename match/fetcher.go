// Copyright 2026 The HouseFinder Authors
// SPDX-License-Identifier: Apache-2.0

package match

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxPhotoBytes bounds how much of a candidate photo we are willing to read.
const maxPhotoBytes = 20 << 20 // 20 MiB

// PhotoFetcher downloads candidate listing photos so they can be embedded.
// Fetching is a per-candidate concern: a failure here must never abort the
// whole match, the caller skips the candidate instead.
type PhotoFetcher struct {
	client *http.Client
}

// NewPhotoFetcher creates a fetcher with a bounded per-photo timeout.
func NewPhotoFetcher(timeout time.Duration) *PhotoFetcher {
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &PhotoFetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads one photo.
func (f *PhotoFetcher) Fetch(ctx context.Context, photoURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, photoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating photo request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, WrapError(ErrorTypeUpstreamFetch, "fetching candidate photo", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewError(ErrorTypeUpstreamFetch,
			fmt.Sprintf("photo server returned status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return nil, WrapError(ErrorTypeUpstreamFetch, "reading candidate photo", err)
	}

	return data, nil
}
