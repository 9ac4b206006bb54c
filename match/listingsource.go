// Copyright 2026 The HouseFinder Authors
// SPDX-License-Identifier: Apache-2.0

package match

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/jcodagnone/housefinder/spatial"
	"github.com/jcodagnone/housefinder/utils/httputils"
)

// ListingSource is the boundary to the external real-estate data provider.
// It returns loosely-structured raw records; parsing into Listings happens
// on our side of the boundary.
type ListingSource interface {
	// SearchByLocation returns the raw records the provider knows about
	// within radius meters of point
	SearchByLocation(ctx context.Context, point spatial.Point, radius float64) ([]*RawListing, error)

	// PropertyDetails returns the raw record for a single provider identifier,
	// or nil when the provider doesn't know it
	PropertyDetails(ctx context.Context, externalID string) (*RawListing, error)
}

// SourceOptions configuration for the listing source client.
type SourceOptions struct {
	// BaseURL of the provider API
	BaseURL string

	// APIKey used as bearer token
	APIKey string

	// UserAgent is the User-Agent header to use in HTTP requests
	UserAgent string

	// Enables light tracing of HTTP requests and responses
	EnableHTTPTrace bool

	// Timeout bounds each provider call. A degraded upstream must not block
	// requests indefinitely.
	Timeout time.Duration

	// MaxResults per search call
	MaxResults int
}

type bridgeClient struct {
	baseURL    string
	client     *http.Client
	maxResults int
}

// NewListingSource creates a client for a Bridge-style listing provider API.
func NewListingSource(options *SourceOptions) ListingSource {
	if options == nil {
		options = &SourceOptions{}
	}

	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = "https://api.bridgedataoutput.com/api/v2"
	}

	timeout := options.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	maxResults := options.MaxResults
	if maxResults == 0 {
		maxResults = 50
	}

	var httpLogWriter io.Writer
	if options.EnableHTTPTrace {
		httpLogWriter = os.Stderr
	}

	transport := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
		MaxConnsPerHost:       4,
		IdleConnTimeout:       30 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	loggingTransport := &httputils.LoggingRoundTripper{
		Writer:    httpLogWriter,
		Transport: transport,
	}

	userAgent := "housefinder/unknown"
	if options.UserAgent != "" {
		userAgent = options.UserAgent
	}

	headers := map[string]string{
		"User-Agent": userAgent,
		"Accept":     "application/json",
	}
	if options.APIKey != "" {
		headers["Authorization"] = "Bearer " + options.APIKey
	}

	headerTransport := &httputils.AppendRequestHeadersRoundTripper{
		Headers:   headers,
		Transport: loggingTransport,
	}

	return &bridgeClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   timeout,
			Transport: headerTransport,
		},
		maxResults: maxResults,
	}
}

type searchResponse struct {
	Properties []*RawListing `json:"properties"`
}

func (c *bridgeClient) SearchByLocation(ctx context.Context, point spatial.Point, radius float64) ([]*RawListing, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(point.Lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(point.Lng, 'f', -1, 64))
	params.Set("radius", strconv.FormatFloat(radius, 'f', -1, 64))
	params.Set("limit", strconv.Itoa(c.maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/properties?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, WrapError(ErrorTypeUpstreamFetch, "listing provider request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewError(ErrorTypeUpstreamFetch,
			fmt.Sprintf("listing provider returned status %d", resp.StatusCode))
	}

	var search searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&search); err != nil {
		return nil, WrapError(ErrorTypeUpstreamFetch, "decoding listing provider response", err)
	}

	return search.Properties, nil
}

func (c *bridgeClient) PropertyDetails(ctx context.Context, externalID string) (*RawListing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/properties/"+url.PathEscape(externalID), nil)
	if err != nil {
		return nil, fmt.Errorf("creating details request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, WrapError(ErrorTypeUpstreamFetch, "listing provider request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, NewError(ErrorTypeUpstreamFetch,
			fmt.Sprintf("listing provider returned status %d", resp.StatusCode))
	}

	var raw RawListing
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, WrapError(ErrorTypeUpstreamFetch, "decoding listing provider response", err)
	}

	return &raw, nil
}
