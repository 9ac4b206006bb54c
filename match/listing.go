// Copyright 2026 The HouseFinder Authors
// SPDX-License-Identifier: Apache-2.0

package match

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jcodagnone/housefinder/spatial"
	"github.com/uber/h3-go/v4"
)

// h3Resolution is the cell resolution used to index listings. At resolution 9
// cells have an average edge of ~174m, a good prefilter for searches in the
// tens-of-meters range.
const h3Resolution = 9

// Listing represents a real-estate record. It is created when fetched from
// the external listing source and never mutated afterwards.
type Listing struct {
	ID         string         `json:"id"`
	ExternalID *string        `json:"external_id,omitempty"`
	Address    string         `json:"address"`
	Point      *spatial.Point `json:"point"`
	ListingURL *string        `json:"listing_url,omitempty"`
	PhotoURL   *string        `json:"photo_url,omitempty"`
	Price      *int64         `json:"price,omitempty"`
	Bedrooms   *int           `json:"bedrooms,omitempty"`
	Bathrooms  *float64       `json:"bathrooms,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	H3Res9     int64          `json:"-"`
}

func (l *Listing) computeH3() error {
	if l.Point == nil {
		l.H3Res9 = 0

		return nil
	}

	cell, err := h3.LatLngToCell(h3.NewLatLng(l.Point.Lat, l.Point.Lng), h3Resolution)
	if err != nil {
		return fmt.Errorf("converting to h3 cell at res %d: %w", h3Resolution, err)
	}

	l.H3Res9 = int64(cell)

	return nil
}

// flexString unmarshals either a JSON string or a JSON number into a string.
// External records don't agree on the type of their identifiers.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = flexString(str)

		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}

	*s = flexString(num.String())

	return nil
}

// flexAddress unmarshals either a plain string or a {"oneLine": …} object.
type flexAddress string

func (a *flexAddress) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*a = flexAddress(str)

		return nil
	}

	var obj struct {
		OneLine string `json:"oneLine"`
	}

	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	*a = flexAddress(obj.OneLine)

	return nil
}

// RawListing is the loosely-typed shape of a record as returned by the
// external listing source. Any field may be absent.
type RawListing struct {
	ID        flexString  `json:"id"`
	Address   flexAddress `json:"address"`
	Latitude  *float64    `json:"latitude"`
	Longitude *float64    `json:"longitude"`
	URL       *string     `json:"url"`
	Photos    []struct {
		Href string `json:"href"`
	} `json:"photos"`
	Price     *int64   `json:"price"`
	Bedrooms  *int     `json:"bedrooms"`
	Bathrooms *float64 `json:"bathrooms"`
}

// ErrNoCoordinates is returned by ParseListing when a raw record carries no
// usable geographic point. Such records can't be indexed and are skipped.
var ErrNoCoordinates = errors.New("raw listing has no valid coordinates")

// ParseListing converts a raw external record into a Listing, assigning a new
// internal identifier. Missing photo, price, bedroom or bathroom fields stay
// nil; only the geographic point is mandatory and must be within bounds.
func ParseListing(raw *RawListing) (*Listing, error) {
	if raw.Latitude == nil || raw.Longitude == nil {
		return nil, ErrNoCoordinates
	}

	point := &spatial.Point{Lat: *raw.Latitude, Lng: *raw.Longitude}
	if !point.Valid() {
		return nil, ErrNoCoordinates
	}

	listing := &Listing{
		ID:        uuid.NewString(),
		Address:   strings.TrimSpace(string(raw.Address)),
		Point:     point,
		Price:     raw.Price,
		Bedrooms:  raw.Bedrooms,
		Bathrooms: raw.Bathrooms,
		CreatedAt: time.Now().UTC(),
	}

	if id := strings.TrimSpace(string(raw.ID)); id != "" {
		listing.ExternalID = &id
	}

	if raw.URL != nil && *raw.URL != "" {
		listing.ListingURL = raw.URL
	}

	// Take the first listed photo, if any.
	for _, photo := range raw.Photos {
		if photo.Href != "" {
			href := photo.Href
			listing.PhotoURL = &href

			break
		}
	}

	if err := listing.computeH3(); err != nil {
		return nil, err
	}

	return listing, nil
}
