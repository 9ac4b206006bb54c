// Copyright 2026 The HouseFinder Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/fatih/color"
	"github.com/jcodagnone/housefinder/match"
	"github.com/jcodagnone/housefinder/match/utils"
	"github.com/jcodagnone/housefinder/spatial"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var matchOptions struct {
	lat     float64
	lng     float64
	address string
	radius  float64
}

// resolveMatchLocation mirrors the API's precedence: explicit flags, then
// EXIF GPS, then a geocoded address.
func resolveMatchLocation(ctx context.Context, image []byte) (*spatial.Point, error) {
	if matchOptions.lat != 0 || matchOptions.lng != 0 {
		point := &spatial.Point{Lat: matchOptions.lat, Lng: matchOptions.lng}
		if !point.Valid() {
			return nil, fmt.Errorf("coordinates out of range: %s", point)
		}

		return point, nil
	}

	if point := match.ExtractLocation(bytes.NewReader(image)); point != nil {
		fmt.Printf("📍 Using EXIF GPS position: %s\n", point)

		return point, nil
	}

	if matchOptions.address != "" {
		apiKey := match.ResolveGeocodingAPIKey(ctx)
		if apiKey == "" {
			return nil, errors.New("geocoding an address requires GOOGLE_MAPS_API_KEY")
		}

		result, err := match.NewGoogleMapsGeocoder(apiKey).Geocode(utils.LowerASCIIFolding(matchOptions.address))
		if err != nil {
			return nil, fmt.Errorf("geocoding address: %w", err)
		}

		fmt.Printf("📍 Geocoded %q to (%f, %f) [%s]\n",
			matchOptions.address, result.Latitude, result.Longitude, result.Confidence)

		return &spatial.Point{Lat: result.Latitude, Lng: result.Longitude}, nil
	}

	return nil, errors.New("no location: pass --lat/--lng, --address, or an image with GPS metadata")
}

var matchCmd = &cobra.Command{
	Use:   "match <image>",
	Short: "Match one house photo against the listings store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}

		image, err := os.ReadFile(filepath.Clean(args[0]))
		if err != nil {
			return fmt.Errorf("reading image: %w", err)
		}

		point, err := resolveMatchLocation(cmd.Context(), image)
		if err != nil {
			return err
		}

		db, repo, _, err := openDatabase(filepath.Join(dbPath, databaseFile))
		if err != nil {
			return err
		}
		defer db.Close()

		clip, err := newEmbeddingClient(cmd.Context())
		if err != nil {
			return err
		}

		selector := match.NewSelector(
			match.NewCandidateProvider(repo, newListingSource()),
			clip,
			match.NewPhotoFetcher(0),
			nil, // one-shot run, nothing to audit
		)
		selector.SetRadius(matchOptions.radius)

		result, err := selector.Match(cmd.Context(), image, *point, args[0])
		if match.IsNoMatch(err) {
			color.Yellow("No matching property found within %.0f m", matchOptions.radius)

			return nil
		}

		if err != nil {
			return err
		}

		listing := result.Listing

		color.Green("✅ Best match (confidence %.3f, %d scored, %d skipped)",
			result.Confidence, result.Scored, result.Skipped)
		fmt.Printf("   Address:  %s\n", listing.Address)
		fmt.Printf("   Distance: %.0f m\n", result.DistanceM)

		if listing.Price != nil {
			fmt.Printf("   Price:    $%s\n", utils.FormatInt(*listing.Price))
		}

		if listing.ListingURL != nil {
			fmt.Printf("   Listing:  %s\n", *listing.ListingURL)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)
	matchCmd.Flags().Float64Var(&matchOptions.lat, "lat", 0, "latitude of the photo")
	matchCmd.Flags().Float64Var(&matchOptions.lng, "lng", 0, "longitude of the photo")
	matchCmd.Flags().StringVar(&matchOptions.address, "address", "", "street address of the photo")
	matchCmd.Flags().Float64Var(&matchOptions.radius, "radius", match.DefaultSearchRadius, "search radius in meters")
}
