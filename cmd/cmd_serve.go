// Copyright 2026 The HouseFinder Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/jcodagnone/housefinder/match"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const databaseFile = "housefinder.duckdb"

var dbPath string

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

// openDatabase opens the DuckDB file and prepares both schemas.
func openDatabase(dbpath string) (*sql.DB, match.ListingRepository, match.SearchLogRepository, error) {
	db, err := sql.Open("duckdb", dbpath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}

	repo := match.NewListingRepository(db)
	if err := repo.CreateSchema(); err != nil {
		db.Close()

		return nil, nil, nil, fmt.Errorf("creating listings schema: %w", err)
	}

	searchLog := match.NewSearchLogRepository(db)
	if err := searchLog.CreateSchema(); err != nil {
		db.Close()

		return nil, nil, nil, fmt.Errorf("creating search log schema: %w", err)
	}

	return db, repo, searchLog, nil
}

func newEmbeddingClient(ctx context.Context) (*match.ClipClient, error) {
	dimension := 0

	if v := os.Getenv("CLIP_EMBEDDING_DIM"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parsing CLIP_EMBEDDING_DIM: %w", err)
		}

		dimension = d
	}

	clip := match.NewClipClient(
		envOr("CLIP_SERVER_URL", "http://localhost:8001"),
		envOr("CLIP_MODEL", "clip-vit-base-patch32"),
		dimension,
	)

	// Fail at startup, not on the first user request.
	if err := clip.Ping(ctx); err != nil {
		return nil, fmt.Errorf("embedding server not ready: %w", err)
	}

	return clip, nil
}

func newListingSource() match.ListingSource {
	baseURL := os.Getenv("LISTING_API_URL")
	apiKey := os.Getenv("LISTING_API_KEY")

	if baseURL == "" && apiKey == "" {
		log.Println("LISTING_API_URL/LISTING_API_KEY not set; serving from the local store only")

		return nil
	}

	return match.NewListingSource(&match.SourceOptions{
		BaseURL:         baseURL,
		APIKey:          apiKey,
		UserAgent:       fmt.Sprintf("housefinder/%s (+https://github.com/jcodagnone/housefinder)", Version),
		EnableHTTPTrace: os.Getenv("HF_HTTP_TRACE") != "",
	})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the house matching API server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}

		if err := os.MkdirAll(dbPath, 0o750); err != nil {
			return fmt.Errorf("creating db directory: %w", err)
		}

		db, repo, searchLog, err := openDatabase(filepath.Join(dbPath, databaseFile))
		if err != nil {
			return err
		}
		defer db.Close()

		clip, err := newEmbeddingClient(cmd.Context())
		if err != nil {
			return err
		}

		uploadDir := envOr("HF_UPLOAD_DIR", filepath.Join(os.TempDir(), "housefinder-uploads"))
		if err := os.MkdirAll(uploadDir, 0o700); err != nil {
			return fmt.Errorf("creating upload directory: %w", err)
		}

		var geocoder match.Geocoder
		if apiKey := match.ResolveGeocodingAPIKey(cmd.Context()); apiKey != "" {
			geocoder = match.NewGoogleMapsGeocoder(apiKey)
		}

		selector := match.NewSelector(
			match.NewCandidateProvider(repo, newListingSource()),
			clip,
			match.NewPhotoFetcher(0),
			searchLog,
		)

		server := match.NewServer(selector, repo, geocoder, match.NewUploadStore(uploadDir))

		listen := envOr("HF_LISTEN", "localhost:8080")
		fmt.Printf("🏠 housefinder %s listening on http://%s\n", Version, listen)

		return server.Run(listen)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.PersistentFlags().StringVar(&dbPath, "db-path", envOr("HF_DB_PATH", "db"), "directory holding the DuckDB database")
}
