// Copyright 2026 The HouseFinder Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/jcodagnone/housefinder/match"
	"github.com/jcodagnone/housefinder/match/utils"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

const defaultSeedFile = "cmd/testdata/listings.json"

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [file]",
		Short: "Seeds the listings store from a JSON file of raw listings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			seedFile := defaultSeedFile
			if len(args) == 1 {
				seedFile = args[0]
			}

			if err := os.MkdirAll(dbPath, 0o750); err != nil {
				return fmt.Errorf("creating db directory: %w", err)
			}

			return seedDatabase(filepath.Join(dbPath, databaseFile), seedFile)
		},
	}
}

func init() {
	rootCmd.AddCommand(newSeedCmd())
}

func seedDatabase(dbpath, seedFile string) error {
	// remove old db if it exists
	_ = os.Remove(dbpath)
	_ = os.Remove(dbpath + ".wal")

	db, repo, _, err := openDatabase(dbpath)
	if err != nil {
		return err
	}
	defer db.Close()

	data, err := os.ReadFile(filepath.Clean(seedFile))
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}

	var raws []*match.RawListing
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("unmarshaling seed file: %w", err)
	}

	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(len(raws),
			progressbar.OptionSetDescription("Seeding listings"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	listings := make([]*match.Listing, 0, len(raws))

	for _, raw := range raws {
		listing, err := match.ParseListing(raw)
		if err != nil {
			if errors.Is(err, match.ErrNoCoordinates) {
				log.Printf("skipping seed record %q: %v", string(raw.ID), err)
			} else {
				return fmt.Errorf("parsing seed record %q: %w", string(raw.ID), err)
			}
		} else {
			listings = append(listings, listing)
		}

		if bar != nil {
			_ = bar.Add(1)
		}
	}

	if err := repo.BulkInsertListings(listings); err != nil {
		return fmt.Errorf("inserting seed listings: %w", err)
	}

	count, err := repo.CountListings()
	if err != nil {
		return fmt.Errorf("counting listings: %w", err)
	}

	fmt.Printf("✅ Seeded %s listings from %s\n", utils.FormatInt(int64(count)), seedFile)

	return nil
}
