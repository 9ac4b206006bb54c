// Copyright 2026 The HouseFinder Authors
// SPDX-License-Identifier: Apache-2.0

package match

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jcodagnone/housefinder/spatial"
)

// SearchRecord is an immutable audit entry for one completed match attempt.
// MatchedListingID and Confidence are nil when no candidate matched.
type SearchRecord struct {
	ID               string         `json:"id"`
	UserImageRef     string         `json:"user_image_ref"`
	SearchPoint      *spatial.Point `json:"search_point"`
	MatchedListingID *string        `json:"matched_listing_id,omitempty"`
	Confidence       *float64       `json:"confidence,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// SearchLogRepository owns the audit log of match attempts.
type SearchLogRepository interface {
	// CreateSchema creates the search_logs table
	CreateSchema() error

	// SaveSearchRecord appends one record to the audit log
	SaveSearchRecord(record *SearchRecord) error

	// CountSearchRecords returns the total number of records
	CountSearchRecords() (int, error)
}

type sqlSearchLogRepository struct {
	db *sql.DB
}

// NewSearchLogRepository creates a new search log repository.
func NewSearchLogRepository(db *sql.DB) SearchLogRepository {
	return &sqlSearchLogRepository{db: db}
}

func (r *sqlSearchLogRepository) CreateSchema() error {
	_, err := r.db.Exec(`INSTALL spatial; LOAD spatial;`)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		CREATE TABLE IF NOT EXISTS search_logs (
			id VARCHAR PRIMARY KEY,
			user_image_ref VARCHAR NOT NULL,
			search_point POINT_2D NOT NULL,
			matched_listing_id VARCHAR,
			confidence DOUBLE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)

	return err
}

func (r *sqlSearchLogRepository) SaveSearchRecord(record *SearchRecord) error {
	if record.SearchPoint == nil {
		return errors.New("search point can't be null")
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(`
		INSERT INTO search_logs(
			id, user_image_ref, search_point, matched_listing_id, confidence, created_at
		)
		VALUES (?, ?, ST_Point(?, ?), ?, ?, ?)
	`,
		record.ID,
		record.UserImageRef,
		record.SearchPoint.Lng,
		record.SearchPoint.Lat,
		record.MatchedListingID,
		record.Confidence,
		record.CreatedAt,
	)

	return err
}

func (r *sqlSearchLogRepository) CountSearchRecords() (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM search_logs",
	).Scan(&count)

	return count, err
}
