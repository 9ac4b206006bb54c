// Copyright 2026 The HouseFinder Authors
// SPDX-License-Identifier: Apache-2.0

package match

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jcodagnone/housefinder/spatial"
	"github.com/uber/h3-go/v4"
)

// ListingRepository handles persistence of listings in the spatial store.
type ListingRepository interface {
	// CreateSchema creates the listings table and loads the spatial extension
	CreateSchema() error

	// BulkInsertListings inserts a slice of listings, ignoring records whose
	// external identifier is already present
	BulkInsertListings(listings []*Listing) error

	// FindWithinRadius returns all listings within radius meters of point,
	// using spheroid-accurate distance
	FindWithinRadius(point spatial.Point, radius float64) ([]*Listing, error)

	// GetByID returns a listing by its internal identifier
	GetByID(id string) (*Listing, error)

	// CountListings returns the total number of listings
	CountListings() (int, error)

	// DB returns the underlying database connection
	DB() *sql.DB
}

type sqlListingRepository struct {
	db *sql.DB
}

// NewListingRepository creates a new listing repository.
func NewListingRepository(db *sql.DB) ListingRepository {
	return &sqlListingRepository{db: db}
}

// DB returns the underlying database connection for advanced queries.
func (r *sqlListingRepository) DB() *sql.DB {
	return r.db
}

func (r *sqlListingRepository) CreateSchema() error {
	// DuckDB needs to load the spatial extension
	_, err := r.db.Exec(`INSTALL spatial; LOAD spatial;`)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		CREATE TABLE IF NOT EXISTS listings (
			id VARCHAR PRIMARY KEY,
			external_id VARCHAR UNIQUE,
			address VARCHAR NOT NULL,
			point POINT_2D NOT NULL,
			listing_url VARCHAR,
			photo_url VARCHAR,
			price BIGINT,
			bedrooms INTEGER,
			bathrooms DOUBLE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			h3_res9 UBIGINT NOT NULL
		);
	`)

	return err
}

func (r *sqlListingRepository) BulkInsertListings(listings []*Listing) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO listings(
			id,
			external_id,
			address,
			point,
			listing_url,
			photo_url,
			price,
			bedrooms,
			bathrooms,
			created_at,
			h3_res9
		)
		VALUES (?, ?, ?, ST_Point(?, ?), ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		if rErr := tx.Rollback(); rErr != nil {
			err = rErr
		}

		return err
	}
	defer stmt.Close()

	for _, l := range listings {
		if l.Point == nil {
			if rErr := tx.Rollback(); rErr != nil {
				return rErr
			}

			return errors.New("listing point can't be null")
		}

		if err = l.computeH3(); err != nil {
			if rErr := tx.Rollback(); rErr != nil {
				return rErr
			}

			return err
		}

		if _, err = stmt.Exec(
			l.ID,
			l.ExternalID,
			l.Address,
			l.Point.Lng,
			l.Point.Lat,
			l.ListingURL,
			l.PhotoURL,
			l.Price,
			l.Bedrooms,
			l.Bathrooms,
			l.CreatedAt,
			l.H3Res9,
		); err != nil {
			if rErr := tx.Rollback(); rErr != nil {
				err = rErr
			}

			return err
		}
	}

	return tx.Commit()
}

var baseSelect = `
	SELECT id, external_id, address, point,
	       listing_url, photo_url, price, bedrooms, bathrooms,
	       created_at, h3_res9
	FROM listings
`

// coverCells returns the H3 cells whose union is guaranteed to contain every
// point within radius meters of p.
func coverCells(p spatial.Point, radius float64) ([]int64, error) {
	origin, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), h3Resolution)
	if err != nil {
		return nil, fmt.Errorf("converting to h3 cell: %w", err)
	}

	// Res-9 cells have a minimum edge of ~150m, so a disk of
	// ceil(radius/150)+1 rings always covers the search circle.
	k := int(radius/150.0) + 1

	cells, err := h3.GridDisk(origin, k)
	if err != nil {
		return nil, fmt.Errorf("computing h3 grid disk: %w", err)
	}

	ret := make([]int64, len(cells))
	for i, c := range cells {
		ret[i] = int64(c)
	}

	return ret, nil
}

func (r *sqlListingRepository) FindWithinRadius(point spatial.Point, radius float64) ([]*Listing, error) {
	cells, err := coverCells(point, radius)
	if err != nil {
		return nil, err
	}

	args := make([]any, 0, len(cells)+3)
	for _, c := range cells {
		args = append(args, c)
	}

	// ST_Distance_Spheroid expects latitude/longitude axis order, while the
	// stored POINT_2D is (lng, lat); swap via ST_Y/ST_X.
	query := baseSelect + `
		WHERE h3_res9 IN (?` + strings.Repeat(", ?", len(cells)-1) + `)
		AND ST_Distance_Spheroid(ST_Point(ST_Y(point), ST_X(point)), ST_Point(?, ?)) <= ?
		ORDER BY id
	`
	args = append(args, point.Lat, point.Lng, radius)

	return r.list(query, args)
}

func (r *sqlListingRepository) GetByID(id string) (*Listing, error) {
	listings, err := r.list(baseSelect+` WHERE id = ?`, []any{id})
	if err != nil {
		return nil, err
	}

	if len(listings) == 0 {
		return nil, sql.ErrNoRows
	}

	return listings[0], nil
}

func (r *sqlListingRepository) CountListings() (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM listings",
	).Scan(&count)

	return count, err
}

func (r *sqlListingRepository) list(query string, args []any) ([]*Listing, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []*Listing

	for rows.Next() {
		listing := &Listing{Point: &spatial.Point{}}

		var externalID, listingURL, photoURL sql.NullString

		var price sql.NullInt64

		var bedrooms sql.NullInt32

		var bathrooms sql.NullFloat64

		err := rows.Scan(
			&listing.ID, &externalID, &listing.Address, &listing.Point,
			&listingURL, &photoURL, &price, &bedrooms, &bathrooms,
			&listing.CreatedAt, &listing.H3Res9,
		)
		if err != nil {
			return nil, err
		}

		if externalID.Valid {
			listing.ExternalID = &externalID.String
		}

		if listingURL.Valid {
			listing.ListingURL = &listingURL.String
		}

		if photoURL.Valid {
			listing.PhotoURL = &photoURL.String
		}

		if price.Valid {
			listing.Price = &price.Int64
		}

		if bedrooms.Valid {
			n := int(bedrooms.Int32)
			listing.Bedrooms = &n
		}

		if bathrooms.Valid {
			listing.Bathrooms = &bathrooms.Float64
		}

		listings = append(listings, listing)
	}

	return listings, rows.Err()
}
