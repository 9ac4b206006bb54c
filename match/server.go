// Copyright 2026 The HouseFinder Authors
// SPDX-License-Identifier: Apache-2.0

package match

import (
	"bytes"
	"database/sql"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jcodagnone/housefinder/match/utils"
	"github.com/jcodagnone/housefinder/spatial"
)

// maxUploadBytes bounds how large an uploaded image we accept.
const maxUploadBytes = 20 << 20 // 20 MiB

type Server struct {
	selector *Selector
	repo     ListingRepository
	geocoder Geocoder
	uploads  *UploadStore
}

func NewServer(selector *Selector, repo ListingRepository, geocoder Geocoder, uploads *UploadStore) *Server {
	return &Server{
		selector: selector,
		repo:     repo,
		geocoder: geocoder,
		uploads:  uploads,
	}
}

// corsMiddleware allows browser clients on other origins to call the API.
func corsMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Header("Access-Control-Allow-Origin", "*")
		ctx.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		ctx.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if ctx.Request.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusNoContent)

			return
		}

		ctx.Next()
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()
	r.Use(corsMiddleware())

	r.POST("/api/v1/analyze-house", s.analyzeHouse)
	r.GET("/api/v1/property/:id", s.getProperty)
	r.GET("/api/v1/health", s.health)

	return r
}

func (s *Server) Run(listen string) error {
	return s.Router().Run(listen)
}

type propertyResponse struct {
	ID         string    `json:"id"`
	Address    string    `json:"address"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Price      *int64    `json:"price"`
	Bedrooms   *int      `json:"bedrooms"`
	Bathrooms  *float64  `json:"bathrooms"`
	ListingURL *string   `json:"listing_url"`
	ImageURL   *string   `json:"image_url"`
	CreatedAt  time.Time `json:"created_at"`
}

func toPropertyResponse(l *Listing) *propertyResponse {
	resp := &propertyResponse{
		ID:         l.ID,
		Address:    l.Address,
		Price:      l.Price,
		Bedrooms:   l.Bedrooms,
		Bathrooms:  l.Bathrooms,
		ListingURL: l.ListingURL,
		ImageURL:   l.PhotoURL,
		CreatedAt:  l.CreatedAt,
	}
	if l.Point != nil {
		resp.Latitude = l.Point.Lat
		resp.Longitude = l.Point.Lng
	}

	return resp
}

func abortWithMatchError(ctx *gin.Context, err error) {
	var matchErr *MatchError
	if errors.As(err, &matchErr) {
		ctx.JSON(HTTPStatus(matchErr), gin.H{"error": matchErr.Message})

		return
	}

	ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// resolveLocation picks the search point: explicit coordinates win, then the
// image's EXIF GPS block, then a geocoded address.
func (s *Server) resolveLocation(image []byte, latParam, lngParam, address string) (*spatial.Point, error) {
	if latParam != "" || lngParam != "" {
		if latParam == "" || lngParam == "" {
			return nil, NewError(ErrorTypeInvalidCoordinates, "latitude and longitude must be provided together")
		}

		lat, err := strconv.ParseFloat(latParam, 64)
		if err != nil {
			return nil, NewError(ErrorTypeInvalidCoordinates, "latitude is not a number")
		}

		lng, err := strconv.ParseFloat(lngParam, 64)
		if err != nil {
			return nil, NewError(ErrorTypeInvalidCoordinates, "longitude is not a number")
		}

		point := &spatial.Point{Lat: lat, Lng: lng}
		if !point.Valid() {
			return nil, NewError(ErrorTypeInvalidCoordinates, "coordinates out of range")
		}

		return point, nil
	}

	if point := ExtractLocation(bytes.NewReader(image)); point != nil {
		return point, nil
	}

	if address != "" && s.geocoder != nil {
		result, err := s.geocoder.Geocode(utils.LowerASCIIFolding(address))
		if err != nil {
			log.Printf("geocoding %q failed: %v", address, err)
		} else {
			point := &spatial.Point{Lat: result.Latitude, Lng: result.Longitude}
			if point.Valid() {
				return point, nil
			}
		}
	}

	return nil, NewError(ErrorTypeLocationRequired,
		"no location available: provide coordinates, an address, or an image with GPS metadata")
}

func (s *Server) analyzeHouse(ctx *gin.Context) {
	file, _, err := ctx.Request.FormFile("image")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})

		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "reading image upload"})

		return
	}

	if len(image) == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "image file is empty"})

		return
	}

	point, err := s.resolveLocation(image,
		ctx.PostForm("latitude"), ctx.PostForm("longitude"), ctx.PostForm("address"))
	if err != nil {
		abortWithMatchError(ctx, err)

		return
	}

	key, err := s.uploads.Save(bytes.NewReader(image))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "storing upload"})

		return
	}

	// The upload only needs to exist for the duration of the request; the
	// search log keeps the reference for auditing.
	defer func() {
		if err := s.uploads.Remove(key); err != nil {
			log.Printf("removing upload %s: %v", key, err)
		}
	}()

	result, err := s.selector.Match(ctx.Request.Context(), image, *point, key)
	if err != nil {
		abortWithMatchError(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"property":         toPropertyResponse(result.Listing),
		"confidence_score": result.Confidence,
		"distance_m":       result.DistanceM,
	})
}

func (s *Server) getProperty(ctx *gin.Context) {
	listing, err := s.repo.GetByID(ctx.Param("id"))
	if errors.Is(err, sql.ErrNoRows) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "property not found"})

		return
	}

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, toPropertyResponse(listing))
}

func (s *Server) health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
