// Copyright 2026 The HouseFinder Authors
// SPDX-License-Identifier: Apache-2.0

package match

import (
	"errors"
	"fmt"
	"net/http"
)

// MatchError represents failures of the photo-matching pipeline.
type MatchError struct {
	Type    ErrorType
	Message string
	Err     error
}

// ErrorType classifies pipeline failures.
type ErrorType int

const (
	// ErrorTypeUnknown unclassified failure.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeInvalidCoordinates latitude/longitude out of bounds.
	ErrorTypeInvalidCoordinates
	// ErrorTypeLocationRequired no explicit coordinates, no EXIF GPS, no address.
	ErrorTypeLocationRequired
	// ErrorTypeImageDecode the image bytes could not be decoded.
	ErrorTypeImageDecode
	// ErrorTypeModelInference the embedding model failed.
	ErrorTypeModelInference
	// ErrorTypeDimensionMismatch two vectors of different dimensionality were compared.
	ErrorTypeDimensionMismatch
	// ErrorTypeNoMatch no candidate produced a score.
	ErrorTypeNoMatch
	// ErrorTypeUpstreamFetch the external listing source failed.
	ErrorTypeUpstreamFetch
	// ErrorTypeStorage the spatial store failed.
	ErrorTypeStorage
)

func (e *MatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *MatchError) Unwrap() error {
	return e.Err
}

// NewError creates a MatchError without an underlying cause.
func NewError(t ErrorType, message string) *MatchError {
	return &MatchError{Type: t, Message: message}
}

// WrapError creates a MatchError wrapping an underlying cause.
func WrapError(t ErrorType, message string, err error) *MatchError {
	return &MatchError{Type: t, Message: message, Err: err}
}

// TypeOf returns the classification of err, ErrorTypeUnknown when it isn't a
// MatchError.
func TypeOf(err error) ErrorType {
	var matchErr *MatchError
	if errors.As(err, &matchErr) {
		return matchErr.Type
	}

	return ErrorTypeUnknown
}

// IsNoMatch verifies whether the error means no candidate matched.
func IsNoMatch(err error) bool {
	return TypeOf(err) == ErrorTypeNoMatch
}

// IsClientError verifies whether the error was caused by bad request input.
func IsClientError(err error) bool {
	t := TypeOf(err)

	return t == ErrorTypeInvalidCoordinates || t == ErrorTypeLocationRequired
}

// HTTPStatus maps a pipeline error to the status code it should surface as.
// Validation problems are the client's fault, a no-match is a not-found
// condition, everything else is opaque to the caller.
func HTTPStatus(err error) int {
	switch TypeOf(err) {
	case ErrorTypeInvalidCoordinates, ErrorTypeLocationRequired:
		return http.StatusBadRequest
	case ErrorTypeNoMatch:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
