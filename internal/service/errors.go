package service

import (
	"errors"
	"fmt"

	"github.com/emrgen/impact/internal/store"
)

var (
	// ErrUnauthorized is returned when a required bearer token is missing or invalid.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidInput is returned for missing required fields or bad literals.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when an article, impact, evidence or history entry is absent.
	ErrNotFound = errors.New("not found")
	// ErrUpstreamFailure is returned when extraction fails or returns unusable output.
	ErrUpstreamFailure = errors.New("upstream failure")
	// ErrConflict is returned when an idempotency key is held by a running analysis.
	ErrConflict = errors.New("conflict")
	// ErrStorageFailure is returned when the database rejects an operation.
	ErrStorageFailure = errors.New("storage failure")
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// storageErr classifies a store error, keeping the original in the chain.
func storageErr(err error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageFailure, msg, err)
}
