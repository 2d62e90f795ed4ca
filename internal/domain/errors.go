package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery is returned when a scrape query is blank or too long
	ErrInvalidQuery = errors.New("invalid scrape query")

	// ErrJobNotFound is returned when no job exists for the given id
	ErrJobNotFound = errors.New("job not found")

	// ErrJobConflict is returned when a job id is reused for a different query
	ErrJobConflict = errors.New("job already exists with a different query")

	// ErrJobFinalized is returned when a terminal job is mutated
	ErrJobFinalized = errors.New("job already finalized")

	// ErrInvalidTransition is returned when a status change would regress a job
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrDuplicateQuote is returned when a store already has a quote in the job
	ErrDuplicateQuote = errors.New("store already quoted for job")

	// ErrInvalidQuote is returned when a quote fails validation
	ErrInvalidQuote = errors.New("invalid quote")

	// ErrQuoteNotFound is returned by adapters when the product is absent at the store.
	// It is a normal outcome and never fails a job.
	ErrQuoteNotFound = errors.New("product not found at store")

	// ErrNoStoresEnabled is returned when a job has no adapters to run
	ErrNoStoresEnabled = errors.New("no stores enabled")

	// ErrStoreNotFound is returned when a store id is not registered
	ErrStoreNotFound = errors.New("store not found")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrOCRFailure is returned when the OCR provider request fails
	ErrOCRFailure = errors.New("OCR provider request failed")

	// ErrInvalidImage is returned when an OCR upload is missing or empty
	ErrInvalidImage = errors.New("invalid image upload")

	// ErrShuttingDown is returned when a job is started after shutdown began
	ErrShuttingDown = errors.New("scrape service shutting down")
)

// AdapterErrorKind classifies why a store adapter failed.
type AdapterErrorKind string

const (
	AdapterTimeout  AdapterErrorKind = "timeout"
	AdapterCanceled AdapterErrorKind = "canceled"
	AdapterNetwork  AdapterErrorKind = "network"
	AdapterUpstream AdapterErrorKind = "upstream"
	AdapterParse    AdapterErrorKind = "parse"
)

// AdapterError is a per-store failure. It is recorded on the job but never fails it.
type AdapterError struct {
	Store string
	Kind  AdapterErrorKind
	Err   error
}

func (e *AdapterError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Store, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Store, e.Kind, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// NewAdapterError builds an AdapterError for the given store.
func NewAdapterError(store string, kind AdapterErrorKind, err error) *AdapterError {
	return &AdapterError{Store: store, Kind: kind, Err: err}
}

// ClassifyAdapterError converts an arbitrary adapter error into an AdapterError.
// Errors that already carry a kind keep it; context errors map to timeout or canceled.
func ClassifyAdapterError(store string, err error) *AdapterError {
	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) {
		if adapterErr.Store == "" {
			adapterErr.Store = store
		}
		return adapterErr
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewAdapterError(store, AdapterTimeout, err)
	case errors.Is(err, context.Canceled):
		return NewAdapterError(store, AdapterCanceled, err)
	default:
		return NewAdapterError(store, AdapterNetwork, err)
	}
}
