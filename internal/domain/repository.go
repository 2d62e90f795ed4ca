package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// JobRepository owns every job once created. All mutation goes through it.
type JobRepository interface {
	// Create registers a pending job. Creating the same id with the same query is a no-op.
	Create(ctx context.Context, id, query string) (*Job, error)
	// Get returns the latest committed snapshot.
	Get(ctx context.Context, id string) (*Job, error)
	// AppendQuote adds a quote in arrival order. Rejected once the job is terminal.
	AppendQuote(ctx context.Context, id string, quote Quote) error
	// RecordFailure stores an adapter error. Rejected once the job is terminal.
	RecordFailure(ctx context.Context, id string, failure StoreFailure) error
	// SetStatus moves the job forward; regressions return ErrInvalidTransition.
	SetStatus(ctx context.Context, id string, status JobStatus, errMsg string) error
	// Sweep deletes terminal jobs completed before the cutoff and returns how many were removed.
	Sweep(ctx context.Context, before time.Time) (int, error)
}

// StoreAdapter is a per-retailer integration. FetchQuote must honour ctx cancellation
// and return ErrQuoteNotFound when the store does not carry the product.
type StoreAdapter interface {
	ID() string
	Name() string
	FetchQuote(ctx context.Context, query string) (*Quote, error)
}

// StoreInfo describes a registered store and its preference
type StoreInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Enabled bool   `json:"enabled"`
}

// StoreCatalog resolves which adapters a job runs
type StoreCatalog interface {
	// Enabled returns enabled adapters in registration order, narrowed to ids when non-empty.
	Enabled(ids []string) []StoreAdapter
	List() []StoreInfo
	SetEnabled(id string, enabled bool) (StoreInfo, error)
}

// OCRClient turns an image into recognised text
type OCRClient interface {
	Recognize(ctx context.Context, filename string, image []byte) (string, error)
}
