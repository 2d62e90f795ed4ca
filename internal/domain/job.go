package domain

import "time"

// JobStatus is the lifecycle state of a scrape job
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status
func (s JobStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransitionTo enforces pending -> running -> {completed|failed} and pending -> failed.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusFailed
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Job is one scrape request's lifecycle record
type Job struct {
	ID          string         `json:"id"`
	Query       string         `json:"query"`
	Status      JobStatus      `json:"status"`
	Quotes      []Quote        `json:"quotes"` // arrival order
	Failures    []StoreFailure `json:"failures,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

// Clone returns a deep copy so snapshots can be handed out safely
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	out.Quotes = make([]Quote, len(j.Quotes))
	copy(out.Quotes, j.Quotes)
	out.Failures = append([]StoreFailure(nil), j.Failures...)
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// HasQuoteFrom reports whether the job already holds a quote for the store id
func (j *Job) HasQuoteFrom(storeID string) bool {
	for _, q := range j.Quotes {
		if q.StoreID == storeID {
			return true
		}
	}
	return false
}

// StoreFailure records an adapter error on a job
type StoreFailure struct {
	StoreID string           `json:"storeId"`
	Store   string           `json:"store"`
	Kind    AdapterErrorKind `json:"kind"`
	Message string           `json:"message"`
}

// ScrapeRequest is the input to start a scrape job
type ScrapeRequest struct {
	Query  string   `json:"query"`
	Stores []string `json:"stores,omitempty"` // optional subset of enabled store ids
}

// JobView is a job snapshot with derived ranking, returned on every read
type JobView struct {
	Job    *Job
	Ranked []RankedQuote
	Stats  PriceStats
}
