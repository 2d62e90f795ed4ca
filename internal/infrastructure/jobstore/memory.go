package jobstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/discounthunter/backend/internal/domain"
)

// entry holds one job. Writers serialise on mu and publish a fresh snapshot;
// readers only load the pointer and never wait on a writer.
type entry struct {
	mu   sync.Mutex
	snap atomic.Pointer[domain.Job]
}

// MemoryStore is a thread-safe in-memory JobRepository
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*entry
	now  func() time.Time
}

// NewMemoryStore creates an empty in-memory job store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*entry),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a pending job
func (s *MemoryStore) Create(ctx context.Context, id, query string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[id]; ok {
		job := existing.snap.Load()
		if job.Query != query {
			return nil, fmt.Errorf("%w: %s", domain.ErrJobConflict, id)
		}
		return job.Clone(), nil
	}

	job := &domain.Job{
		ID:        id,
		Query:     query,
		Status:    domain.StatusPending,
		Quotes:    []domain.Quote{},
		CreatedAt: s.now(),
	}
	e := &entry{}
	e.snap.Store(job)
	s.jobs[id] = e

	return job.Clone(), nil
}

// Get returns the latest committed snapshot of the job
func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	return e.snap.Load().Clone(), nil
}

// AppendQuote adds a quote in arrival order
func (s *MemoryStore) AppendQuote(ctx context.Context, id string, quote domain.Quote) error {
	if err := quote.Validate(); err != nil {
		return err
	}
	return s.update(id, func(job *domain.Job) error {
		if job.Status.IsTerminal() {
			return fmt.Errorf("%w: %s is %s", domain.ErrJobFinalized, id, job.Status)
		}
		if job.HasQuoteFrom(quote.StoreID) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateQuote, quote.StoreID)
		}
		job.Quotes = append(job.Quotes, quote)
		return nil
	})
}

// RecordFailure stores an adapter error on the job
func (s *MemoryStore) RecordFailure(ctx context.Context, id string, failure domain.StoreFailure) error {
	return s.update(id, func(job *domain.Job) error {
		if job.Status.IsTerminal() {
			return fmt.Errorf("%w: %s is %s", domain.ErrJobFinalized, id, job.Status)
		}
		job.Failures = append(job.Failures, failure)
		return nil
	})
}

// SetStatus moves the job forward in its lifecycle
func (s *MemoryStore) SetStatus(ctx context.Context, id string, status domain.JobStatus, errMsg string) error {
	return s.update(id, func(job *domain.Job) error {
		if !job.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, job.Status, status)
		}
		now := s.now()
		job.Status = status
		switch status {
		case domain.StatusRunning:
			job.StartedAt = &now
		case domain.StatusCompleted, domain.StatusFailed:
			job.CompletedAt = &now
			job.Error = errMsg
		}
		return nil
	})
}

// Sweep removes terminal jobs that completed before the cutoff
func (s *MemoryStore) Sweep(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.jobs {
		job := e.snap.Load()
		if job.Status.IsTerminal() && job.CompletedAt != nil && job.CompletedAt.Before(before) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed, nil
}

// Size returns the number of tracked jobs (for debugging/monitoring)
func (s *MemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

func (s *MemoryStore) entry(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	return e, nil
}

// update applies fn to a private copy and publishes it only when fn succeeds
func (s *MemoryStore) update(id string, fn func(job *domain.Job) error) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.snap.Load().Clone()
	if err := fn(next); err != nil {
		return err
	}
	e.snap.Store(next)
	return nil
}
