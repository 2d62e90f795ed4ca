package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/discounthunter/backend/internal/domain"
)

const (
	defaultAdapterTimeout = 8 * time.Second
	defaultJobTimeout     = 45 * time.Second
	defaultMaxQueryLength = 120
	finalizeTimeout       = 5 * time.Second
)

// ScrapeServiceConfig holds configuration for the scrape service
type ScrapeServiceConfig struct {
	AdapterTimeout time.Duration
	JobTimeout     time.Duration
	MaxConcurrency int // 0 runs every adapter at once
	MaxQueryLength int
}

// ScrapeService starts scrape jobs and fans each one out to the enabled store adapters
type ScrapeService struct {
	jobs    domain.JobRepository
	catalog domain.StoreCatalog

	adapterTimeout time.Duration
	jobTimeout     time.Duration
	maxConcurrency int
	maxQueryLength int

	newID func() string

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex // guards closed and wg.Add
	closed bool
}

// NewScrapeService creates a new scrape service with dependencies
func NewScrapeService(
	jobs domain.JobRepository,
	catalog domain.StoreCatalog,
	config ScrapeServiceConfig,
) *ScrapeService {
	adapterTimeout := config.AdapterTimeout
	if adapterTimeout <= 0 {
		adapterTimeout = defaultAdapterTimeout
	}
	jobTimeout := config.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = defaultJobTimeout
	}
	maxQueryLength := config.MaxQueryLength
	if maxQueryLength <= 0 {
		maxQueryLength = defaultMaxQueryLength
	}

	baseCtx, cancel := context.WithCancel(context.Background())

	return &ScrapeService{
		jobs:           jobs,
		catalog:        catalog,
		adapterTimeout: adapterTimeout,
		jobTimeout:     jobTimeout,
		maxConcurrency: config.MaxConcurrency,
		maxQueryLength: maxQueryLength,
		newID:          uuid.NewString,
		baseCtx:        baseCtx,
		cancel:         cancel,
	}
}

// StartJob registers a pending job and returns its id without waiting for the stores.
// An invalid query still produces a job, already failed, and an error wrapping ErrInvalidQuery.
// A job with no stores to run is failed but is not an error for the caller.
// Once Shutdown has begun StartJob returns ErrShuttingDown.
func (s *ScrapeService) StartJob(ctx context.Context, request *domain.ScrapeRequest) (string, error) {
	if request == nil {
		return "", fmt.Errorf("%w: missing request", domain.ErrInvalidQuery)
	}

	if s.isClosed() {
		return "", domain.ErrShuttingDown
	}

	query := strings.TrimSpace(request.Query)
	jobID := s.newID()

	if _, err := s.jobs.Create(ctx, jobID, query); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	if reason := s.validateQuery(query); reason != "" {
		if err := s.jobs.SetStatus(ctx, jobID, domain.StatusFailed, reason); err != nil {
			return jobID, fmt.Errorf("fail job: %w", err)
		}
		log.Printf("[JOB %s] Rejected: %s", jobID, reason)
		return jobID, fmt.Errorf("%w: %s", domain.ErrInvalidQuery, reason)
	}

	adapters := s.catalog.Enabled(request.Stores)
	if len(adapters) == 0 {
		if err := s.jobs.SetStatus(ctx, jobID, domain.StatusFailed, domain.ErrNoStoresEnabled.Error()); err != nil {
			return jobID, fmt.Errorf("fail job: %w", err)
		}
		log.Printf("[JOB %s] Failed: %v", jobID, domain.ErrNoStoresEnabled)
		return jobID, nil
	}

	log.Printf("[JOB %s] Starting scrape for %q across %d stores", jobID, query, len(adapters))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if err := s.jobs.SetStatus(ctx, jobID, domain.StatusFailed, domain.ErrShuttingDown.Error()); err != nil {
			log.Printf("[JOB %s] cannot fail job: %v", jobID, err)
		}
		return jobID, domain.ErrShuttingDown
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(jobID, query, adapters)

	return jobID, nil
}

func (s *ScrapeService) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// GetJob returns the current job snapshot with ranking recomputed on every read
func (s *ScrapeService) GetJob(ctx context.Context, jobID string) (*domain.JobView, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &domain.JobView{
		Job:    job,
		Ranked: Rank(job.Quotes),
		Stats:  ComputeStats(job.Quotes),
	}, nil
}

// Shutdown stops new jobs, cancels in-flight ones and waits until each has been
// finalized or ctx expires
func (s *ScrapeService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ScrapeService) validateQuery(query string) string {
	if query == "" {
		return "query must not be blank"
	}
	if n := utf8.RuneCountInString(query); n > s.maxQueryLength {
		return fmt.Sprintf("query is %d characters, maximum is %d", n, s.maxQueryLength)
	}
	return ""
}

// run executes one job: every adapter concurrently, bounded by the job deadline.
// Whatever was collected when all adapters settle or the deadline fires is final.
func (s *ScrapeService) run(jobID, query string, adapters []domain.StoreAdapter) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(s.baseCtx, s.jobTimeout)
	defer cancel()

	if err := s.jobs.SetStatus(ctx, jobID, domain.StatusRunning, ""); err != nil {
		log.Printf("[JOB %s] ERROR: cannot start: %v", jobID, err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.maxConcurrency > 0 {
		g.SetLimit(s.maxConcurrency)
	}

	settled := make(chan struct{})
	go func() {
		for _, adapter := range adapters {
			adapter := adapter // per-iteration copy (go directive < 1.22)
			g.Go(func() error {
				s.settle(gctx, jobID, query, adapter)
				return nil
			})
		}
		_ = g.Wait()
		close(settled)
	}()

	select {
	case <-settled:
	case <-ctx.Done():
		log.Printf("[JOB %s] Deadline reached (%v), finalizing with partial results", jobID, ctx.Err())
	}

	// ctx may already be expired; finalization gets its own budget
	fctx, fcancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer fcancel()

	if err := s.jobs.SetStatus(fctx, jobID, domain.StatusCompleted, ""); err != nil {
		log.Printf("[JOB %s] ERROR: cannot complete: %v", jobID, err)
		return
	}

	if job, err := s.jobs.Get(fctx, jobID); err == nil {
		log.Printf("[JOB %s] Completed with %d quotes, %d store failures", jobID, len(job.Quotes), len(job.Failures))
	}
}

// settle runs one adapter under its own deadline and records the outcome
func (s *ScrapeService) settle(ctx context.Context, jobID, query string, adapter domain.StoreAdapter) {
	actx, cancel := context.WithTimeout(ctx, s.adapterTimeout)
	defer cancel()

	started := time.Now()
	quote, err := fetchTimeboxed(actx, adapter, query)

	// the job deadline fired while this adapter was in flight; its result is excluded
	if ctx.Err() != nil {
		log.Printf("[JOB %s] %s settled after job deadline, dropping result", jobID, adapter.Name())
		return
	}

	switch {
	case err == nil:
		q := quote.Normalize()
		q.StoreID = adapter.ID()
		q.ID = adapter.ID()
		if q.Store == "" {
			q.Store = adapter.Name()
		}
		if err := s.jobs.AppendQuote(ctx, jobID, q); err != nil {
			log.Printf("[JOB %s] %s quote rejected: %v", jobID, adapter.Name(), err)
			return
		}
		log.Printf("[JOB %s] %s quoted %.2f %s in %s", jobID, adapter.Name(), q.Price, q.Currency, time.Since(started).Round(time.Millisecond))

	case errors.Is(err, domain.ErrQuoteNotFound):
		log.Printf("[JOB %s] %s has no match for %q", jobID, adapter.Name(), query)

	default:
		adapterErr := domain.ClassifyAdapterError(adapter.Name(), err)
		failure := domain.StoreFailure{
			StoreID: adapter.ID(),
			Store:   adapter.Name(),
			Kind:    adapterErr.Kind,
			Message: adapterErr.Error(),
		}
		if err := s.jobs.RecordFailure(ctx, jobID, failure); err != nil {
			log.Printf("[JOB %s] cannot record %s failure: %v", jobID, adapter.Name(), err)
		}
		log.Printf("[JOB %s] %s failed (%s): %v", jobID, adapter.Name(), adapterErr.Kind, err)
	}
}

type fetchOutcome struct {
	quote *domain.Quote
	err   error
}

// fetchTimeboxed guarantees the call returns by ctx's deadline even if the adapter ignores ctx
func fetchTimeboxed(ctx context.Context, adapter domain.StoreAdapter, query string) (*domain.Quote, error) {
	out := make(chan fetchOutcome, 1)
	go func() {
		quote, err := adapter.FetchQuote(ctx, query)
		out <- fetchOutcome{quote: quote, err: err}
	}()

	select {
	case o := <-out:
		if o.err == nil && o.quote == nil {
			return nil, domain.ErrQuoteNotFound
		}
		return o.quote, o.err
	case <-ctx.Done():
		kind := domain.AdapterTimeout
		if errors.Is(ctx.Err(), context.Canceled) {
			kind = domain.AdapterCanceled
		}
		return nil, domain.NewAdapterError(adapter.Name(), kind, ctx.Err())
	}
}
