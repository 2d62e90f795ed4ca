package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/discounthunter/backend/internal/domain"
)

// JobStore is a domain.JobRepository backed by Postgres.
// Every mutation holds an exclusive lock on the job row, so quotes commit in seq
// order and none can land after the job is finalized.
type JobStore struct {
	db *DB
}

func NewJobStore(db *DB) *JobStore {
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, id, query string) (*domain.Job, error) {
	if _, err := s.db.Pool.Exec(ctx, `
		INSERT INTO scrape_jobs (id, query, status, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO NOTHING
	`, id, query, string(domain.StatusPending)); err != nil {
		return nil, err
	}

	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Query != query {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobConflict, id)
	}
	return job, nil
}

// Get reads the job and its quotes from a single snapshot
func (s *JobStore) Get(ctx context.Context, id string) (job *domain.Job, err error) {
	tx, err := s.db.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	job = &domain.Job{ID: id, Quotes: []domain.Quote{}}
	var status string
	err = tx.QueryRow(ctx, `
		SELECT query, status, error, created_at, started_at, completed_at
		FROM scrape_jobs WHERE id = $1
	`, id).Scan(&job.Query, &status, &job.Error, &job.CreatedAt, &job.StartedAt, &job.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)

	rows, err := tx.Query(ctx, `
		SELECT store_id, store, price, currency, original_price, discount_percent, product_url, last_updated
		FROM scrape_quotes WHERE job_id = $1 ORDER BY seq
	`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var q domain.Quote
		if err = rows.Scan(&q.StoreID, &q.Store, &q.Price, &q.Currency, &q.OriginalPrice, &q.DiscountPercent, &q.ProductURL, &q.LastUpdated); err != nil {
			rows.Close()
			return nil, err
		}
		q.ID = q.StoreID
		job.Quotes = append(job.Quotes, q)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}

	rows, err = tx.Query(ctx, `
		SELECT store_id, store, kind, message
		FROM scrape_failures WHERE job_id = $1 ORDER BY seq
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var f domain.StoreFailure
		var kind string
		if err = rows.Scan(&f.StoreID, &f.Store, &kind, &f.Message); err != nil {
			return nil, err
		}
		f.Kind = domain.AdapterErrorKind(kind)
		job.Failures = append(job.Failures, f)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return job, nil
}

func (s *JobStore) AppendQuote(ctx context.Context, id string, quote domain.Quote) error {
	if err := quote.Validate(); err != nil {
		return err
	}
	return s.withJobLock(ctx, id, "FOR UPDATE", func(tx pgx.Tx, status domain.JobStatus) error {
		if status.IsTerminal() {
			return fmt.Errorf("%w: %s is %s", domain.ErrJobFinalized, id, status)
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO scrape_quotes (job_id, store_id, store, price, currency, original_price, discount_percent, product_url, last_updated)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (job_id, store_id) DO NOTHING
		`, id, quote.StoreID, quote.Store, quote.Price, quote.Currency, quote.OriginalPrice, quote.DiscountPercent, quote.ProductURL, quote.LastUpdated)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateQuote, quote.StoreID)
		}
		return nil
	})
}

func (s *JobStore) RecordFailure(ctx context.Context, id string, failure domain.StoreFailure) error {
	return s.withJobLock(ctx, id, "FOR UPDATE", func(tx pgx.Tx, status domain.JobStatus) error {
		if status.IsTerminal() {
			return fmt.Errorf("%w: %s is %s", domain.ErrJobFinalized, id, status)
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO scrape_failures (job_id, store_id, store, kind, message)
			VALUES ($1, $2, $3, $4, $5)
		`, id, failure.StoreID, failure.Store, string(failure.Kind), failure.Message)
		return err
	})
}

func (s *JobStore) SetStatus(ctx context.Context, id string, status domain.JobStatus, errMsg string) error {
	return s.withJobLock(ctx, id, "FOR UPDATE", func(tx pgx.Tx, current domain.JobStatus) error {
		if !current.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current, status)
		}
		var err error
		switch status {
		case domain.StatusRunning:
			_, err = tx.Exec(ctx, `UPDATE scrape_jobs SET status = $2, started_at = now() WHERE id = $1`, id, string(status))
		default:
			_, err = tx.Exec(ctx, `UPDATE scrape_jobs SET status = $2, error = $3, completed_at = now() WHERE id = $1`, id, string(status), errMsg)
		}
		return err
	})
}

func (s *JobStore) Sweep(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.db.Pool.Exec(ctx, `
		DELETE FROM scrape_jobs
		WHERE status IN ('completed', 'failed') AND completed_at < $1
	`, before)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// withJobLock runs fn in a transaction holding a row lock on the job
func (s *JobStore) withJobLock(ctx context.Context, id, lock string, fn func(tx pgx.Tx, status domain.JobStatus) error) (err error) {
	tx, err := s.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM scrape_jobs WHERE id = $1 `+lock, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	if err != nil {
		return err
	}

	return fn(tx, domain.JobStatus(status))
}
