package jobstore

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/discounthunter/backend/internal/domain"
)

func testQuote(storeID string, price float64) domain.Quote {
	return domain.Quote{ID: storeID, StoreID: storeID, Store: storeID, Price: price, Currency: "EUR"}
}

func TestMemoryStore_Create(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	job, err := store.Create(ctx, "job-1", "milk")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, job.Status)
	assert.Equal(t, "milk", job.Query)
	assert.Empty(t, job.Quotes)
	assert.False(t, job.CreatedAt.IsZero())

	t.Run("same id and query is idempotent", func(t *testing.T) {
		again, err := store.Create(ctx, "job-1", "milk")
		require.NoError(t, err)
		assert.Equal(t, job.CreatedAt, again.CreatedAt)
		assert.Equal(t, 1, store.Size())
	})

	t.Run("same id with another query conflicts", func(t *testing.T) {
		_, err := store.Create(ctx, "job-1", "bread")
		assert.ErrorIs(t, err, domain.ErrJobConflict)
	})
}

func TestMemoryStore_Get_NotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestMemoryStore_AppendQuote(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_, err := store.Create(ctx, "job-1", "milk")
	require.NoError(t, err)

	require.NoError(t, store.AppendQuote(ctx, "job-1", testQuote("rimi", 1.29)))
	require.NoError(t, store.AppendQuote(ctx, "job-1", testQuote("lidl", 1.19)))

	job, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, job.Quotes, 2)
	assert.Equal(t, "rimi", job.Quotes[0].StoreID)
	assert.Equal(t, "lidl", job.Quotes[1].StoreID)

	t.Run("rejects duplicate store", func(t *testing.T) {
		err := store.AppendQuote(ctx, "job-1", testQuote("rimi", 0.99))
		assert.ErrorIs(t, err, domain.ErrDuplicateQuote)
	})

	t.Run("rejects invalid quote", func(t *testing.T) {
		err := store.AppendQuote(ctx, "job-1", testQuote("iki", -1))
		assert.ErrorIs(t, err, domain.ErrInvalidQuote)
	})

	t.Run("rejects non-finite price", func(t *testing.T) {
		err := store.AppendQuote(ctx, "job-1", testQuote("aibe", math.NaN()))
		assert.ErrorIs(t, err, domain.ErrInvalidQuote)

		job, err := store.Get(ctx, "job-1")
		require.NoError(t, err)
		assert.Len(t, job.Quotes, 2)
	})

	t.Run("rejects unknown job", func(t *testing.T) {
		err := store.AppendQuote(ctx, "nope", testQuote("iki", 1))
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
	})

	t.Run("snapshots are not aliased", func(t *testing.T) {
		snap, err := store.Get(ctx, "job-1")
		require.NoError(t, err)
		snap.Quotes[0].Price = 100

		fresh, err := store.Get(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, 1.29, fresh.Quotes[0].Price)
	})
}

func TestMemoryStore_SetStatus(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_, err := store.Create(ctx, "job-1", "milk")
	require.NoError(t, err)

	err = store.SetStatus(ctx, "job-1", domain.StatusCompleted, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "pending cannot complete without running")

	require.NoError(t, store.SetStatus(ctx, "job-1", domain.StatusRunning, ""))
	job, _ := store.Get(ctx, "job-1")
	assert.Equal(t, domain.StatusRunning, job.Status)
	assert.NotNil(t, job.StartedAt)
	assert.Nil(t, job.CompletedAt)

	require.NoError(t, store.SetStatus(ctx, "job-1", domain.StatusCompleted, ""))
	job, _ = store.Get(ctx, "job-1")
	assert.Equal(t, domain.StatusCompleted, job.Status)
	assert.NotNil(t, job.CompletedAt)

	t.Run("terminal job never regresses", func(t *testing.T) {
		for _, status := range []domain.JobStatus{domain.StatusPending, domain.StatusRunning, domain.StatusFailed} {
			err := store.SetStatus(ctx, "job-1", status, "")
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		}
	})

	t.Run("terminal job rejects quotes and failures", func(t *testing.T) {
		err := store.AppendQuote(ctx, "job-1", testQuote("rimi", 1))
		assert.ErrorIs(t, err, domain.ErrJobFinalized)

		err = store.RecordFailure(ctx, "job-1", domain.StoreFailure{StoreID: "rimi", Kind: domain.AdapterTimeout})
		assert.ErrorIs(t, err, domain.ErrJobFinalized)
	})
}

func TestMemoryStore_FailedKeepsReason(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_, err := store.Create(ctx, "job-1", "")
	require.NoError(t, err)

	require.NoError(t, store.SetStatus(ctx, "job-1", domain.StatusFailed, "query must not be blank"))

	job, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, job.Status)
	assert.Equal(t, "query must not be blank", job.Error)
	assert.Nil(t, job.StartedAt)
}

func TestMemoryStore_ConcurrentAppends(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_, err := store.Create(ctx, "job-1", "milk")
	require.NoError(t, err)
	require.NoError(t, store.SetStatus(ctx, "job-1", domain.StatusRunning, ""))

	const writers = 64
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			storeID := fmt.Sprintf("store-%d", id)
			if err := store.AppendQuote(ctx, "job-1", testQuote(storeID, float64(id))); err != nil {
				t.Errorf("AppendQuote(%s) error = %v", storeID, err)
			}
			if _, err := store.Get(ctx, "job-1"); err != nil {
				t.Errorf("Get() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	job, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Len(t, job.Quotes, writers)

	seen := make(map[string]bool)
	for _, q := range job.Quotes {
		assert.False(t, seen[q.StoreID], "duplicate quote for %s", q.StoreID)
		seen[q.StoreID] = true
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"done", "failed", "running"} {
		_, err := store.Create(ctx, id, "milk")
		require.NoError(t, err)
	}
	require.NoError(t, store.SetStatus(ctx, "done", domain.StatusRunning, ""))
	require.NoError(t, store.SetStatus(ctx, "done", domain.StatusCompleted, ""))
	require.NoError(t, store.SetStatus(ctx, "failed", domain.StatusFailed, "boom"))
	require.NoError(t, store.SetStatus(ctx, "running", domain.StatusRunning, ""))

	removed, err := store.Sweep(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, removed, "nothing is older than an hour")

	removed, err = store.Sweep(ctx, time.Now().UTC().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, store.Size())

	_, err = store.Get(ctx, "running")
	assert.NoError(t, err)
}

func TestRunJanitor(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := store.Create(ctx, "job-1", "milk")
	require.NoError(t, err)
	require.NoError(t, store.SetStatus(ctx, "job-1", domain.StatusFailed, "no stores enabled"))

	done := make(chan struct{})
	go func() {
		RunJanitor(ctx, store, time.Nanosecond, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return store.Size() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
}

func TestRunJanitor_DisabledReturnsImmediately(t *testing.T) {
	done := make(chan struct{})
	go func() {
		RunJanitor(context.Background(), NewMemoryStore(), 0, time.Second)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor with zero retention should return")
	}
}
