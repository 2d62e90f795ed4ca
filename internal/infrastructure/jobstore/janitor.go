package jobstore

import (
	"context"
	"log"
	"time"

	"github.com/discounthunter/backend/internal/domain"
)

// RunJanitor periodically deletes terminal jobs older than retention until ctx is done.
// A zero retention or interval disables it.
func RunJanitor(ctx context.Context, repo domain.JobRepository, retention, interval time.Duration) {
	if retention <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := repo.Sweep(ctx, time.Now().UTC().Add(-retention))
			if err != nil {
				log.Printf("[JANITOR] Sweep error: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("[JANITOR] Removed %d expired jobs", removed)
			}
		}
	}
}
