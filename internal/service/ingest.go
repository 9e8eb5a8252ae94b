package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"stablecoin-watch/internal/storage"
)

// Cycler runs one ingestion cycle.
type Cycler interface {
	IngestCycle(ctx context.Context) (int, error)
}

// IngestJob guards an ingestion cycle with an optional advisory lock so overlapping
// invocations skip instead of writing the same instant twice.
type IngestJob struct {
	ingestor Cycler
	locker   storage.AdvisoryLocker
	lockKey  int64
	logger   zerolog.Logger
}

// NewIngestJob constructs the job. A nil locker or zero key disables locking.
func NewIngestJob(ingestor Cycler, locker storage.AdvisoryLocker, lockKey int64, logger zerolog.Logger) *IngestJob {
	return &IngestJob{
		ingestor: ingestor,
		locker:   locker,
		lockKey:  lockKey,
		logger:   logger.With().Str("component", "ingest_job").Logger(),
	}
}

// Run executes the cycle and reports how many records were stored.
func (j *IngestJob) Run(ctx context.Context) (int, error) {
	unlock, proceed, err := j.acquireLock(ctx)
	if err != nil {
		return 0, err
	}
	if !proceed {
		j.logger.Warn().Int64("lock_key", j.lockKey).Msg("skip ingestion because advisory lock held elsewhere")
		return 0, nil
	}
	if unlock != nil {
		defer unlock()
	}
	return j.ingestor.IngestCycle(ctx)
}

func (j *IngestJob) acquireLock(ctx context.Context) (func(), bool, error) {
	if j.lockKey == 0 || j.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := j.locker.TryAdvisoryLock(ctx, j.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
