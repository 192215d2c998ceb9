package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vodarchiver/archiver/job"
	"github.com/vodarchiver/archiver/log"
	"github.com/vodarchiver/archiver/metrics"
	"github.com/vodarchiver/archiver/xerrors"
)

// FailurePolicy classifies a worker error as permanent or retryable and
// records it on the job, per spec.md §4.6. It is grounded on the teacher's
// errors.IsUnretriable check and finishJob's independent-context save: a
// cancelled root context must not prevent recording the failure.
type FailurePolicy struct {
	Store job.Store
}

// maxConsecutiveFailuresDefault is the FailCount threshold at which a
// retryable failure marks the job permanently failed; it holds the same
// value as config.MaxConsecutiveFailures.
const maxConsecutiveFailuresDefault = 3

// Handle records err against vodID's job at the given stage. A workerErr
// that wraps context.Canceled is re-raised unchanged (spec.md §4.6: shutdown
// is not a failure); ctx is not used for persistence, which always happens
// on a fresh background context so it survives a cancelled root.
func (p *FailurePolicy) Handle(ctx context.Context, vodID string, stage job.Stage, workerErr error) error {
	if errors.Is(workerErr, context.Canceled) {
		return workerErr
	}

	description := fmt.Sprintf("Failed at stage '%s': %s", stage, workerErr.Error())

	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.Store.SetDescription(saveCtx, vodID, description); err != nil {
		log.LogError(vodID, "failed to persist failure description", err)
	}
	count, err := p.Store.IncrementFailCount(saveCtx, vodID, description)
	if err != nil {
		log.LogError(vodID, "failed to increment fail count", err)
		return workerErr
	}

	if xerrors.IsPermanent(workerErr) {
		log.LogError(vodID, "permanent worker failure", workerErr, "stage", string(stage))
		if err := p.Store.MarkFailed(saveCtx, vodID, description); err != nil {
			log.LogError(vodID, "failed to mark job permanently failed", err)
		}
		metrics.Metrics.JobsFailedPermanent.Inc()
		return workerErr
	}

	metrics.Metrics.StageFailures.WithLabelValues(string(stage)).Inc()

	if count >= maxConsecutiveFailuresDefault {
		if err := p.Store.MarkFailed(saveCtx, vodID, description); err != nil {
			log.LogError(vodID, "failed to mark job permanently failed after threshold", err)
		}
		metrics.Metrics.JobsFailedPermanent.Inc()
	}

	return workerErr
}
