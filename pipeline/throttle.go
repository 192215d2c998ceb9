package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/vodarchiver/archiver/job"
	"github.com/vodarchiver/archiver/log"
	"github.com/vodarchiver/archiver/metrics"
)

// Throttle rate-limits persistence of a worker's status stream into
// Description, per spec.md §4.5: at most one persisted update per
// config.ProgressThrottleInterval. A failed persist is swallowed, since
// progress display is soft state — grounded on the teacher's
// progress.ProgressReporter.reportOnce, simplified from its bucket-based
// scaling to the spec's flat interval rule.
type Throttle struct {
	store job.Store
	stage job.Stage
	vodID string

	interval time.Duration

	mu         sync.Mutex
	lastReport time.Time
}

// NewThrottle builds a Throttle for one stage's drive of vodID.
func NewThrottle(store job.Store, vodID string, stage job.Stage, interval time.Duration) *Throttle {
	return &Throttle{store: store, vodID: vodID, stage: stage, interval: interval}
}

// Report is called once per status string the worker emits. It persists
// the message as the job's Description if enough time has elapsed since
// the last persisted update.
func (t *Throttle) Report(ctx context.Context, message string) {
	metrics.Metrics.ProgressUpdatesEmitted.WithLabelValues(string(t.stage)).Inc()

	t.mu.Lock()
	now := Clock.Now()
	elapsed := now.Sub(t.lastReport)
	if t.lastReport.IsZero() {
		elapsed = t.interval
	}
	if elapsed < t.interval {
		t.mu.Unlock()
		return
	}
	t.lastReport = now
	t.mu.Unlock()

	if err := t.store.SetDescription(ctx, t.vodID, message); err != nil {
		log.LogError(t.vodID, "failed to persist progress description, continuing", err)
		return
	}
	metrics.Metrics.ProgressUpdatesPersisted.WithLabelValues(string(t.stage)).Inc()
}
