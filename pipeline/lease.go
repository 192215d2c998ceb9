package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/vodarchiver/archiver/config"
	"github.com/vodarchiver/archiver/job"
	"github.com/vodarchiver/archiver/log"
	"github.com/vodarchiver/archiver/metrics"
)

// Clock lets tests replace the lease keeper's ticker with a mock, mirroring
// the teacher's package-level progress.Clock variable.
var Clock = clock.New()

// LeaseKeeper refreshes LeasedAtUtc on a job row every
// config.LeaseHeartbeatInterval for as long as the Dispatcher is driving
// it, per spec.md §4.4. It is advisory: a cooperative liveness signal, not
// a lock, and runs on its own store session so it never contends with the
// Dispatcher's stage writes.
type LeaseKeeper struct {
	store    job.Store
	vodID    string
	leasedBy string
	stage    job.Stage

	cancel context.CancelFunc
	done   chan struct{}
}

// Start begins heartbeating vodID's lease in the background and returns a
// handle whose Stop must be called when the Dispatcher finishes (or
// abandons) driving this job.
func Start(ctx context.Context, store job.Store, vodID, leasedBy string, stage job.Stage) *LeaseKeeper {
	ctx, cancel := context.WithCancel(ctx)
	k := &LeaseKeeper{
		store:    store,
		vodID:    vodID,
		leasedBy: leasedBy,
		stage:    stage,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go k.mainLoop(ctx)
	return k
}

// Stop halts the heartbeat loop and clears the lease. It blocks until the
// background goroutine has exited.
func (k *LeaseKeeper) Stop() {
	k.cancel()
	<-k.done

	clearCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := k.store.ClearLease(clearCtx, k.vodID); err != nil {
		log.LogError(k.vodID, "failed to clear lease", err)
	}
}

func (k *LeaseKeeper) mainLoop(ctx context.Context) {
	defer close(k.done)
	defer func() {
		if r := recover(); r != nil {
			log.LogError(k.vodID, fmt.Sprintf("panic in lease keeper: %v\n%s", r, debug.Stack()), errors.New("panic in lease keeper"))
		}
	}()

	if err := k.heartbeat(ctx); err != nil {
		log.LogError(k.vodID, "initial lease heartbeat failed", err)
	}

	ticker := Clock.Ticker(config.LeaseHeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := k.heartbeat(ctx); err != nil {
				log.LogError(k.vodID, "lease heartbeat failed", err)
			}
		}
	}
}

func (k *LeaseKeeper) heartbeat(ctx context.Context) error {
	err := k.store.Heartbeat(ctx, k.vodID, k.leasedBy)
	if err == nil {
		metrics.Metrics.LeaseHeartbeats.WithLabelValues(string(k.stage)).Inc()
	}
	return err
}
