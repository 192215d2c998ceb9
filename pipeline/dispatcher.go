package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/vodarchiver/archiver/cache"
	"github.com/vodarchiver/archiver/config"
	"github.com/vodarchiver/archiver/job"
	"github.com/vodarchiver/archiver/log"
	"github.com/vodarchiver/archiver/metrics"
)

// Workers maps each active Stage to the worker that drives it, per
// spec.md §4.3's five concrete workers.
type Workers map[job.Stage]Worker

// Dispatcher is the single long-lived loop described in spec.md §4.2: it
// selects the highest-priority eligible job and drives it stage by stage
// to completion or failure. Only one Dispatcher runs per process
// (spec.md §5), so its writes never race another Dispatcher's.
type Dispatcher struct {
	Store   job.Store
	Workers Workers
	ID      string

	failurePolicy *FailurePolicy
	inFlight      *cache.Cache[*job.Job]
}

// NewDispatcher wires a Dispatcher against store, the five stage workers,
// and an identifier recorded as LeasedBy on jobs it drives.
func NewDispatcher(store job.Store, workers Workers, id string) *Dispatcher {
	return &Dispatcher{
		Store:         store,
		Workers:       workers,
		ID:            id,
		failurePolicy: &FailurePolicy{Store: store},
		inFlight:      cache.New[*job.Job](),
	}
}

// InFlight returns the VodId of the job currently being driven, or "" if
// the dispatcher is idle. Exposed for the /status handler and tests.
func (d *Dispatcher) InFlight() string {
	keys := d.inFlight.Keys()
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

// Run blocks, executing the dispatch loop until ctx is cancelled. Each
// iteration is recovered from panics so that one bad job can't take down
// the process, matching the teacher's runHandlerAsync/recovered idiom.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		d.tick(ctx)
	}
}

func (d *Dispatcher) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.LogNoVodID(fmt.Sprintf("panic in dispatcher tick, recovering: %v\n%s", r, debug.Stack()))
		}
	}()

	start := Clock.Now()
	metrics.Metrics.DispatcherTicks.Inc()

	j, err := d.Store.NextEligible(ctx)
	metrics.Metrics.DispatcherTickSeconds.Observe(Clock.Now().Sub(start).Seconds())
	if err == job.ErrNotFound {
		metrics.Metrics.DispatcherIdleTicks.Inc()
		d.sleep(ctx, config.DispatcherIdlePollInterval)
		return
	}
	if err != nil {
		log.LogNoVodID("error selecting next eligible job", "error", err)
		d.sleep(ctx, config.DispatcherIdlePollInterval)
		return
	}

	d.drive(ctx, j)
}

func (d *Dispatcher) sleep(ctx context.Context, duration time.Duration) {
	timer := Clock.Timer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// drive advances j through successive stages until it reaches Uploaded,
// goes Failed, is rolled back pending a future tick, or ctx is cancelled.
func (d *Dispatcher) drive(ctx context.Context, j *job.Job) {
	d.inFlight.Store(j.VodID, j)
	defer d.inFlight.Remove(j.VodID, j.VodID)

	for {
		if ctx.Err() != nil {
			return
		}

		if target, mustRollback := j.RollbackTarget(); mustRollback {
			log.Log(j.VodID, "rolling back stage due to missing upstream artifact", "from", string(j.Stage), "to", string(target))
			if err := d.Store.SetStage(ctx, j.VodID, target); err != nil {
				log.LogError(j.VodID, "failed to persist rollback", err)
			}
			return
		}

		if j.Stage.IsTerminal() {
			return
		}
		active := j.Stage
		if !active.IsActive() {
			active = active.Active()
		}

		worker, ok := d.Workers[active]
		if !ok {
			log.Log(j.VodID, "no worker registered for stage, stopping drive", "stage", string(active))
			return
		}

		if err := d.Store.SetStage(ctx, j.VodID, active); err != nil {
			log.LogError(j.VodID, "failed to persist active stage", err)
			return
		}
		j.Stage = active

		nextJob, done := d.driveStage(ctx, j, active, worker)
		if done {
			return
		}
		j = nextJob
	}
}

// driveStage runs one active stage end-to-end: starts the lease keeper,
// consumes the worker's status stream through the throttle, and on
// success records the artifact and advances to the next Pending*
// checkpoint. It returns the refreshed job and whether the drive loop
// should stop (failure, terminal stage, or cancellation).
func (d *Dispatcher) driveStage(ctx context.Context, j *job.Job, stage job.Stage, worker Worker) (*job.Job, bool) {
	start := Clock.Now()
	lease := Start(ctx, d.Store, j.VodID, d.ID, stage)
	defer lease.Stop()

	throttle := NewThrottle(d.Store, j.VodID, stage, config.ProgressThrottleInterval)

	updates, err := worker.Run(ctx, j.VodID, Inputs{
		VodFilePath:        j.VodFilePath,
		ChatTextFilePath:   j.ChatTextFilePath,
		ChatVideoFilePath:  j.ChatVideoFilePath,
		FinalVideoFilePath: j.FinalVideoFilePath,
	})
	if err != nil {
		metrics.Metrics.StageDurationSeconds.WithLabelValues(string(stage)).Observe(Clock.Now().Sub(start).Seconds())
		d.failurePolicy.Handle(ctx, j.VodID, stage, err)
		return j, true
	}

	var workerErr error
	for update := range updates {
		if update.Err != nil {
			workerErr = update.Err
			continue
		}
		throttle.Report(ctx, update.Message)
	}

	metrics.Metrics.StageDurationSeconds.WithLabelValues(string(stage)).Observe(Clock.Now().Sub(start).Seconds())

	if workerErr != nil {
		d.failurePolicy.Handle(ctx, j.VodID, stage, workerErr)
		return j, true
	}

	if ctx.Err() != nil {
		return j, true
	}

	outputPath := worker.OutputPath(j.VodID)
	field := artifactFieldForStage(stage)
	if field != "" {
		if err := d.Store.SetArtifact(ctx, j.VodID, field, outputPath); err != nil {
			log.LogError(j.VodID, "failed to persist stage artifact", err)
			return j, true
		}
		setArtifactOnJob(j, field, outputPath)
	}

	next := stage.NextPending()
	if err := d.Store.SetStage(ctx, j.VodID, next); err != nil {
		log.LogError(j.VodID, "failed to persist next stage", err)
		return j, true
	}
	j.Stage = next

	if next.IsTerminal() {
		metrics.Metrics.JobsCompleted.Inc()
		return j, true
	}
	return j, false
}

func artifactFieldForStage(stage job.Stage) string {
	switch stage {
	case job.DownloadingVod:
		return "VodFilePath"
	case job.DownloadingChat:
		return "ChatTextFilePath"
	case job.RenderingChat:
		return "ChatVideoFilePath"
	case job.Combining:
		return "FinalVideoFilePath"
	case job.Uploading:
		return "UploadedVideoID"
	default:
		return ""
	}
}

func setArtifactOnJob(j *job.Job, field, value string) {
	switch field {
	case "VodFilePath":
		j.VodFilePath = value
	case "ChatTextFilePath":
		j.ChatTextFilePath = value
	case "ChatVideoFilePath":
		j.ChatVideoFilePath = value
	case "FinalVideoFilePath":
		j.FinalVideoFilePath = value
	case "UploadedVideoID":
		j.UploadedVideoID = value
	}
}
