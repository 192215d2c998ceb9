// Package ingestor implements the external collaborator spec.md §1 and §2
// name but scope out of the core design (C7, "periodically insert new jobs
// in Pending state"). It is the one piece of "new work enters here" plumbing
// this repo ships a working version of, keeping the actual source-platform
// API client behind a small interface.
package ingestor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/vodarchiver/archiver/job"
	"github.com/vodarchiver/archiver/log"
	"github.com/vodarchiver/archiver/metrics"
)

// Clock mirrors pipeline.Clock: a package-level override point so tests can
// drive the poll loop without real sleeps.
var Clock = clock.New()

// VodRef is one VOD a Source has observed on a channel, pending ingestion.
type VodRef struct {
	VodID   string
	Channel string
}

// Source discovers new VODs for a channel. The concrete implementation
// (talking to a streaming platform's API) is out of scope per spec.md §1;
// this is the seam the Ingestor depends on.
type Source interface {
	ListRecentVods(ctx context.Context, channel string) ([]VodRef, error)
}

// Ingestor polls a configured list of channels on an interval and inserts a
// Pending job for any VodId it has not seen before, per spec.md §2 (C7).
type Ingestor struct {
	Store    job.Store
	Source   Source
	Channels []string
	Interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// Start begins polling in the background; Stop halts it.
func (i *Ingestor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	i.cancel = cancel
	i.done = make(chan struct{})
	go i.mainLoop(ctx)
}

// Stop halts the poll loop, blocking until the background goroutine exits.
func (i *Ingestor) Stop() {
	if i.cancel == nil {
		return
	}
	i.cancel()
	<-i.done
}

func (i *Ingestor) mainLoop(ctx context.Context) {
	defer close(i.done)

	i.tick(ctx)

	ticker := Clock.Ticker(i.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i.tick(ctx)
		}
	}
}

func (i *Ingestor) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.LogError("", fmt.Sprintf("panic in ingestor tick: %v\n%s", r, debug.Stack()), errors.New("panic in ingestor tick"))
		}
	}()

	for _, channel := range i.Channels {
		refs, err := i.Source.ListRecentVods(ctx, channel)
		if err != nil {
			log.LogNoVodID("error listing recent vods", "channel", channel, "error", err)
			continue
		}
		for _, ref := range refs {
			i.ingest(ctx, ref)
		}
	}
}

// ingest inserts a Pending job for ref unless one already exists; it treats
// "already exists" as success rather than an error, since two overlapping
// polls of the same channel are expected.
func (i *Ingestor) ingest(ctx context.Context, ref VodRef) {
	if _, err := i.Store.Get(ctx, ref.VodID); err == nil {
		return
	} else if !errors.Is(err, job.ErrNotFound) {
		log.LogError(ref.VodID, "error checking for existing job before ingest", err)
		return
	}

	j := &job.Job{
		VodID: ref.VodID,
		Stage: job.Pending,
	}
	if err := i.Store.Insert(ctx, j); err != nil {
		log.LogError(ref.VodID, "error inserting ingested job", err)
		return
	}
	metrics.Metrics.JobsIngested.Inc()
	log.Log(ref.VodID, "ingested new job", "channel", ref.Channel)
}
