// Package pipeline drives a Job through the stage state machine: the
// Dispatcher selects work, hands it to a Worker, throttles its status
// stream into the Job Store, and keeps a lease fresh while it runs.
package pipeline

import (
	"context"

	"github.com/vodarchiver/archiver/xerrors"
)

// StatusUpdate is one line of human-readable progress from a running
// Worker. Err is nil for every update except optionally the last: a
// non-nil Err on the final update the channel delivers before closing
// means the stage failed.
type StatusUpdate struct {
	Message string
	Err     error
}

// Worker is the uniform stage-worker contract from spec.md §4.3: given a
// VodId and whatever upstream artifact paths this stage needs, produce a
// lazy, finite status sequence and, on success, leave the stage's artifact
// at OutputPath(vodID).
//
// Implementations must be idempotent on restart (re-running after a crash
// overwrites or skips partial output, never corrupts it) and must stop
// promptly when ctx is cancelled, surfacing ctx.Err() as the terminal
// update's Err rather than completing silently.
type Worker interface {
	// Run starts the work and returns immediately with a channel of status
	// updates; the returned error is non-nil only if the worker could not
	// even start (e.g. a malformed input path). The channel closes when
	// the sequence ends; a non-nil Err on the last delivered update means
	// the stage failed.
	Run(ctx context.Context, vodID string, inputs Inputs) (<-chan StatusUpdate, error)

	// OutputPath is the deterministic artifact path this worker produces
	// for vodID, per spec.md §4.3's "determinism of output path" property.
	OutputPath(vodID string) string
}

// Inputs bundles the upstream artifact paths a worker may need. Workers
// that don't need a given field ignore it.
type Inputs struct {
	VodFilePath       string
	ChatTextFilePath  string
	ChatVideoFilePath string
	FinalVideoFilePath string
}

// Permanent marks an error as structurally unfixable by retry, per
// spec.md §4.3's "Failure surface" clause. Workers call this instead of
// returning a bare error when e.g. required credentials are absent.
func Permanent(err error) error {
	return xerrors.Permanent(err)
}
