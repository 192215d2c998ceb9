// Package job defines the Job row and the stage state machine it moves
// through, per spec.md §3 and §4.1.
package job

import "time"

// Stage is a job's position in the linear pipeline. Each constant's index
// in stageOrder is its priority: the dispatcher always selects the
// eligible job with the highest stage priority, and Priority() returns
// that index.
type Stage string

const (
	Pending               Stage = "Pending"
	DownloadingVod        Stage = "DownloadingVod"
	PendingDownloadChat   Stage = "PendingDownloadChat"
	DownloadingChat       Stage = "DownloadingChat"
	PendingRenderingChat  Stage = "PendingRenderingChat"
	RenderingChat         Stage = "RenderingChat"
	PendingCombining      Stage = "PendingCombining"
	Combining             Stage = "Combining"
	PendingUpload         Stage = "PendingUpload"
	Uploading             Stage = "Uploading"
	Uploaded              Stage = "Uploaded"
)

// stageOrder is the strict linear order from spec.md §4.1. Index == priority.
var stageOrder = []Stage{
	Pending,
	DownloadingVod,
	PendingDownloadChat,
	DownloadingChat,
	PendingRenderingChat,
	RenderingChat,
	PendingCombining,
	Combining,
	PendingUpload,
	Uploading,
	Uploaded,
}

// Priority returns the stage's position in the pipeline; higher means
// further along. Unknown stages return -1.
func (s Stage) Priority() int {
	for i, candidate := range stageOrder {
		if candidate == s {
			return i
		}
	}
	return -1
}

// IsTerminal reports whether a job in this stage requires no further work
// from the dispatcher (Uploaded is terminal-success; Failed is handled via
// the Job.Failed flag rather than a Stage value).
func (s Stage) IsTerminal() bool {
	return s == Uploaded
}

// IsActive reports whether this is one of the odd-indexed "active" stages
// where a worker is (or was) producing an artifact, as opposed to a
// quiescent Pending* checkpoint.
func (s Stage) IsActive() bool {
	p := s.Priority()
	return p > 0 && p%2 == 1
}

// NextPending returns the Pending* checkpoint that follows the given active
// stage. Only valid when IsActive() is true.
func (s Stage) NextPending() Stage {
	p := s.Priority()
	if p < 0 || p+1 >= len(stageOrder) {
		return s
	}
	return stageOrder[p+1]
}

// Active returns the active form of a Pending* stage (the stage the
// dispatcher moves to when it begins work on this checkpoint).
func (s Stage) Active() Stage {
	p := s.Priority()
	if p < 0 || p+1 >= len(stageOrder) {
		return s
	}
	return stageOrder[p+1]
}

// EligibleStages lists every non-terminal stage, used by the store's
// selection query (spec.md §4.2 step 1).
func EligibleStages() []Stage {
	out := make([]Stage, 0, len(stageOrder)-1)
	for _, s := range stageOrder {
		if !s.IsTerminal() {
			out = append(out, s)
		}
	}
	return out
}

// Job is one row per VOD, per spec.md §3.
type Job struct {
	VodID string

	Stage       Stage
	Description string

	VodFilePath       string
	ChatTextFilePath  string
	ChatVideoFilePath string
	FinalVideoFilePath string
	UploadedVideoID   string

	LeasedBy    string
	LeasedAtUtc time.Time

	Failed     bool
	FailReason string
	FailCount  int
}

// RollbackTarget implements the §4.1 "resume with inconsistent state" rules.
// It returns the stage the dispatcher should roll back to, and true, if the
// job's current stage requires an artifact that is missing; otherwise it
// returns (j.Stage, false).
func (j *Job) RollbackTarget() (Stage, bool) {
	switch j.Stage {
	case PendingRenderingChat, RenderingChat:
		if j.VodFilePath == "" {
			return Pending, true
		}
		if j.ChatTextFilePath == "" {
			return PendingDownloadChat, true
		}
	case PendingCombining, Combining:
		if j.VodFilePath == "" {
			return Pending, true
		}
		if j.ChatVideoFilePath == "" {
			return PendingRenderingChat, true
		}
	case PendingUpload, Uploading:
		if j.FinalVideoFilePath == "" {
			return PendingCombining, true
		}
	}
	return j.Stage, false
}
