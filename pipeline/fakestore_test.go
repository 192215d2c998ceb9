package pipeline

import (
	"context"
	"sync"

	"github.com/vodarchiver/archiver/job"
)

// fakeStore is an in-memory job.Store used across pipeline tests, grounded
// on the teacher's in-memory stub handlers (StubHandler in coordinator.go)
// rather than spinning up sqlmock for every dispatcher scenario.
type fakeStore struct {
	mu   sync.Mutex
	jobs map[string]*job.Job
}

func newFakeStore(jobs ...*job.Job) *fakeStore {
	s := &fakeStore{jobs: map[string]*job.Job{}}
	for _, j := range jobs {
		cp := *j
		s.jobs[j.VodID] = &cp
	}
	return s
}

func (s *fakeStore) NextEligible(ctx context.Context) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *job.Job
	for _, j := range s.jobs {
		if j.Failed {
			continue
		}
		if j.Stage.IsTerminal() {
			continue
		}
		if best == nil ||
			j.Stage.Priority() > best.Stage.Priority() ||
			(j.Stage.Priority() == best.Stage.Priority() && j.VodID < best.VodID) {
			best = j
		}
	}
	if best == nil {
		return nil, job.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (s *fakeStore) Get(ctx context.Context, vodID string) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[vodID]
	if !ok {
		return nil, job.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *fakeStore) Insert(ctx context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *j
	s.jobs[j.VodID] = &cp
	return nil
}

func (s *fakeStore) SetStage(ctx context.Context, vodID string, stage job.Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[vodID]
	if !ok {
		return job.ErrNotFound
	}
	j.Stage = stage
	return nil
}

func (s *fakeStore) SetDescription(ctx context.Context, vodID string, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[vodID]
	if !ok {
		return job.ErrNotFound
	}
	j.Description = description
	return nil
}

func (s *fakeStore) SetArtifact(ctx context.Context, vodID string, field string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[vodID]
	if !ok {
		return job.ErrNotFound
	}
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
	return nil
}

func (s *fakeStore) Heartbeat(ctx context.Context, vodID string, leasedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[vodID]
	if !ok {
		return job.ErrNotFound
	}
	j.LeasedBy = leasedBy
	return nil
}

func (s *fakeStore) IncrementFailCount(ctx context.Context, vodID string, reason string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[vodID]
	if !ok {
		return 0, job.ErrNotFound
	}
	j.FailReason = reason
	j.FailCount++
	return j.FailCount, nil
}

func (s *fakeStore) MarkFailed(ctx context.Context, vodID string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[vodID]
	if !ok {
		return job.ErrNotFound
	}
	j.Failed = true
	j.FailReason = reason
	j.LeasedBy = ""
	return nil
}

func (s *fakeStore) ClearLease(ctx context.Context, vodID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[vodID]
	if !ok {
		return job.ErrNotFound
	}
	j.LeasedBy = ""
	return nil
}

func (s *fakeStore) ResetFailure(ctx context.Context, vodID string, resetFailCount bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[vodID]
	if !ok {
		return job.ErrNotFound
	}
	j.Failed = false
	j.FailReason = ""
	if resetFailCount {
		j.FailCount = 0
	}
	return nil
}

func (s *fakeStore) get(vodID string) job.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[vodID]
}
