package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"github.com/vodarchiver/archiver/job"
)

// TestThrottlePersistsAtMostOncePerInterval covers spec.md §8 invariant 5 /
// scenario S5: a burst of statuses within the throttle window persists at
// most once.
func TestThrottlePersistsAtMostOncePerInterval(t *testing.T) {
	mock := clock.NewMock()
	orig := Clock
	Clock = mock
	defer func() { Clock = orig }()

	store := newFakeStore(&job.Job{VodID: "v1", Stage: job.DownloadingVod})
	th := NewThrottle(store, "v1", job.DownloadingVod, 2*time.Second)

	for i := 0; i < 100; i++ {
		th.Report(context.Background(), fmt.Sprintf("progress update %d", i))
	}

	got := store.get("v1")
	require.Equal(t, "progress update 0", got.Description)
}

func TestThrottleReportsAgainAfterIntervalElapses(t *testing.T) {
	mock := clock.NewMock()
	orig := Clock
	Clock = mock
	defer func() { Clock = orig }()

	store := newFakeStore(&job.Job{VodID: "v1", Stage: job.DownloadingVod})
	th := NewThrottle(store, "v1", job.DownloadingVod, 2*time.Second)

	th.Report(context.Background(), "first")
	require.Equal(t, "first", store.get("v1").Description)

	mock.Add(3 * time.Second)
	th.Report(context.Background(), "second")
	require.Equal(t, "second", store.get("v1").Description)
}

func TestThrottleSwallowsPersistErrors(t *testing.T) {
	store := newFakeStore()
	th := NewThrottle(store, "missing-job", job.DownloadingVod, 2*time.Second)
	require.NotPanics(t, func() {
		th.Report(context.Background(), "whatever")
	})
}
