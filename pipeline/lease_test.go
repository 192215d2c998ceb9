package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"github.com/vodarchiver/archiver/job"
)

func TestLeaseKeeperStopClearsLeaseAfterHeartbeatTicks(t *testing.T) {
	mock := clock.NewMock()
	orig := Clock
	Clock = mock
	defer func() { Clock = orig }()

	store := newFakeStore(&job.Job{VodID: "v1", Stage: job.DownloadingVod})
	keeper := Start(context.Background(), store, "v1", "dispatcher-1", job.DownloadingVod)

	mock.Add(2 * time.Minute)
	mock.Add(2 * time.Minute)

	keeper.Stop()

	got := store.get("v1")
	require.Equal(t, "", got.LeasedBy, "Stop should clear the lease")
}

func TestLeaseKeeperStopClearsLease(t *testing.T) {
	store := newFakeStore(&job.Job{VodID: "v1", Stage: job.DownloadingVod, LeasedBy: "dispatcher-1"})
	keeper := Start(context.Background(), store, "v1", "dispatcher-1", job.DownloadingVod)
	keeper.Stop()

	got := store.get("v1")
	require.Equal(t, "", got.LeasedBy)
}
