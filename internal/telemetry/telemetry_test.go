package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/kestrelrun/marathoncast/internal/domain"
	"github.com/kestrelrun/marathoncast/internal/store"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	notified []int64
}

func (f *fakeNotifier) NotifyLiveSplits(runnerID int64) { f.notified = append(f.notified, runnerID) }

func TestAddRunnerIsIdempotentPerHandle(t *testing.T) {
	st, err := store.Open(context.Background(), t.TempDir()+"/db.sqlite", nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	notifier := &fakeNotifier{}
	p := New(st, notifier, nil)

	handle := "nonexistent_handle_for_test"
	r := domain.Runner{ParticipantID: 1, TelemetryHandle: &handle}

	p.AddRunner(r)
	require.True(t, p.isLive(handle))
	p.AddRunner(r) // second call is a no-op; only one subscription per handle

	p.mu.Lock()
	count := len(p.handles)
	p.mu.Unlock()
	require.Equal(t, 1, count)

	p.RemoveRunner(r)
	time.Sleep(10 * time.Millisecond)
	require.False(t, p.isLive(handle))
}

func TestWireRunParsesIntoDomainRun(t *testing.T) {
	sob := 12.5
	body := wireRunBody{
		SOB:               &sob,
		CurrentComparison: "Personal Best",
		CurrentSplitName:  "Split 1",
		CurrentSplitIndex: 1,
		Splits: []wireSplit{
			{Name: "Split 1", SplitTime: &sob},
		},
	}
	run := body.toDomain(42)
	require.Equal(t, int64(42), run.RunnerID)
	require.Equal(t, "Personal Best", run.CurrentComparison)
	require.Len(t, run.Splits, 1)
	require.Equal(t, "Split 1", run.Splits[0].Name)
}
