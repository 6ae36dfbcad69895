package eventactor

import (
	"context"
	"testing"
	"time"

	"github.com/kestrelrun/marathoncast/internal/domain"
	"github.com/kestrelrun/marathoncast/internal/store"
	"github.com/stretchr/testify/require"
)

type fakeStreamDeleter struct {
	deleted []int64
	err     error
}

func (f *fakeStreamDeleter) Delete(ctx context.Context, eventID int64) error {
	f.deleted = append(f.deleted, eventID)
	return f.err
}

func newTestActor(t *testing.T) (*Actor, *store.Store, *fakeStreamDeleter) {
	t.Helper()
	st, err := store.Open(context.Background(), t.TempDir()+"/db.sqlite", nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	fd := &fakeStreamDeleter{}
	a := New(st, fd, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go a.Run(ctx)
	time.Sleep(10 * time.Millisecond)
	return a, st, fd
}

func TestAddRemoveRunnerIdempotent(t *testing.T) {
	ctx := context.Background()
	a, st, _ := newTestActor(t)

	pid, err := st.CreateParticipant(ctx, &domain.Participant{Name: "Ike"})
	require.NoError(t, err)
	require.NoError(t, st.CreateRunner(ctx, &domain.Runner{ParticipantID: pid, VolumePercent: 100}))
	eventID, err := a.Create(ctx, domain.Event{Name: "race1"})
	require.NoError(t, err)

	require.NoError(t, a.AddRunner(ctx, eventID, pid))
	require.NoError(t, a.AddRunner(ctx, eventID, pid))

	roster, err := st.EventRoster(ctx, eventID)
	require.NoError(t, err)
	require.Len(t, roster, 1)

	require.NoError(t, a.RemoveRunner(ctx, eventID, pid))
	require.NoError(t, a.RemoveRunner(ctx, eventID, pid))

	roster, err = st.EventRoster(ctx, eventID)
	require.NoError(t, err)
	require.Len(t, roster, 0)
}

// TestDeleteCascadesThroughStream directly implements the spec's scenario:
// deleting an event while its stream exists removes the stream first, then
// the event row, and the event no longer appears among streamed events.
func TestDeleteCascadesThroughStream(t *testing.T) {
	ctx := context.Background()
	a, st, fd := newTestActor(t)

	eventID, err := a.Create(ctx, domain.Event{Name: "race1"})
	require.NoError(t, err)
	require.NoError(t, st.CreateStream(ctx, eventID, "host1"))

	require.NoError(t, a.Delete(ctx, eventID))
	require.Equal(t, []int64{eventID}, fd.deleted)

	ids, err := st.StreamedEventIDs(ctx)
	require.NoError(t, err)
	require.NotContains(t, ids, eventID)

	_, err = st.GetEvent(ctx, eventID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteWithoutStreamSkipsCascade(t *testing.T) {
	ctx := context.Background()
	a, _, fd := newTestActor(t)

	eventID, err := a.Create(ctx, domain.Event{Name: "race2"})
	require.NoError(t, err)

	require.NoError(t, a.Delete(ctx, eventID))
	require.Empty(t, fd.deleted)
}
