package runneractor

import (
	"context"
	"testing"
	"time"

	"github.com/kestrelrun/marathoncast/internal/domain"
	"github.com/kestrelrun/marathoncast/internal/store"
	"github.com/stretchr/testify/require"
)

type fakeTelemetry struct {
	added   []domain.Runner
	removed []domain.Runner
}

func (f *fakeTelemetry) AddRunner(r domain.Runner)    { f.added = append(f.added, r) }
func (f *fakeTelemetry) RemoveRunner(r domain.Runner) { f.removed = append(f.removed, r) }

type fakeResolver struct{ urls map[string]string }

func (f *fakeResolver) Resolve(ctx context.Context, handle string) (map[string]string, error) {
	return f.urls, nil
}

func newTestActor(t *testing.T) (*Actor, *store.Store, *fakeTelemetry) {
	t.Helper()
	st, err := store.Open(context.Background(), t.TempDir()+"/db.sqlite", nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	tel := &fakeTelemetry{}
	a := New(st, tel, &fakeResolver{urls: map[string]string{"best": "https://example/best.m3u8"}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go a.Run(ctx)
	time.Sleep(10 * time.Millisecond)
	return a, st, tel
}

func TestDeleteRefusedWhenReferenced(t *testing.T) {
	ctx := context.Background()
	a, st, _ := newTestActor(t)

	pid, err := st.CreateParticipant(ctx, &domain.Participant{Name: "Joe"})
	require.NoError(t, err)
	require.NoError(t, a.Create(ctx, domain.Runner{ParticipantID: pid, VolumePercent: 100}))

	eventID, err := st.CreateEvent(ctx, &domain.Event{Name: "race1"})
	require.NoError(t, err)
	require.NoError(t, st.AddRunnerToEvent(ctx, eventID, pid))

	err = a.Delete(ctx, pid)
	require.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, st.RemoveRunnerFromEvent(ctx, eventID, pid))
	require.NoError(t, a.Delete(ctx, pid))
}

func TestUpdateSwapsTelemetrySubscription(t *testing.T) {
	ctx := context.Background()
	a, st, tel := newTestActor(t)

	pid, err := st.CreateParticipant(ctx, &domain.Participant{Name: "Will"})
	require.NoError(t, err)

	oldHandle := "will_old"
	require.NoError(t, a.Create(ctx, domain.Runner{ParticipantID: pid, VolumePercent: 100, TelemetryHandle: &oldHandle}))
	require.Len(t, tel.added, 1)

	newHandle := "will_new"
	require.NoError(t, a.Update(ctx, domain.Runner{ParticipantID: pid, VolumePercent: 100, TelemetryHandle: &newHandle}))

	require.Len(t, tel.removed, 1)
	require.Len(t, tel.added, 2)
}

func TestRefreshStreamWritesCache(t *testing.T) {
	ctx := context.Background()
	a, st, _ := newTestActor(t)

	pid, err := st.CreateParticipant(ctx, &domain.Participant{Name: "Nat"})
	require.NoError(t, err)
	handle := "nat_twitch"
	require.NoError(t, a.Create(ctx, domain.Runner{ParticipantID: pid, VolumePercent: 100, StreamHandle: &handle}))

	changed, err := a.RefreshStream(ctx, pid)
	require.NoError(t, err)
	require.True(t, changed)

	r, err := st.GetRunner(ctx, pid)
	require.NoError(t, err)
	require.Equal(t, "https://example/best.m3u8", *r.CachedPlaylistURL)

	changed, err = a.RefreshStream(ctx, pid)
	require.NoError(t, err)
	require.False(t, changed)
}
