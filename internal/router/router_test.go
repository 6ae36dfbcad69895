package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kestrelrun/marathoncast/internal/domain"
	"github.com/kestrelrun/marathoncast/internal/hostactor"
	"github.com/kestrelrun/marathoncast/internal/store"
)

type fakeStreamActor struct {
	last *domain.Stream
}

func (f *fakeStreamActor) Update(ctx context.Context, newState *domain.Stream) error {
	f.last = newState
	return nil
}

type noopEventActor struct{}

func (noopEventActor) SetStartTime(ctx context.Context, eventID int64, at time.Time) error {
	return nil
}
func (noopEventActor) SetEndTime(ctx context.Context, eventID int64, at time.Time) error { return nil }

type noopHostActor struct{}

func (noopHostActor) StartStream(ctx context.Context, host string) error { return nil }
func (noopHostActor) EndStream(ctx context.Context, host string) error  { return nil }
func (noopHostActor) SetStreamCommentators(ctx context.Context, host string, list []hostactor.Commentator) error {
	return nil
}
func (noopHostActor) SetCommentatorVolume(ctx context.Context, discordID string, pct int) error {
	return nil
}

func newTestRouter(t *testing.T) (*Router, *store.Store, *fakeStreamActor) {
	t.Helper()
	st, err := store.Open(context.Background(), t.TempDir()+"/db.sqlite", nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	fs := &fakeStreamActor{}
	r := New(st, fs, noopEventActor{}, noopHostActor{})
	return r, st, fs
}

func mustEvent(t *testing.T, st *store.Store, name string) int64 {
	t.Helper()
	id, err := st.CreateEvent(context.Background(), &domain.Event{Name: name})
	require.NoError(t, err)
	return id
}

func TestToggleRunnerTogglesSlot(t *testing.T) {
	ctx := context.Background()
	r, st, fs := newTestRouter(t)

	eventID := mustEvent(t, st, "race1")
	require.NoError(t, st.CreateStream(ctx, eventID, "A"))
	pid, err := st.CreateParticipant(ctx, &domain.Participant{Name: "Joe"})
	require.NoError(t, err)
	require.NoError(t, st.CreateRunner(ctx, &domain.Runner{ParticipantID: pid, VolumePercent: 100}))

	err = r.Dispatch(ctx, Command{Kind: KindToggleRunner, EventID: eventID, Slot: 1, RunnerID: pid})
	require.NoError(t, err)
	require.Equal(t, pid, fs.last.StreamRunners[1])

	require.NoError(t, st.SaveStream(ctx, fs.last))

	err = r.Dispatch(ctx, Command{Kind: KindToggleRunner, EventID: eventID, Slot: 1, RunnerID: pid})
	require.NoError(t, err)
	_, stillThere := fs.last.StreamRunners[1]
	require.False(t, stillThere)
}

func TestSwapExchangesSlots(t *testing.T) {
	ctx := context.Background()
	r, st, fs := newTestRouter(t)

	eventID := mustEvent(t, st, "race1")
	require.NoError(t, st.CreateStream(ctx, eventID, "A"))
	p1, err := st.CreateParticipant(ctx, &domain.Participant{Name: "Joe"})
	require.NoError(t, err)
	require.NoError(t, st.CreateRunner(ctx, &domain.Runner{ParticipantID: p1, VolumePercent: 100}))
	p2, err := st.CreateParticipant(ctx, &domain.Participant{Name: "Will"})
	require.NoError(t, err)
	require.NoError(t, st.CreateRunner(ctx, &domain.Runner{ParticipantID: p2, VolumePercent: 100}))
	require.NoError(t, st.SaveStream(ctx, &domain.Stream{
		EventID:       eventID,
		HostName:      "A",
		StreamRunners: map[int]int64{1: p1, 2: p2},
	}))

	err = r.Dispatch(ctx, Command{Kind: KindSwap, EventID: eventID, Slot: 1, OtherSlot: 2})
	require.NoError(t, err)
	require.Equal(t, p2, fs.last.StreamRunners[1])
	require.Equal(t, p1, fs.last.StreamRunners[2])
}

func TestResolveStreamRequiresExplicitEventWhenMultiple(t *testing.T) {
	ctx := context.Background()
	r, st, _ := newTestRouter(t)

	e1 := mustEvent(t, st, "race1")
	e2 := mustEvent(t, st, "race2")
	require.NoError(t, st.CreateStream(ctx, e1, "A"))
	require.NoError(t, st.CreateStream(ctx, e2, "B"))

	err := r.Dispatch(ctx, Command{Kind: KindRefresh})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestResolveStreamErrorsWhenNoneActive(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRouter(t)

	err := r.Dispatch(ctx, Command{Kind: KindRefresh})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestSetCustomFieldBypassesStreamResolution(t *testing.T) {
	ctx := context.Background()
	r, st, _ := newTestRouter(t)

	val := "1"
	err := r.Dispatch(ctx, Command{Kind: KindSetCustomField, FieldKey: "transmit_voice_dft", FieldValue: &val})
	require.NoError(t, err)

	fields, err := st.ListCustomFields(ctx)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	require.Equal(t, "transmit_voice_dft", fields[0].Key)
}
