package store

import (
	"context"
	"testing"

	"github.com/kestrelrun/marathoncast/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := t.TempDir() + "/marathoncast.db"
	s, err := Open(context.Background(), path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenInitializesSchema(t *testing.T) {
	s := newTestStore(t)
	exists, err := s.tableExists(context.Background(), "runners")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestParticipantRunnerLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.CreateParticipant(ctx, &domain.Participant{Name: "Joe"})
	require.NoError(t, err)

	// Participant names are unique case-insensitively.
	_, err = s.CreateParticipant(ctx, &domain.Participant{Name: "joe"})
	require.Error(t, err)

	err = s.CreateRunner(ctx, &domain.Runner{ParticipantID: id, VolumePercent: 100, Nicknames: []string{"J", "Joey"}})
	require.NoError(t, err)

	r, err := s.GetRunner(ctx, id)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"J", "Joey"}, r.Nicknames)

	// Deleting a Participant with a dependent Runner is refused.
	err = s.DeleteParticipant(ctx, id)
	require.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, s.DeleteRunner(ctx, id))
	require.NoError(t, s.DeleteParticipant(ctx, id))
}

func TestSaveRunReplacesSplitsWholesale(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	pid, err := s.CreateParticipant(ctx, &domain.Participant{Name: "Will"})
	require.NoError(t, err)
	require.NoError(t, s.CreateRunner(ctx, &domain.Runner{ParticipantID: pid, VolumePercent: 100}))

	run := &domain.Run{
		RunnerID:          pid,
		CurrentSplitIndex: 3,
		Splits: []domain.Split{
			{Name: "s1"}, {Name: "s2"}, {Name: "s3"}, {Name: "s4"},
		},
	}
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, pid)
	require.NoError(t, err)
	assert.Len(t, got.Splits, 4)
	assert.Equal(t, "s1", got.Splits[0].Name)

	// A subsequent snapshot with fewer splits fully replaces the prior list.
	run2 := &domain.Run{RunnerID: pid, CurrentSplitIndex: 0, Splits: []domain.Split{{Name: "only"}}}
	require.NoError(t, s.SaveRun(ctx, run2))

	got2, err := s.GetRun(ctx, pid)
	require.NoError(t, err)
	assert.Len(t, got2.Splits, 1)
	assert.Equal(t, "only", got2.Splits[0].Name)
}

func TestStreamHostUniqueness(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	e1, err := s.CreateEvent(ctx, &domain.Event{Name: "race1"})
	require.NoError(t, err)
	e2, err := s.CreateEvent(ctx, &domain.Event{Name: "race2"})
	require.NoError(t, err)

	require.NoError(t, s.CreateStream(ctx, e1, "A"))

	inUse, err := s.IsHostInUse(ctx, "A")
	require.NoError(t, err)
	assert.True(t, inUse)

	err = s.CreateStream(ctx, e2, "A")
	require.Error(t, err)
}

func TestSaveStreamRewritesRoster(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	eventID, err := s.CreateEvent(ctx, &domain.Event{Name: "race1"})
	require.NoError(t, err)
	require.NoError(t, s.CreateStream(ctx, eventID, "A"))

	p1, _ := s.CreateParticipant(ctx, &domain.Participant{Name: "Joe"})
	p2, _ := s.CreateParticipant(ctx, &domain.Participant{Name: "Will"})
	require.NoError(t, s.CreateRunner(ctx, &domain.Runner{ParticipantID: p1, VolumePercent: 100}))
	require.NoError(t, s.CreateRunner(ctx, &domain.Runner{ParticipantID: p2, VolumePercent: 100}))

	st, err := s.GetStream(ctx, eventID)
	require.NoError(t, err)
	st.StreamRunners = map[int]int64{1: p1, 2: p2}
	require.NoError(t, s.SaveStream(ctx, st))

	reloaded, err := s.GetStream(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, map[int]int64{1: p1, 2: p2}, reloaded.StreamRunners)
}

func TestDeleteStreamThenEventClearsStreamedIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	eventID, err := s.CreateEvent(ctx, &domain.Event{Name: "race1"})
	require.NoError(t, err)
	require.NoError(t, s.CreateStream(ctx, eventID, "A"))

	require.NoError(t, s.DeleteStream(ctx, eventID))
	require.NoError(t, s.DeleteEvent(ctx, eventID))

	ids, err := s.StreamedEventIDs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, eventID)
}
