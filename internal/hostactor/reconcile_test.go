package hostactor

import (
	"context"
	"testing"
	"time"

	"github.com/kestrelrun/marathoncast/internal/domain"
	"github.com/kestrelrun/marathoncast/internal/hostactor/engineclient"
	"github.com/kestrelrun/marathoncast/internal/store"
	"github.com/kestrelrun/marathoncast/internal/streamactor"
	"github.com/stretchr/testify/require"
)

// fakeEngine is a scriptable in-memory stand-in for engineclient.Client.
type fakeEngine struct {
	scenes      []engineclient.Scene
	sceneItems  map[string][]engineclient.SceneItem
	transforms  map[int]engineclient.Transform
	inputsByKind map[string][]string
	studioMode  bool

	nextItemID int
	muted      map[string]bool
	volumes    map[string]float64
	settings   map[string]map[string]any
	removed    []int
	created    []string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		sceneItems:   make(map[string][]engineclient.SceneItem),
		transforms:   make(map[int]engineclient.Transform),
		inputsByKind: make(map[string][]string),
		muted:        make(map[string]bool),
		volumes:      make(map[string]float64),
		settings:     make(map[string]map[string]any),
		nextItemID:   100,
	}
}

func (f *fakeEngine) Close() error                                       { return nil }
func (f *fakeEngine) GetVersion(ctx context.Context) (string, error)     { return "fake/1.0", nil }
func (f *fakeEngine) ListScenes(ctx context.Context) ([]engineclient.Scene, error) {
	return f.scenes, nil
}
func (f *fakeEngine) ListSceneItems(ctx context.Context, scene string) ([]engineclient.SceneItem, error) {
	return f.sceneItems[scene], nil
}
func (f *fakeEngine) ListSceneItemsInGroup(ctx context.Context, group string) ([]engineclient.SceneItem, error) {
	return f.sceneItems[group], nil
}
func (f *fakeEngine) GetTransform(ctx context.Context, scene string, itemID int) (engineclient.Transform, error) {
	return f.transforms[itemID], nil
}
func (f *fakeEngine) SetTransform(ctx context.Context, scene string, itemID int, t engineclient.Transform) error {
	f.transforms[itemID] = t
	return nil
}
func (f *fakeEngine) CreateInput(ctx context.Context, scene, name, kind string, settings map[string]any) (int, error) {
	f.nextItemID++
	f.sceneItems[scene] = append(f.sceneItems[scene], engineclient.SceneItem{ID: f.nextItemID, SourceName: name, Enabled: true})
	f.inputsByKind[kind] = append(f.inputsByKind[kind], name)
	f.settings[name] = settings
	f.created = append(f.created, name)
	return f.nextItemID, nil
}
func (f *fakeEngine) SetInputSettings(ctx context.Context, input string, settings map[string]any) error {
	f.settings[input] = settings
	return nil
}
func (f *fakeEngine) SetMuted(ctx context.Context, input string, muted bool) error {
	f.muted[input] = muted
	return nil
}
func (f *fakeEngine) SetVolume(ctx context.Context, input string, volume float64) error {
	f.volumes[input] = volume
	return nil
}
func (f *fakeEngine) ListInputsByKind(ctx context.Context, kind string) ([]string, error) {
	return f.inputsByKind[kind], nil
}
func (f *fakeEngine) RemoveInput(ctx context.Context, input string) error { return nil }
func (f *fakeEngine) DuplicateSceneItem(ctx context.Context, scene string, itemID int) (int, error) {
	f.nextItemID++
	return f.nextItemID, nil
}
func (f *fakeEngine) SetSceneItemIndex(ctx context.Context, scene string, itemID, index int) error {
	return nil
}
func (f *fakeEngine) SetSceneItemEnabled(ctx context.Context, scene string, itemID int, enabled bool) error {
	return nil
}
func (f *fakeEngine) RemoveSceneItem(ctx context.Context, scene string, itemID int) error {
	f.removed = append(f.removed, itemID)
	return nil
}
func (f *fakeEngine) SetCurrentProgramScene(ctx context.Context, scene string) error { return nil }
func (f *fakeEngine) SetCurrentPreviewScene(ctx context.Context, scene string) error { return nil }
func (f *fakeEngine) GetStudioModeEnabled(ctx context.Context) (bool, error)         { return f.studioMode, nil }
func (f *fakeEngine) SetCurrentTransition(ctx context.Context, name string) error    { return nil }
func (f *fakeEngine) TriggerTransition(ctx context.Context) error                    { return nil }
func (f *fakeEngine) GetStreamStatus(ctx context.Context) (bool, error)              { return false, nil }
func (f *fakeEngine) StartStream(ctx context.Context) error                          { return nil }
func (f *fakeEngine) StopStream(ctx context.Context) error                           { return nil }

func newTestHostActor(t *testing.T, engine *fakeEngine) (*Actor, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), t.TempDir()+"/db.sqlite", nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	settings := Settings{Hosts: []HostConfig{{Name: "A", Engine: EngineConfig{IP: "127.0.0.1", Port: 4455}}}, KeepUnusedStreams: true}
	dial := func(ctx context.Context, cfg engineclient.Config) (engineclient.Client, error) { return engine, nil }
	a := New(st, settings, dial, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go a.Run(ctx)
	time.Sleep(10 * time.Millisecond)
	return a, st
}

func TestSelectLayoutByRequestedName(t *testing.T) {
	engine := newFakeEngine()
	engine.scenes = []engineclient.Scene{{Name: "two_up"}, {Name: "solo"}}
	a, st := newTestHostActor(t, engine)
	ctx := context.Background()

	pid, err := st.CreateParticipant(ctx, &domain.Participant{Name: "Joe"})
	require.NoError(t, err)
	require.NoError(t, st.CreateRunner(ctx, &domain.Runner{ParticipantID: pid, VolumePercent: 100}))
	eventID, err := st.CreateEvent(ctx, &domain.Event{Name: "race1"})
	require.NoError(t, err)
	require.NoError(t, st.CreateStream(ctx, eventID, "A"))

	layout := "solo"
	require.NoError(t, st.SaveStream(ctx, &domain.Stream{
		EventID: eventID, HostName: "A", RequestedLayout: &layout,
		StreamRunners: map[int]int64{0: pid},
	}))

	require.NoError(t, a.updateState(ctx, eventID, []streamactor.Modification{{Kind: streamactor.ModLayout}}))
}

func TestSelectLayoutFallsBackToCardinality(t *testing.T) {
	engine := newFakeEngine()
	engine.scenes = []engineclient.Scene{{Name: "two_up"}}
	engine.sceneItems["two_up"] = []engineclient.SceneItem{
		{ID: 1, SourceName: "stream_0_a"},
		{ID: 2, SourceName: "stream_1_a"},
	}
	a, st := newTestHostActor(t, engine)
	ctx := context.Background()

	p1, _ := st.CreateParticipant(ctx, &domain.Participant{Name: "Joe"})
	p2, _ := st.CreateParticipant(ctx, &domain.Participant{Name: "Will"})
	require.NoError(t, st.CreateRunner(ctx, &domain.Runner{ParticipantID: p1, VolumePercent: 100}))
	require.NoError(t, st.CreateRunner(ctx, &domain.Runner{ParticipantID: p2, VolumePercent: 100}))
	eventID, err := st.CreateEvent(ctx, &domain.Event{Name: "race2"})
	require.NoError(t, err)
	require.NoError(t, st.CreateStream(ctx, eventID, "A"))
	require.NoError(t, st.SaveStream(ctx, &domain.Stream{
		EventID: eventID, HostName: "A", StreamRunners: map[int]int64{0: p1, 1: p2},
	}))

	require.NoError(t, a.updateState(ctx, eventID, []streamactor.Modification{{Kind: streamactor.ModLayout}}))
}
