// Package webpush serializes full-state snapshots and push events to
// websocket subscribers: three broadcast channels (state snapshots,
// voice states, live splits) plus one single-value editor-claim slot.
package webpush

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kestrelrun/marathoncast/internal/domain"
	"github.com/kestrelrun/marathoncast/internal/store"
	"github.com/kestrelrun/marathoncast/internal/wsproto"
)

const (
	writeTimeout = 10 * time.Second
	subBuffer    = 256
)

// Snapshot is the full-state view broadcast to state-snapshot
// subscribers on every TriggerStateUpdate.
type Snapshot struct {
	Events       []*domain.Event       `msgpack:"events"`
	Participants []*domain.Participant `msgpack:"participants"`
	Runners      []*domain.Runner      `msgpack:"runners"`
	Runs         []*domain.Run         `msgpack:"runs"`
	Streams      []*domain.Stream      `msgpack:"streams"`
	CustomFields []*domain.CustomField `msgpack:"customFields"`
}

// EditorClaim is the single-value dashboard-editor lock.
type EditorClaim struct {
	UnixTime int64   `msgpack:"unixTime"`
	Editor   *string `msgpack:"editor,omitempty"`
}

// VoiceState mirrors voice.VoiceState without importing the voice
// package; cmd/marathoncast's voiceNotifier converts between the two.
type VoiceState struct {
	Host       string                    `msgpack:"host"`
	VoiceUsers map[string]UserVoiceState `msgpack:"voiceUsers"`
}

type UserVoiceState struct {
	Active bool      `msgpack:"active"`
	Peak   float64   `msgpack:"peak"`
	DFT    []float64 `msgpack:"dft"`
}

// LiveSplitsUpdate is published whenever the Telemetry Poller persists
// a new Run for a runner.
type LiveSplitsUpdate struct {
	RunnerID int64      `msgpack:"runnerId"`
	Run      *domain.Run `msgpack:"run"`
}

type subscriberSet = map[*websocket.Conn]chan []byte

// Hub holds the four channels. One Hub is shared by every websocket
// handler goroutine.
type Hub struct {
	store *store.Store
	log   *slog.Logger

	snapshotMu   sync.RWMutex
	snapshotSubs subscriberSet

	voiceMu   sync.RWMutex
	voiceSubs subscriberSet

	splitsMu   sync.RWMutex
	splitsSubs subscriberSet

	claimMu     sync.Mutex
	claim       EditorClaim
	claimHolder *websocket.Conn
}

func New(st *store.Store, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		store:        st,
		log:          log,
		snapshotSubs: make(subscriberSet),
		voiceSubs:    make(subscriberSet),
		splitsSubs:   make(subscriberSet),
	}
}

// SubscribeSnapshots registers conn for state-snapshot pushes. The
// caller (a connection-owning goroutine) must drain the returned
// channel until it closes, then call UnsubscribeSnapshots.
func (h *Hub) SubscribeSnapshots(ctx context.Context, conn *websocket.Conn) <-chan []byte {
	ch := make(chan []byte, subBuffer)
	h.snapshotMu.Lock()
	h.snapshotSubs[conn] = ch
	h.snapshotMu.Unlock()

	if snap, err := h.assembleSnapshot(ctx); err == nil {
		h.sendOrDrop(ch, encode(snap))
	} else {
		h.log.Warn("webpush: initial snapshot failed", "error", err)
	}
	return ch
}

func (h *Hub) UnsubscribeSnapshots(conn *websocket.Conn) {
	h.snapshotMu.Lock()
	defer h.snapshotMu.Unlock()
	if ch, ok := h.snapshotSubs[conn]; ok {
		close(ch)
		delete(h.snapshotSubs, conn)
	}
}

// SubscribeVoice registers conn for voice-state pushes.
func (h *Hub) SubscribeVoice(conn *websocket.Conn) <-chan []byte {
	ch := make(chan []byte, subBuffer)
	h.voiceMu.Lock()
	h.voiceSubs[conn] = ch
	h.voiceMu.Unlock()
	return ch
}

func (h *Hub) UnsubscribeVoice(conn *websocket.Conn) {
	h.voiceMu.Lock()
	defer h.voiceMu.Unlock()
	if ch, ok := h.voiceSubs[conn]; ok {
		close(ch)
		delete(h.voiceSubs, conn)
	}
}

// SubscribeLiveSplits registers conn for live-splits pushes.
func (h *Hub) SubscribeLiveSplits(conn *websocket.Conn) <-chan []byte {
	ch := make(chan []byte, subBuffer)
	h.splitsMu.Lock()
	h.splitsSubs[conn] = ch
	h.splitsMu.Unlock()
	return ch
}

func (h *Hub) UnsubscribeLiveSplits(conn *websocket.Conn) {
	h.splitsMu.Lock()
	defer h.splitsMu.Unlock()
	if ch, ok := h.splitsSubs[conn]; ok {
		close(ch)
		delete(h.splitsSubs, conn)
	}
}

// sendOrDrop is the non-blocking drop-on-overflow send described in
// SPEC_FULL.md §5: when a subscriber's buffer is full, data is dropped
// for that subscriber and false is returned. The subscriber stays
// registered and its connection stays open.
func (h *Hub) sendOrDrop(ch chan []byte, data []byte) bool {
	select {
	case ch <- data:
		return true
	default:
		return false
	}
}

func encode(v any) []byte {
	data, err := wsproto.Encode(v)
	if err != nil {
		return nil
	}
	return data
}

// assembleSnapshot reads every entity the spec names for the
// state-snapshot channel.
func (h *Hub) assembleSnapshot(ctx context.Context) (*Snapshot, error) {
	events, err := h.store.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	participants, err := h.store.ListParticipants(ctx)
	if err != nil {
		return nil, err
	}
	runners, err := h.store.ListRunners(ctx)
	if err != nil {
		return nil, err
	}
	runs, err := h.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	streams, err := h.store.ListStreams(ctx)
	if err != nil {
		return nil, err
	}
	fields, err := h.store.ListCustomFields(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Events:       events,
		Participants: participants,
		Runners:      runners,
		Runs:         runs,
		Streams:      streams,
		CustomFields: fields,
	}, nil
}

// TriggerStateUpdate assembles a fresh snapshot and broadcasts it to
// every state-snapshot subscriber. Matches the store.NotifyFunc and
// streamactor.Notifier signatures (no context: the store's notify hook
// runs it in its own goroutine; the Stream Actor calls it directly).
func (h *Hub) TriggerStateUpdate() {
	ctx := context.Background()
	snap, err := h.assembleSnapshot(ctx)
	if err != nil {
		h.log.Error("webpush: assemble snapshot failed", "error", err)
		return
	}
	data := encode(snap)

	h.snapshotMu.RLock()
	defer h.snapshotMu.RUnlock()
	for _, ch := range h.snapshotSubs {
		if !h.sendOrDrop(ch, data) {
			h.log.Warn("webpush: dropping slow snapshot subscriber")
		}
	}
}

// PublishVoiceState fans a voice.VoiceState-shaped update out to voice
// subscribers. Accepts the already-converted webpush.VoiceState so this
// package never imports internal/voice.
func (h *Hub) PublishVoiceState(vs VoiceState) {
	data := encode(vs)
	h.voiceMu.RLock()
	defer h.voiceMu.RUnlock()
	for _, ch := range h.voiceSubs {
		h.sendOrDrop(ch, data)
	}
}

// PublishLiveSplits fans out a telemetry update.
func (h *Hub) PublishLiveSplits(runnerID int64, run *domain.Run) {
	data := encode(LiveSplitsUpdate{RunnerID: runnerID, Run: run})
	h.splitsMu.RLock()
	defer h.splitsMu.RUnlock()
	for _, ch := range h.splitsSubs {
		h.sendOrDrop(ch, data)
	}
}

// ClaimEditor attempts to take (or refresh) the single dashboard-editor
// slot for conn, identified by editor. Any existing claim is
// overwritten — there is no exclusivity beyond "last writer wins",
// matching spec.md's "single-value channel" wording.
func (h *Hub) ClaimEditor(conn *websocket.Conn, editor string, unixTime int64) EditorClaim {
	h.claimMu.Lock()
	defer h.claimMu.Unlock()
	h.claim = EditorClaim{UnixTime: unixTime, Editor: &editor}
	h.claimHolder = conn
	return h.claim
}

// CurrentClaim returns the last-known editor claim.
func (h *Hub) CurrentClaim() EditorClaim {
	h.claimMu.Lock()
	defer h.claimMu.Unlock()
	return h.claim
}

// ReleaseEditor clears the claim if and only if conn is still its
// holder — optimistic ownership, so a stale disconnect can't clobber a
// newer claimant.
func (h *Hub) ReleaseEditor(conn *websocket.Conn) {
	h.claimMu.Lock()
	defer h.claimMu.Unlock()
	if h.claimHolder == conn {
		h.claim = EditorClaim{}
		h.claimHolder = nil
	}
}
