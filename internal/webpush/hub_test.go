package webpush

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/kestrelrun/marathoncast/internal/domain"
	"github.com/kestrelrun/marathoncast/internal/store"
)

func newTestHub(t *testing.T) (*Hub, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), t.TempDir()+"/db.sqlite", nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st, nil), st
}

func dialClient(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + srv.URL[len("http"):]
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSubscribeSnapshotsPushesOnConnect(t *testing.T) {
	hub, st := newTestHub(t)
	_, err := st.CreateParticipant(context.Background(), &domain.Participant{Name: "Ike"})
	require.NoError(t, err)

	var serverConn *websocket.Conn
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConn = conn
		ch := hub.SubscribeSnapshots(r.Context(), conn)
		msg := <-ch
		conn.WriteMessage(websocket.BinaryMessage, msg)
	}))
	defer srv.Close()

	client := dialClient(t, srv)
	_, data, err := client.ReadMessage()
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, msgpack.Unmarshal(data, &snap))
	require.Len(t, snap.Participants, 1)
	require.Equal(t, "Ike", snap.Participants[0].Name)

	hub.UnsubscribeSnapshots(serverConn)
}

func TestTriggerStateUpdateDropsSlowSubscriber(t *testing.T) {
	hub, _ := newTestHub(t)

	ch := make(chan []byte, subBuffer)
	hub.snapshotMu.Lock()
	hub.snapshotSubs[nil] = ch
	hub.snapshotMu.Unlock()

	for i := 0; i < subBuffer; i++ {
		ch <- []byte("x")
	}

	hub.TriggerStateUpdate()

	require.Len(t, ch, subBuffer, "channel stays full; overflowing send is dropped, not blocked")
}

func TestClaimEditorLastWriterWins(t *testing.T) {
	hub, _ := newTestHub(t)

	connA := &websocket.Conn{}
	connB := &websocket.Conn{}

	claim := hub.ClaimEditor(connA, "alice", 100)
	require.Equal(t, "alice", *claim.Editor)

	claim = hub.ClaimEditor(connB, "bob", 200)
	require.Equal(t, "bob", *claim.Editor)
	require.Equal(t, claim, hub.CurrentClaim())
}

func TestReleaseEditorOnlyClearsIfStillHolder(t *testing.T) {
	hub, _ := newTestHub(t)

	connA := &websocket.Conn{}
	connB := &websocket.Conn{}

	hub.ClaimEditor(connA, "alice", 100)
	hub.ClaimEditor(connB, "bob", 200)

	hub.ReleaseEditor(connA)
	require.NotNil(t, hub.CurrentClaim().Editor, "stale release from a superseded holder must not clear the current claim")

	hub.ReleaseEditor(connB)
	require.Nil(t, hub.CurrentClaim().Editor)
}

func TestPublishVoiceStateFansOutToSubscribers(t *testing.T) {
	hub, _ := newTestHub(t)

	conn := &websocket.Conn{}
	ch := hub.SubscribeVoice(conn)
	defer hub.UnsubscribeVoice(conn)

	hub.PublishVoiceState(VoiceState{Host: "Stage1", VoiceUsers: map[string]UserVoiceState{
		"alice": {Active: true, Peak: 0.8},
	}})

	data := <-ch
	var vs VoiceState
	require.NoError(t, msgpack.Unmarshal(data, &vs))
	require.Equal(t, "Stage1", vs.Host)
	require.True(t, vs.VoiceUsers["alice"].Active)
}
