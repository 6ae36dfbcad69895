package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kestrelrun/marathoncast/internal/domain"
	"github.com/kestrelrun/marathoncast/internal/eventactor"
	"github.com/kestrelrun/marathoncast/internal/hostactor"
	"github.com/kestrelrun/marathoncast/internal/router"
	"github.com/kestrelrun/marathoncast/internal/runneractor"
	"github.com/kestrelrun/marathoncast/internal/store"
	"github.com/kestrelrun/marathoncast/internal/streamactor"
	"github.com/kestrelrun/marathoncast/internal/webpush"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), t.TempDir()+"/db.sqlite", nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	hub := webpush.New(st, nil)
	st.NotifyFunc = hub.TriggerStateUpdate

	streams := streamactor.New(st, nil, nil, hub, nil)
	events := eventactor.New(st, streams, nil)
	runners := runneractor.New(st, nil, nil, nil)
	hosts := hostactor.New(st, hostactor.Settings{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go streams.Run(ctx)
	go events.Run(ctx)
	go runners.Run(ctx)
	go hosts.Run(ctx)
	time.Sleep(10 * time.Millisecond)

	rtr := router.New(st, streams, events, hosts)

	srv := New(st, hub, Actors{
		Events:  events,
		Runners: runners,
		Streams: streams,
		Hosts:   hosts,
		Router:  rtr,
	}, nil)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, st
}

func TestHealthzReturns200(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateAndGetParticipant(t *testing.T) {
	ts, _ := newTestServer(t)

	body, _ := json.Marshal(domain.Participant{Name: "Ike"})
	resp, err := http.Post(ts.URL+"/api/v1/participants/", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created domain.Participant
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotZero(t, created.ID)
	require.Equal(t, "Ike", created.Name)

	getResp, err := http.Get(ts.URL + "/api/v1/participants/" + strconv.FormatInt(created.ID, 10))
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)
}

func TestCreateEventAndListEvents(t *testing.T) {
	ts, _ := newTestServer(t)

	body, _ := json.Marshal(domain.Event{Name: "GDQ Block 1"})
	resp, err := http.Post(ts.URL+"/api/v1/events/", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	listResp, err := http.Get(ts.URL + "/api/v1/events/")
	require.NoError(t, err)
	defer listResp.Body.Close()

	var events []domain.Event
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&events))
	require.Len(t, events, 1)
	require.Equal(t, "GDQ Block 1", events[0].Name)
}

func TestDispatchCommandRequiresActiveStream(t *testing.T) {
	ts, _ := newTestServer(t)

	cmd := router.Command{Kind: router.KindStartTimer}
	body, _ := json.Marshal(cmd)
	resp, err := http.Post(ts.URL+"/api/v1/commands", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
