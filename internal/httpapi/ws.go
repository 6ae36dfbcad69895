package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kestrelrun/marathoncast/internal/webpush"
)

const pushWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsHandlers struct {
	hub *webpush.Hub
	log *slog.Logger
}

// snapshots streams the state-snapshot channel: one push immediately on
// connect, then one on every TriggerStateUpdate.
func (h *wsHandlers) snapshots(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("httpapi: ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ch := h.hub.SubscribeSnapshots(r.Context(), conn)
	defer h.hub.UnsubscribeSnapshots(conn)
	h.pump(conn, ch)
}

func (h *wsHandlers) voice(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("httpapi: ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ch := h.hub.SubscribeVoice(conn)
	defer h.hub.UnsubscribeVoice(conn)
	h.pump(conn, ch)
}

func (h *wsHandlers) splits(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("httpapi: ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ch := h.hub.SubscribeLiveSplits(conn)
	defer h.hub.UnsubscribeLiveSplits(conn)
	h.pump(conn, ch)
}

// pump writes every message from ch to conn until ch closes or the
// connection errors, and separately drains client reads so close frames
// and dead connections are noticed promptly.
func (h *wsHandlers) pump(conn *websocket.Conn, ch <-chan []byte) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(pushWriteTimeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// editor is the single-value dashboard-editor claim channel: clients
// send a claim request as JSON, receive the current (or newly granted)
// claim, and the claim is released when the connection drops.
func (h *wsHandlers) editor(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("httpapi: ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	defer h.hub.ReleaseEditor(conn)

	h.writeClaim(conn, h.hub.CurrentClaim())

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req struct {
			Editor string `json:"editor"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}

		claim := h.hub.ClaimEditor(conn, req.Editor, time.Now().UnixMilli())
		h.writeClaim(conn, claim)
	}
}

func (h *wsHandlers) writeClaim(conn *websocket.Conn, claim webpush.EditorClaim) {
	data, err := json.Marshal(claim)
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(pushWriteTimeout))
	conn.WriteMessage(websocket.TextMessage, data)
}
