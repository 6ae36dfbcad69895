// Package telemetry maintains one websocket supervisor per subscribed
// runner, feeding parsed run snapshots through the Store and notifying
// Web Push of live-splits updates.
package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kestrelrun/marathoncast/internal/domain"
	"github.com/kestrelrun/marathoncast/internal/store"
)

const reconnectDelay = 30 * time.Second

// Notifier is the Web Push surface used to announce a live-splits update
// for one runner.
type Notifier interface {
	NotifyLiveSplits(runnerID int64)
}

// wireRun mirrors the provider's run-snapshot JSON shape verbatim.
type wireRun struct {
	User string      `json:"user"`
	Run  wireRunBody `json:"run"`
}

type wireRunBody struct {
	PB                *float64    `json:"pb"`
	SOB               *float64    `json:"sob"`
	BestPossible      *float64    `json:"bestPossible"`
	Delta             *float64    `json:"delta"`
	StartedAt         *string     `json:"startedAt"`
	CurrentComparison string      `json:"currentComparison"`
	CurrentSplitName  string      `json:"currentSplitName"`
	CurrentSplitIndex int         `json:"currentSplitIndex"`
	Splits            []wireSplit `json:"splits"`
}

type wireSplit struct {
	Name        string   `json:"name"`
	PBSplitTime *float64 `json:"pbSplitTime"`
	SplitTime   *float64 `json:"splitTime"`
}

func (b wireRunBody) toDomain(runnerID int64) domain.Run {
	var startedAt *time.Time
	if b.StartedAt != nil {
		if t, err := time.Parse(time.RFC3339, *b.StartedAt); err == nil {
			startedAt = &t
		}
	}
	splits := make([]domain.Split, 0, len(b.Splits))
	for _, s := range b.Splits {
		splits = append(splits, domain.Split{Name: s.Name, PBSplitTime: s.PBSplitTime, SplitTime: s.SplitTime})
	}
	return domain.Run{
		RunnerID:           runnerID,
		PB:                 b.PB,
		SOB:                b.SOB,
		BestPossible:       b.BestPossible,
		Delta:              b.Delta,
		StartedAt:          startedAt,
		CurrentComparison:  b.CurrentComparison,
		CurrentSplitName:   b.CurrentSplitName,
		CurrentSplitIndex:  b.CurrentSplitIndex,
		Splits:             splits,
	}
}

type subscription struct {
	runnerID int64
	cancel   context.CancelFunc
}

// Poller is the Telemetry Poller. It has no mailbox of its own — AddRunner
// and RemoveRunner are plain non-blocking calls guarded by a mutex, per
// spec §5 ("the only process-wide mutable non-actor state is the
// live_handles set").
type Poller struct {
	store    *store.Store
	notifier Notifier
	log      *slog.Logger
	url      func(handle string) string

	mu      sync.Mutex
	handles map[string]*subscription
}

func New(st *store.Store, notifier Notifier, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		store:    st,
		notifier: notifier,
		log:      log,
		url:      func(handle string) string { return "wss://ws.therun.gg/?username=" + handle },
		handles:  make(map[string]*subscription),
	}
}

// AddRunner inserts the handle into the live set and spawns a supervisor.
// A handle already subscribed is left untouched — invariant #4 allows at
// most one subscription per telemetry handle.
func (p *Poller) AddRunner(r domain.Runner) {
	if r.TelemetryHandle == nil || *r.TelemetryHandle == "" {
		return
	}
	handle := *r.TelemetryHandle

	p.mu.Lock()
	if _, ok := p.handles[handle]; ok {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.handles[handle] = &subscription{runnerID: r.ParticipantID, cancel: cancel}
	p.mu.Unlock()

	go p.supervise(ctx, handle, r.ParticipantID)
}

// RemoveRunner removes the handle from the live set and cancels its
// supervisor.
func (p *Poller) RemoveRunner(r domain.Runner) {
	if r.TelemetryHandle == nil {
		return
	}
	handle := *r.TelemetryHandle

	p.mu.Lock()
	sub, ok := p.handles[handle]
	if ok {
		delete(p.handles, handle)
	}
	p.mu.Unlock()

	if ok {
		sub.cancel()
	}
}

func (p *Poller) isLive(handle string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.handles[handle]
	return ok
}

// supervise dials the provider, streams run snapshots until the socket
// closes or ctx is cancelled, then reconnects after 30s if the handle is
// still live.
func (p *Poller) supervise(ctx context.Context, handle string, runnerID int64) {
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, p.url(handle), nil)
		if err != nil {
			p.log.Warn("telemetry: dial failed", "handle", handle, "err", err)
		} else {
			p.log.Info("telemetry: connected", "handle", handle)
			p.readLoop(ctx, conn, handle, runnerID)
			conn.Close()
			p.log.Warn("telemetry: connection closed", "handle", handle)
		}

		if ctx.Err() != nil || !p.isLive(handle) {
			return
		}

		select {
		case <-time.After(reconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) readLoop(ctx context.Context, conn *websocket.Conn, handle string, runnerID int64) {
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		conn.Close()
		close(done)
	}()
	defer func() {
		select {
		case <-done:
		default:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg wireRun
		if err := json.Unmarshal(data, &msg); err != nil {
			p.log.Warn("telemetry: parse failed", "handle", handle, "err", err)
			continue
		}

		run := msg.Run.toDomain(runnerID)
		if err := p.store.SaveRun(ctx, &run); err != nil {
			p.log.Error("telemetry: save run failed", "handle", handle, "err", err)
			continue
		}
		p.notifier.NotifyLiveSplits(runnerID)
	}
}
