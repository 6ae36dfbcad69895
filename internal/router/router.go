// Package router translates commands arriving from chat slash
// commands, voice-channel presence changes, and the HTTP dashboard
// into actor requests. It does no queuing of its own — actor mailboxes
// already serialize everything it dispatches into.
package router

import (
	"context"
	"time"

	"github.com/kestrelrun/marathoncast/internal/domain"
	"github.com/kestrelrun/marathoncast/internal/hostactor"
	"github.com/kestrelrun/marathoncast/internal/store"
)

// StreamActor is the Stream Actor surface the router dispatches to.
type StreamActor interface {
	Update(ctx context.Context, newState *domain.Stream) error
}

// EventActor is the Event Actor surface the router dispatches to.
type EventActor interface {
	SetStartTime(ctx context.Context, eventID int64, at time.Time) error
	SetEndTime(ctx context.Context, eventID int64, at time.Time) error
}

// HostActor is the Host Actor surface the router dispatches to directly
// (stream lifecycle and commentator volume bypass the Stream Actor,
// since they don't change `stream_runners`).
type HostActor interface {
	StartStream(ctx context.Context, host string) error
	EndStream(ctx context.Context, host string) error
	SetStreamCommentators(ctx context.Context, host string, list []hostactor.Commentator) error
	SetCommentatorVolume(ctx context.Context, discordID string, pct int) error
}

// Kind discriminates the command surface named in spec.md §4.10.
type Kind int

const (
	KindToggleRunner Kind = iota
	KindSwap
	KindSetRoster
	KindRefresh
	KindSetLayout
	KindSetAudible
	KindStartTimer
	KindStopTimer
	KindSetStartTime
	KindSetEndTime
	KindStartStream
	KindStopStream
	KindSetCustomField
)

// Command is a fully-parsed router input. EventID is optional: zero
// means "resolve implicitly from the single active stream."
type Command struct {
	Kind    Kind
	EventID int64

	// KindToggleRunner / KindSwap / KindSetRoster
	Slot      int
	OtherSlot int
	RunnerID  int64
	Roster    map[int]int64

	// KindSetLayout
	Layout string

	// KindSetAudible
	AudibleRunnerID int64

	// KindSetStartTime / KindSetEndTime
	UnixMillis int64

	// KindSetCustomField
	FieldKey   string
	FieldValue *string
}

// Router dispatches parsed commands to the actors owning the state
// they touch.
type Router struct {
	store  *store.Store
	stream StreamActor
	event  EventActor
	host   HostActor
}

func New(st *store.Store, stream StreamActor, event EventActor, host HostActor) *Router {
	return &Router{store: st, stream: stream, event: event, host: host}
}

// Dispatch resolves the implicit event (if cmd.EventID is zero) and
// routes to the appropriate actor call.
func (r *Router) Dispatch(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case KindSetCustomField:
		if err := r.store.SetCustomField(ctx, cmd.FieldKey, cmd.FieldValue); err != nil {
			return err
		}
		return nil
	}

	eventID, st, err := r.resolveStream(ctx, cmd.EventID)
	if err != nil {
		return err
	}

	switch cmd.Kind {
	case KindToggleRunner:
		next := cloneRoster(st.StreamRunners)
		if existing, ok := next[cmd.Slot]; ok && existing == cmd.RunnerID {
			delete(next, cmd.Slot)
		} else {
			next[cmd.Slot] = cmd.RunnerID
		}
		st.StreamRunners = next
		return r.stream.Update(ctx, st)

	case KindSwap:
		next := cloneRoster(st.StreamRunners)
		a, aok := next[cmd.Slot]
		b, bok := next[cmd.OtherSlot]
		if aok {
			next[cmd.OtherSlot] = a
		} else {
			delete(next, cmd.OtherSlot)
		}
		if bok {
			next[cmd.Slot] = b
		} else {
			delete(next, cmd.Slot)
		}
		st.StreamRunners = next
		return r.stream.Update(ctx, st)

	case KindSetRoster:
		st.StreamRunners = cmd.Roster
		return r.stream.Update(ctx, st)

	case KindRefresh:
		return r.stream.Update(ctx, st)

	case KindSetLayout:
		st.RequestedLayout = &cmd.Layout
		return r.stream.Update(ctx, st)

	case KindSetAudible:
		id := cmd.AudibleRunnerID
		st.AudibleRunner = &id
		return r.stream.Update(ctx, st)

	case KindStartTimer:
		return r.event.SetStartTime(ctx, eventID, time.Now().UTC())

	case KindStopTimer:
		return r.event.SetEndTime(ctx, eventID, time.Now().UTC())

	case KindSetStartTime:
		return r.event.SetStartTime(ctx, eventID, time.UnixMilli(cmd.UnixMillis).UTC())

	case KindSetEndTime:
		return r.event.SetEndTime(ctx, eventID, time.UnixMilli(cmd.UnixMillis).UTC())

	case KindStartStream:
		return r.host.StartStream(ctx, st.HostName)

	case KindStopStream:
		return r.host.EndStream(ctx, st.HostName)

	default:
		return domain.Validationf("router: unknown command kind %d", cmd.Kind)
	}
}

func cloneRoster(in map[int]int64) map[int]int64 {
	out := make(map[int]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// resolveStream implements spec §4.10's implicit event-selection rule:
// an explicit eventID is used as-is; otherwise exactly one active
// stream must exist.
func (r *Router) resolveStream(ctx context.Context, eventID int64) (int64, *domain.Stream, error) {
	if eventID != 0 {
		st, err := r.store.GetStream(ctx, eventID)
		if err != nil {
			return 0, nil, err
		}
		return eventID, st, nil
	}

	streams, err := r.store.ListStreams(ctx)
	if err != nil {
		return 0, nil, err
	}
	switch len(streams) {
	case 0:
		return 0, nil, domain.Validationf("no active stream")
	case 1:
		return streams[0].EventID, streams[0], nil
	default:
		return 0, nil, domain.Validationf("multiple active streams: event argument required")
	}
}
