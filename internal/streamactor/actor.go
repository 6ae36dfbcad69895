// Package streamactor owns the desired per-broadcast Stream state,
// computes the modification set driving minimal updates, and hands
// reconciliation work to the Host Actor.
package streamactor

import (
	"context"
	"log/slog"

	"github.com/kestrelrun/marathoncast/internal/actor"
	"github.com/kestrelrun/marathoncast/internal/domain"
	"github.com/kestrelrun/marathoncast/internal/store"
)

// HostDispatcher is the Host Actor surface the Stream Actor depends on.
type HostDispatcher interface {
	EnsureConnected(ctx context.Context, hostName string) error
	UpdateState(ctx context.Context, eventID int64, mods []Modification) error
}

// RunnerRefresher is the Runner Actor surface used to resolve playlist
// URLs for newly added runners.
type RunnerRefresher interface {
	RefreshStream(ctx context.Context, runnerID int64) (bool, error)
}

// Notifier is the Web Push surface used to announce dashboard-visible
// state changes. The Stream Actor calls it after creating and after
// deleting a stream, in addition to the Store's own notify hook; Reload
// and Update do not call it.
type Notifier interface {
	TriggerStateUpdate()
}

type request interface{ isRequest() }

type createReq struct {
	EventID int64
	Host    string
	Reply   actor.Reply[struct{}]
}

func (createReq) isRequest() {}

type updateReq struct {
	NewState *domain.Stream
	Reply    actor.Reply[struct{}]
}

func (updateReq) isRequest() {}

type reloadReq struct {
	EventID int64
	Reply   actor.Reply[struct{}]
}

func (reloadReq) isRequest() {}

type deleteReq struct {
	EventID int64
	Reply   actor.Reply[struct{}]
}

func (deleteReq) isRequest() {}

// Actor is the single-consumer Stream Actor.
type Actor struct {
	store    *store.Store
	host     HostDispatcher
	runners  RunnerRefresher
	notifier Notifier
	log      *slog.Logger

	mailbox actor.Mailbox[request]
}

func New(st *store.Store, host HostDispatcher, runners RunnerRefresher, notifier Notifier, log *slog.Logger) *Actor {
	if log == nil {
		log = slog.Default()
	}
	return &Actor{
		store:    st,
		host:     host,
		runners:  runners,
		notifier: notifier,
		log:      log,
		mailbox:  actor.NewMailbox[request](256),
	}
}

// Run consumes the mailbox until ctx is cancelled. Call it in its own
// goroutine.
func (a *Actor) Run(ctx context.Context) {
	actor.Run(ctx, a.mailbox, a.handle)
}

func (a *Actor) handle(ctx context.Context, req request) {
	switch r := req.(type) {
	case createReq:
		_, err := a.create(ctx, r.EventID, r.Host)
		r.Reply.Send(struct{}{}, err)
	case updateReq:
		err := a.update(ctx, r.NewState)
		r.Reply.Send(struct{}{}, err)
	case reloadReq:
		err := a.reload(ctx, r.EventID)
		r.Reply.Send(struct{}{}, err)
	case deleteReq:
		err := a.del(ctx, r.EventID)
		r.Reply.Send(struct{}{}, err)
	}
}

// Create checks all four preconditions in order, aborting with a
// descriptive validation error on the first failure.
func (a *Actor) Create(ctx context.Context, eventID int64, hostName string) error {
	req := createReq{EventID: eventID, Host: hostName, Reply: actor.NewReply[struct{}]()}
	if err := a.mailbox.Send(ctx, req); err != nil {
		return err
	}
	_, err := req.Reply.Wait(ctx)
	return err
}

func (a *Actor) create(ctx context.Context, eventID int64, hostName string) (*domain.Stream, error) {
	if _, err := a.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}

	if err := a.host.EnsureConnected(ctx, hostName); err != nil {
		return nil, domain.Validationf("host %q unreachable: %v", hostName, err)
	}

	inUse, err := a.store.IsHostInUse(ctx, hostName)
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, domain.Validationf("host %q already has a stream", hostName)
	}

	if _, err := a.store.GetStream(ctx, eventID); err == nil {
		return nil, domain.Validationf("event %d already has a stream", eventID)
	}

	if err := a.store.CreateStream(ctx, eventID, hostName); err != nil {
		return nil, err
	}
	a.notifier.TriggerStateUpdate()
	return a.store.GetStream(ctx, eventID)
}

func (a *Actor) Update(ctx context.Context, newState *domain.Stream) error {
	req := updateReq{NewState: newState, Reply: actor.NewReply[struct{}]()}
	if err := a.mailbox.Send(ctx, req); err != nil {
		return err
	}
	_, err := req.Reply.Wait(ctx)
	return err
}

// update is the reconciliation heart of the Stream Actor: see spec §4.4.
func (a *Actor) update(ctx context.Context, newState *domain.Stream) error {
	old, err := a.store.GetStream(ctx, newState.EventID)
	if err != nil {
		return err
	}

	for slot, runnerID := range newState.StreamRunners {
		if oldRunner, ok := old.StreamRunners[slot]; ok && oldRunner == runnerID {
			continue
		}
		if _, alreadyPresent := containsRunner(old.StreamRunners, runnerID); alreadyPresent {
			continue
		}
		if _, err := a.runners.RefreshStream(ctx, runnerID); err != nil {
			a.log.Warn("streamactor: refresh stream failed", "runner_id", runnerID, "err", err)
		}
	}

	mods := Diff(old, newState)

	if err := a.store.SaveStream(ctx, newState); err != nil {
		return err
	}

	if err := a.host.UpdateState(ctx, newState.EventID, mods); err != nil {
		a.log.Warn("streamactor: host update failed", "event_id", newState.EventID, "err", err)
		return err
	}
	return nil
}

func containsRunner(slots map[int]int64, runnerID int64) (int, bool) {
	for slot, r := range slots {
		if r == runnerID {
			return slot, true
		}
	}
	return 0, false
}

func (a *Actor) Reload(ctx context.Context, eventID int64) error {
	req := reloadReq{EventID: eventID, Reply: actor.NewReply[struct{}]()}
	if err := a.mailbox.Send(ctx, req); err != nil {
		return err
	}
	_, err := req.Reply.Wait(ctx)
	return err
}

func (a *Actor) reload(ctx context.Context, eventID int64) error {
	if _, err := a.store.GetStream(ctx, eventID); err != nil {
		return err
	}
	return a.host.UpdateState(ctx, eventID, nil)
}

func (a *Actor) Delete(ctx context.Context, eventID int64) error {
	req := deleteReq{EventID: eventID, Reply: actor.NewReply[struct{}]()}
	if err := a.mailbox.Send(ctx, req); err != nil {
		return err
	}
	_, err := req.Reply.Wait(ctx)
	return err
}

func (a *Actor) del(ctx context.Context, eventID int64) error {
	if err := a.store.DeleteStream(ctx, eventID); err != nil {
		return err
	}
	a.notifier.TriggerStateUpdate()
	return nil
}
