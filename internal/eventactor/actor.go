// Package eventactor serializes Event CRUD and cascades deletes through
// the Stream Actor when an Event still owns a Stream.
package eventactor

import (
	"context"
	"log/slog"
	"time"

	"github.com/kestrelrun/marathoncast/internal/actor"
	"github.com/kestrelrun/marathoncast/internal/domain"
	"github.com/kestrelrun/marathoncast/internal/store"
)

// StreamDeleter is the Stream Actor surface used to cascade deletes.
type StreamDeleter interface {
	Delete(ctx context.Context, eventID int64) error
}

type request interface{ isRequest() }

type createReq struct {
	Event domain.Event
	Reply actor.Reply[int64]
}

func (createReq) isRequest() {}

type updateReq struct {
	Event domain.Event
	Reply actor.Reply[struct{}]
}

func (updateReq) isRequest() {}

type setStartReq struct {
	EventID int64
	At      time.Time
	Reply   actor.Reply[struct{}]
}

func (setStartReq) isRequest() {}

type setEndReq struct {
	EventID int64
	At      time.Time
	Reply   actor.Reply[struct{}]
}

func (setEndReq) isRequest() {}

type addRunnerReq struct {
	EventID, RunnerID int64
	Reply             actor.Reply[struct{}]
}

func (addRunnerReq) isRequest() {}

type removeRunnerReq struct {
	EventID, RunnerID int64
	Reply             actor.Reply[struct{}]
}

func (removeRunnerReq) isRequest() {}

type deleteReq struct {
	EventID int64
	Reply   actor.Reply[struct{}]
}

func (deleteReq) isRequest() {}

// Actor is the single-consumer Event Actor.
type Actor struct {
	store   *store.Store
	streams StreamDeleter
	log     *slog.Logger

	mailbox actor.Mailbox[request]
}

func New(st *store.Store, streams StreamDeleter, log *slog.Logger) *Actor {
	if log == nil {
		log = slog.Default()
	}
	return &Actor{store: st, streams: streams, log: log, mailbox: actor.NewMailbox[request](256)}
}

func (a *Actor) Run(ctx context.Context) {
	actor.Run(ctx, a.mailbox, a.handle)
}

func (a *Actor) handle(ctx context.Context, req request) {
	switch r := req.(type) {
	case createReq:
		id, err := a.store.CreateEvent(ctx, &r.Event)
		r.Reply.Send(id, err)
	case updateReq:
		err := a.store.UpdateEvent(ctx, &r.Event)
		r.Reply.Send(struct{}{}, err)
	case setStartReq:
		err := a.store.SetEventTimerStart(ctx, r.EventID, &r.At)
		r.Reply.Send(struct{}{}, err)
	case setEndReq:
		err := a.store.SetEventTimerEnd(ctx, r.EventID, &r.At)
		r.Reply.Send(struct{}{}, err)
	case addRunnerReq:
		err := a.store.AddRunnerToEvent(ctx, r.EventID, r.RunnerID)
		r.Reply.Send(struct{}{}, err)
	case removeRunnerReq:
		err := a.store.RemoveRunnerFromEvent(ctx, r.EventID, r.RunnerID)
		r.Reply.Send(struct{}{}, err)
	case deleteReq:
		err := a.delete(ctx, r.EventID)
		r.Reply.Send(struct{}{}, err)
	}
}

func (a *Actor) Create(ctx context.Context, event domain.Event) (int64, error) {
	req := createReq{Event: event, Reply: actor.NewReply[int64]()}
	if err := a.mailbox.Send(ctx, req); err != nil {
		return 0, err
	}
	return req.Reply.Wait(ctx)
}

func (a *Actor) Update(ctx context.Context, event domain.Event) error {
	req := updateReq{Event: event, Reply: actor.NewReply[struct{}]()}
	if err := a.mailbox.Send(ctx, req); err != nil {
		return err
	}
	_, err := req.Reply.Wait(ctx)
	return err
}

func (a *Actor) SetStartTime(ctx context.Context, eventID int64, at time.Time) error {
	req := setStartReq{EventID: eventID, At: at, Reply: actor.NewReply[struct{}]()}
	if err := a.mailbox.Send(ctx, req); err != nil {
		return err
	}
	_, err := req.Reply.Wait(ctx)
	return err
}

func (a *Actor) SetEndTime(ctx context.Context, eventID int64, at time.Time) error {
	req := setEndReq{EventID: eventID, At: at, Reply: actor.NewReply[struct{}]()}
	if err := a.mailbox.Send(ctx, req); err != nil {
		return err
	}
	_, err := req.Reply.Wait(ctx)
	return err
}

// AddRunner and RemoveRunner are idempotent per spec §4.3.
func (a *Actor) AddRunner(ctx context.Context, eventID, runnerID int64) error {
	req := addRunnerReq{EventID: eventID, RunnerID: runnerID, Reply: actor.NewReply[struct{}]()}
	if err := a.mailbox.Send(ctx, req); err != nil {
		return err
	}
	_, err := req.Reply.Wait(ctx)
	return err
}

func (a *Actor) RemoveRunner(ctx context.Context, eventID, runnerID int64) error {
	req := removeRunnerReq{EventID: eventID, RunnerID: runnerID, Reply: actor.NewReply[struct{}]()}
	if err := a.mailbox.Send(ctx, req); err != nil {
		return err
	}
	_, err := req.Reply.Wait(ctx)
	return err
}

func (a *Actor) Delete(ctx context.Context, eventID int64) error {
	req := deleteReq{EventID: eventID, Reply: actor.NewReply[struct{}]()}
	if err := a.mailbox.Send(ctx, req); err != nil {
		return err
	}
	_, err := req.Reply.Wait(ctx)
	return err
}

// delete queries whether a Stream exists for the event; if so, it issues
// Stream.Delete(event) first and only then removes the Event row.
func (a *Actor) delete(ctx context.Context, eventID int64) error {
	hasStream, err := a.store.HasStream(ctx, eventID)
	if err != nil {
		return err
	}
	if hasStream {
		if err := a.streams.Delete(ctx, eventID); err != nil {
			return err
		}
	}
	return a.store.DeleteEvent(ctx, eventID)
}
