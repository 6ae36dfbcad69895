// Package runneractor serializes Runner CRUD and keeps the Telemetry
// Poller's subscriptions in sync with each runner's telemetry handle.
package runneractor

import (
	"context"
	"log/slog"

	"github.com/kestrelrun/marathoncast/internal/actor"
	"github.com/kestrelrun/marathoncast/internal/domain"
	"github.com/kestrelrun/marathoncast/internal/store"
)

// TelemetrySubscriber is the Telemetry Poller surface used to add/remove
// per-runner websocket subscriptions. Both calls are non-blocking sends.
type TelemetrySubscriber interface {
	AddRunner(runner domain.Runner)
	RemoveRunner(runner domain.Runner)
}

// Resolver is the Media Resolver surface used by RefreshStream.
type Resolver interface {
	Resolve(ctx context.Context, streamHandle string) (map[string]string, error)
}

type request interface{ isRequest() }

type createReq struct {
	Runner domain.Runner
	Reply  actor.Reply[struct{}]
}

func (createReq) isRequest() {}

type updateReq struct {
	Runner domain.Runner
	Reply  actor.Reply[struct{}]
}

func (updateReq) isRequest() {}

type refreshReq struct {
	RunnerID int64
	Reply    actor.Reply[bool]
}

func (refreshReq) isRequest() {}

type deleteReq struct {
	RunnerID int64
	Reply    actor.Reply[struct{}]
}

func (deleteReq) isRequest() {}

// Actor is the single-consumer Runner Actor.
type Actor struct {
	store     *store.Store
	telemetry TelemetrySubscriber
	resolver  Resolver
	log       *slog.Logger

	mailbox actor.Mailbox[request]
}

func New(st *store.Store, telemetry TelemetrySubscriber, resolver Resolver, log *slog.Logger) *Actor {
	if log == nil {
		log = slog.Default()
	}
	return &Actor{store: st, telemetry: telemetry, resolver: resolver, log: log, mailbox: actor.NewMailbox[request](256)}
}

// Run consumes the mailbox until ctx is cancelled. On startup it
// registers telemetry subscriptions for every runner with a non-empty
// telemetry handle, per spec §4.2.
func (a *Actor) Run(ctx context.Context) {
	if err := a.registerExistingTelemetry(ctx); err != nil {
		a.log.Error("runneractor: startup telemetry registration failed", "err", err)
	}
	actor.Run(ctx, a.mailbox, a.handle)
}

func (a *Actor) registerExistingTelemetry(ctx context.Context) error {
	runners, err := a.store.ListRunners(ctx)
	if err != nil {
		return err
	}
	for _, r := range runners {
		if r.TelemetryHandle != nil && *r.TelemetryHandle != "" {
			a.telemetry.AddRunner(*r)
		}
	}
	return nil
}

func (a *Actor) handle(ctx context.Context, req request) {
	switch r := req.(type) {
	case createReq:
		err := a.create(ctx, r.Runner)
		r.Reply.Send(struct{}{}, err)
	case updateReq:
		err := a.update(ctx, r.Runner)
		r.Reply.Send(struct{}{}, err)
	case refreshReq:
		changed, err := a.refresh(ctx, r.RunnerID)
		r.Reply.Send(changed, err)
	case deleteReq:
		err := a.delete(ctx, r.RunnerID)
		r.Reply.Send(struct{}{}, err)
	}
}

func (a *Actor) Create(ctx context.Context, runner domain.Runner) error {
	req := createReq{Runner: runner, Reply: actor.NewReply[struct{}]()}
	if err := a.mailbox.Send(ctx, req); err != nil {
		return err
	}
	_, err := req.Reply.Wait(ctx)
	return err
}

func (a *Actor) create(ctx context.Context, r domain.Runner) error {
	if err := a.store.CreateRunner(ctx, &r); err != nil {
		return err
	}
	if r.TelemetryHandle != nil && *r.TelemetryHandle != "" {
		a.telemetry.AddRunner(r)
	}
	return nil
}

func (a *Actor) Update(ctx context.Context, runner domain.Runner) error {
	req := updateReq{Runner: runner, Reply: actor.NewReply[struct{}]()}
	if err := a.mailbox.Send(ctx, req); err != nil {
		return err
	}
	_, err := req.Reply.Wait(ctx)
	return err
}

// update compares old and new telemetry handles; on change it sends
// RemoveRunner(old) then AddRunner(new), both non-blocking.
func (a *Actor) update(ctx context.Context, r domain.Runner) error {
	old, err := a.store.GetRunner(ctx, r.ParticipantID)
	if err != nil {
		return err
	}

	if err := a.store.UpdateRunner(ctx, &r); err != nil {
		return err
	}

	oldHandle, newHandle := "", ""
	if old.TelemetryHandle != nil {
		oldHandle = *old.TelemetryHandle
	}
	if r.TelemetryHandle != nil {
		newHandle = *r.TelemetryHandle
	}
	if oldHandle != newHandle {
		if oldHandle != "" {
			a.telemetry.RemoveRunner(*old)
		}
		if newHandle != "" {
			a.telemetry.AddRunner(r)
		}
	}
	return nil
}

// RefreshStream invokes the Media Resolver, picks the best-quality URL
// from the result and, if it differs from the cached playlist URL, writes
// it back through the Store and reports true.
func (a *Actor) RefreshStream(ctx context.Context, runnerID int64) (bool, error) {
	req := refreshReq{RunnerID: runnerID, Reply: actor.NewReply[bool]()}
	if err := a.mailbox.Send(ctx, req); err != nil {
		return false, err
	}
	return req.Reply.Wait(ctx)
}

func (a *Actor) refresh(ctx context.Context, runnerID int64) (bool, error) {
	r, err := a.store.GetRunner(ctx, runnerID)
	if err != nil {
		return false, err
	}
	if r.StreamHandle == nil || *r.StreamHandle == "" {
		return false, nil
	}

	resolved, err := a.resolver.Resolve(ctx, *r.StreamHandle)
	if err != nil {
		a.log.Warn("runneractor: resolve failed", "runner_id", runnerID, "err", err)
		return false, nil
	}

	best := bestQualityURL(resolved)
	if best == "" {
		return false, nil
	}
	if r.CachedPlaylistURL != nil && *r.CachedPlaylistURL == best {
		return false, nil
	}

	if err := a.store.SetCachedPlaylistURL(ctx, runnerID, &best); err != nil {
		return false, err
	}
	return true, nil
}

// bestQualityURL prefers "best", then "source", then any entry.
func bestQualityURL(byQuality map[string]string) string {
	for _, preferred := range []string{"best", "source"} {
		if u, ok := byQuality[preferred]; ok {
			return u
		}
	}
	for _, u := range byQuality {
		return u
	}
	return ""
}

// Delete refuses (error) if any Event still references the runner.
func (a *Actor) Delete(ctx context.Context, runnerID int64) error {
	req := deleteReq{RunnerID: runnerID, Reply: actor.NewReply[struct{}]()}
	if err := a.mailbox.Send(ctx, req); err != nil {
		return err
	}
	_, err := req.Reply.Wait(ctx)
	return err
}

func (a *Actor) delete(ctx context.Context, runnerID int64) error {
	events, err := a.store.EventsForRunner(ctx, runnerID)
	if err != nil {
		return err
	}
	if len(events) > 0 {
		return domain.Validationf("runner %d is referenced by %d event(s)", runnerID, len(events))
	}

	runner, err := a.store.GetRunner(ctx, runnerID)
	if err != nil {
		return err
	}
	if err := a.store.DeleteRunner(ctx, runnerID); err != nil {
		return err
	}
	if runner.TelemetryHandle != nil && *runner.TelemetryHandle != "" {
		a.telemetry.RemoveRunner(*runner)
	}
	return nil
}
