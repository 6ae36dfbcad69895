// Package hostactor maintains live client connections to broadcast
// engines and applies Stream Actor modification sets to them.
package hostactor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/kestrelrun/marathoncast/internal/actor"
	"github.com/kestrelrun/marathoncast/internal/domain"
	"github.com/kestrelrun/marathoncast/internal/hostactor/engineclient"
	"github.com/kestrelrun/marathoncast/internal/store"
	"github.com/kestrelrun/marathoncast/internal/streamactor"
)

// Dialer opens a Client for a host's engine config. Exposed so tests can
// substitute a fake engine without a real websocket.
type Dialer func(ctx context.Context, cfg engineclient.Config) (engineclient.Client, error)

type request interface{ isRequest() }

type ensureConnectedReq struct {
	Host  string
	Reply actor.Reply[struct{}]
}

func (ensureConnectedReq) isRequest() {}

type updateStateReq struct {
	EventID int64
	Mods    []streamactor.Modification
	Reply   actor.Reply[struct{}]
}

func (updateStateReq) isRequest() {}

type startStreamReq struct {
	Host  string
	Reply actor.Reply[struct{}]
}

func (startStreamReq) isRequest() {}

type endStreamReq struct {
	Host  string
	Reply actor.Reply[struct{}]
}

func (endStreamReq) isRequest() {}

type getStateReq struct {
	Reply actor.Reply[map[string]HostState]
}

func (getStateReq) isRequest() {}

type setCommentatorsReq struct {
	Host  string
	List  []Commentator
	Reply actor.Reply[struct{}]
}

func (setCommentatorsReq) isRequest() {}

type setCommentatorVolumeReq struct {
	DiscordID string
	Pct       int
	Reply     actor.Reply[struct{}]
}

func (setCommentatorVolumeReq) isRequest() {}

// Actor is the single-consumer Host Actor.
type Actor struct {
	store    *store.Store
	settings Settings
	dial     Dialer
	log      *slog.Logger

	mu      sync.Mutex
	clients map[string]engineclient.Client

	mailbox actor.Mailbox[request]
}

func New(st *store.Store, settings Settings, dial Dialer, log *slog.Logger) *Actor {
	if log == nil {
		log = slog.Default()
	}
	if dial == nil {
		dial = engineclient.Dial
	}
	return &Actor{
		store:    st,
		settings: settings,
		dial:     dial,
		log:      log,
		clients:  make(map[string]engineclient.Client),
		mailbox:  actor.NewMailbox[request](256),
	}
}

func (a *Actor) Run(ctx context.Context) {
	actor.Run(ctx, a.mailbox, a.handle)
}

func (a *Actor) handle(ctx context.Context, req request) {
	switch r := req.(type) {
	case ensureConnectedReq:
		_, err := a.clientFor(ctx, r.Host)
		r.Reply.Send(struct{}{}, err)
	case updateStateReq:
		err := a.updateState(ctx, r.EventID, r.Mods)
		r.Reply.Send(struct{}{}, err)
	case startStreamReq:
		err := a.startStream(ctx, r.Host)
		r.Reply.Send(struct{}{}, err)
	case endStreamReq:
		err := a.endStream(ctx, r.Host)
		r.Reply.Send(struct{}{}, err)
	case getStateReq:
		r.Reply.Send(a.getState(ctx), nil)
	case setCommentatorsReq:
		err := a.setStreamCommentators(ctx, r.Host, r.List)
		r.Reply.Send(struct{}{}, err)
	case setCommentatorVolumeReq:
		val := strconv.Itoa(r.Pct)
		err := a.store.SetCustomField(ctx, commentatorGainKey(r.DiscordID), &val)
		r.Reply.Send(struct{}{}, err)
	}
}

func commentatorGainKey(discordID string) string { return "voice_gain:" + discordID }

// clientFor lazily (re)establishes a client for host, evicting a stale one
// first (a cheap health call that fails).
func (a *Actor) clientFor(ctx context.Context, host string) (engineclient.Client, error) {
	a.mu.Lock()
	c, ok := a.clients[host]
	a.mu.Unlock()

	if ok {
		if _, err := c.GetVersion(ctx); err == nil {
			return c, nil
		}
		a.mu.Lock()
		delete(a.clients, host)
		a.mu.Unlock()
		c.Close()
	}

	cfg, ok := a.settings.hostByName(host)
	if !ok {
		return nil, domain.Validationf("unknown host %q", host)
	}

	client, err := a.dial(ctx, engineclient.Config{IP: cfg.Engine.IP, Port: cfg.Engine.Port, Password: cfg.Engine.Password})
	if err != nil {
		return nil, fmt.Errorf("connect host %q: %w", host, err)
	}

	a.mu.Lock()
	a.clients[host] = client
	a.mu.Unlock()
	return client, nil
}

// EnsureConnected is consumed by the Stream Actor's Create precondition
// check (b).
func (a *Actor) EnsureConnected(ctx context.Context, host string) error {
	req := ensureConnectedReq{Host: host, Reply: actor.NewReply[struct{}]()}
	if err := a.mailbox.Send(ctx, req); err != nil {
		return err
	}
	_, err := req.Reply.Wait(ctx)
	return err
}

// UpdateState is consumed by the Stream Actor after persisting new state.
func (a *Actor) UpdateState(ctx context.Context, eventID int64, mods []streamactor.Modification) error {
	req := updateStateReq{EventID: eventID, Mods: mods, Reply: actor.NewReply[struct{}]()}
	if err := a.mailbox.Send(ctx, req); err != nil {
		return err
	}
	_, err := req.Reply.Wait(ctx)
	return err
}

func (a *Actor) StartStream(ctx context.Context, host string) error {
	req := startStreamReq{Host: host, Reply: actor.NewReply[struct{}]()}
	if err := a.mailbox.Send(ctx, req); err != nil {
		return err
	}
	_, err := req.Reply.Wait(ctx)
	return err
}

func (a *Actor) startStream(ctx context.Context, host string) error {
	c, err := a.clientFor(ctx, host)
	if err != nil {
		return err
	}
	return c.StartStream(ctx)
}

func (a *Actor) EndStream(ctx context.Context, host string) error {
	req := endStreamReq{Host: host, Reply: actor.NewReply[struct{}]()}
	if err := a.mailbox.Send(ctx, req); err != nil {
		return err
	}
	_, err := req.Reply.Wait(ctx)
	return err
}

func (a *Actor) endStream(ctx context.Context, host string) error {
	c, err := a.clientFor(ctx, host)
	if err != nil {
		return err
	}
	return c.StopStream(ctx)
}

func (a *Actor) GetState(ctx context.Context) (map[string]HostState, error) {
	req := getStateReq{Reply: actor.NewReply[map[string]HostState]()}
	if err := a.mailbox.Send(ctx, req); err != nil {
		return nil, err
	}
	return req.Reply.Wait(ctx)
}

// getState walks all configured hosts, attempting a lazy connect to each.
// Disconnected hosts are reported with empty scenes.
func (a *Actor) getState(ctx context.Context) map[string]HostState {
	out := make(map[string]HostState, len(a.settings.Hosts))
	for _, h := range a.settings.Hosts {
		c, err := a.clientFor(ctx, h.Name)
		if err != nil {
			out[h.Name] = HostState{Connected: false, Streaming: false, Scenes: map[string]SceneState{}}
			continue
		}

		streaming, _ := c.GetStreamStatus(ctx)
		scenes, err := c.ListScenes(ctx)
		if err != nil {
			out[h.Name] = HostState{Connected: true, Streaming: streaming, Scenes: map[string]SceneState{}}
			continue
		}

		sceneStates := make(map[string]SceneState, len(scenes))
		for _, sc := range scenes {
			items, err := c.ListSceneItems(ctx, sc.Name)
			if err != nil {
				continue
			}
			sceneStates[sc.Name] = SceneState{IsProgram: sc.IsProgram, Slots: placeholderSlots(items)}
		}
		out[h.Name] = HostState{Connected: true, Streaming: streaming, Scenes: sceneStates}
	}
	return out
}

func (a *Actor) SetStreamCommentators(ctx context.Context, host string, list []Commentator) error {
	req := setCommentatorsReq{Host: host, List: list, Reply: actor.NewReply[struct{}]()}
	if err := a.mailbox.Send(ctx, req); err != nil {
		return err
	}
	_, err := req.Reply.Wait(ctx)
	return err
}

func (a *Actor) setStreamCommentators(ctx context.Context, host string, list []Commentator) error {
	streams, err := a.store.ListStreams(ctx)
	if err != nil {
		return err
	}
	var target *domain.Stream
	for i := range streams {
		if streams[i].HostName == host {
			target = streams[i]
			break
		}
	}
	if target == nil {
		return nil
	}

	names := make([]string, 0, len(list))
	for _, c := range list {
		names = append(names, c.DisplayName)
	}
	target.ActiveCommentators = strings.Join(names, ";")

	if err := a.store.SaveStream(ctx, target); err != nil {
		return err
	}
	return a.updateState(ctx, target.EventID, []streamactor.Modification{{Kind: streamactor.ModCommentary}})
}

// SetCommentatorVolume persists a per-user voice gain consumed by the
// Voice Mixer, stored as a custom field since the data model has no
// dedicated gain table.
func (a *Actor) SetCommentatorVolume(ctx context.Context, discordID string, pct int) error {
	req := setCommentatorVolumeReq{DiscordID: discordID, Pct: pct, Reply: actor.NewReply[struct{}]()}
	if err := a.mailbox.Send(ctx, req); err != nil {
		return err
	}
	_, err := req.Reply.Wait(ctx)
	return err
}
