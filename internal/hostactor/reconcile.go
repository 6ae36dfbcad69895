package hostactor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kestrelrun/marathoncast/internal/domain"
	"github.com/kestrelrun/marathoncast/internal/hostactor/engineclient"
	"github.com/kestrelrun/marathoncast/internal/streamactor"
)

const postSettleDelay = 200 * time.Millisecond

func sourceNameFor(participantName string) string {
	return "streamer_" + strings.ToLower(strings.ReplaceAll(participantName, " ", "_"))
}

// updateState is the reconciliation heart of the Host Actor — spec §4.6.
func (a *Actor) updateState(ctx context.Context, eventID int64, mods []streamactor.Modification) error {
	stream, err := a.store.GetStream(ctx, eventID)
	if err != nil {
		return err
	}
	event, err := a.store.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}

	client, err := a.clientFor(ctx, stream.HostName)
	if err != nil {
		return err
	}

	scenes, err := client.ListScenes(ctx)
	if err != nil {
		return fmt.Errorf("list scenes: %w", err)
	}

	chosen, err := a.selectLayout(ctx, client, scenes, stream, event)
	if err != nil {
		return err
	}

	items, err := client.ListSceneItems(ctx, chosen)
	if err != nil {
		return fmt.Errorf("list scene items %q: %w", chosen, err)
	}
	placeholders := placeholderSlots(items)
	if len(placeholders) == 0 {
		if grouped, gerr := client.ListSceneItemsInGroup(ctx, chosen); gerr == nil {
			placeholders = placeholderSlots(grouped)
		}
	}

	if streamactor.Contains(mods, streamactor.ModCommentary, 0) && hasSource(items, "commentary") {
		effective := streamactor.EffectiveCommentators(stream.ActiveCommentators, stream.IgnoredCommentators)
		if err := client.SetInputSettings(ctx, "commentary", map[string]any{"text": strings.Join(effective, "\n")}); err != nil {
			a.log.Warn("hostactor: commentary update failed", "event_id", eventID, "err", err)
		}
	}

	slots := make([]int, 0, len(stream.StreamRunners))
	for slot := range stream.StreamRunners {
		slots = append(slots, slot)
	}
	sort.Ints(slots)

	keepSources := make(map[string]struct{}, len(slots))

	for _, slot := range slots {
		runnerID := stream.StreamRunners[slot]
		runner, err := a.store.GetRunner(ctx, runnerID)
		if err != nil {
			a.log.Warn("hostactor: runner lookup failed", "runner_id", runnerID, "err", err)
			continue
		}
		participant, err := a.store.GetParticipant(ctx, runnerID)
		if err != nil {
			a.log.Warn("hostactor: participant lookup failed", "runner_id", runnerID, "err", err)
			continue
		}

		sourceName := sourceNameFor(participant.Name)
		keepSources[sourceName] = struct{}{}

		existing := findSceneItem(items, sourceName)
		created := false
		if existing == nil {
			if runner.CachedPlaylistURL != nil {
				if _, cerr := client.CreateInput(ctx, chosen, sourceName, "vlc_source", vlcSettings(*runner.CachedPlaylistURL)); cerr != nil {
					a.log.Warn("hostactor: create input failed", "source", sourceName, "err", cerr)
				} else {
					created = true
				}
			}
		} else if runner.CachedPlaylistURL != nil {
			if serr := client.SetInputSettings(ctx, sourceName, vlcSettings(*runner.CachedPlaylistURL)); serr != nil {
				a.log.Warn("hostactor: update input failed", "source", sourceName, "err", serr)
			}
			time.Sleep(postSettleDelay)
		}

		isAudible := slot == 0
		if stream.AudibleRunner != nil {
			isAudible = *stream.AudibleRunner == runnerID
		}
		if err := client.SetMuted(ctx, sourceName, !isAudible); err != nil {
			a.log.Warn("hostactor: set muted failed", "source", sourceName, "err", err)
		}
		if isAudible {
			if err := client.SetVolume(ctx, sourceName, float64(runner.VolumePercent)/100.0); err != nil {
				a.log.Warn("hostactor: set volume failed", "source", sourceName, "err", err)
			}
		}

		needsView := streamactor.Contains(mods, streamactor.ModRunnerView, runnerID) ||
			streamactor.Contains(mods, streamactor.ModLayout, 0) || created
		if !needsView {
			continue
		}

		refreshed, rerr := client.ListSceneItems(ctx, chosen)
		if rerr == nil {
			for _, it := range refreshed {
				if it.SourceName == sourceName {
					if err := client.RemoveSceneItem(ctx, chosen, it.ID); err != nil {
						a.log.Warn("hostactor: remove stale view failed", "source", sourceName, "err", err)
					}
				}
			}
		}

		nameSource := fmt.Sprintf("name_%d", slot)
		if hasSource(items, nameSource) {
			if err := client.SetInputSettings(ctx, nameSource, map[string]any{"text": strings.ToUpper(participant.Name)}); err != nil {
				a.log.Warn("hostactor: set name failed", "source", nameSource, "err", err)
			}
		}

		for _, ph := range placeholders[slot] {
			if verr := a.placeStreamerView(ctx, client, chosen, ph); verr != nil {
				return domain.ViewTransformf("%s: %v", ph.SourceName, verr)
			}
		}
	}

	if err := a.cleanupUnreferenced(ctx, client, chosen, keepSources); err != nil {
		a.log.Warn("hostactor: cleanup failed", "event_id", eventID, "err", err)
	}

	time.Sleep(postSettleDelay)
	studio, err := client.GetStudioModeEnabled(ctx)
	if err != nil {
		a.log.Warn("hostactor: studio mode query failed", "err", err)
		return nil
	}
	if studio {
		if err := client.SetCurrentPreviewScene(ctx, chosen); err != nil {
			a.log.Warn("hostactor: set preview scene failed", "err", err)
			return nil
		}
		transition := a.settings.ShortTransition
		if transition != "" {
			if err := client.SetCurrentTransition(ctx, transition); err != nil {
				a.log.Warn("hostactor: set transition failed", "err", err)
			}
		}
		if err := client.TriggerTransition(ctx); err != nil {
			a.log.Warn("hostactor: trigger transition failed", "err", err)
		}
	} else if streamactor.Contains(mods, streamactor.ModLayout, 0) {
		if err := client.SetCurrentProgramScene(ctx, chosen); err != nil {
			a.log.Warn("hostactor: set program scene failed", "err", err)
		}
	}

	return nil
}

func vlcSettings(playlistURL string) map[string]any {
	return map[string]any{
		"playlist": []map[string]any{{"hidden": false, "selected": false, "value": playlistURL}},
	}
}

func findSceneItem(items []engineclient.SceneItem, sourceName string) *engineclient.SceneItem {
	for i := range items {
		if items[i].SourceName == sourceName {
			return &items[i]
		}
	}
	return nil
}

func hasSource(items []engineclient.SceneItem, sourceName string) bool {
	return findSceneItem(items, sourceName) != nil
}

// placeStreamerView duplicates the placeholder's backing scene item,
// enables and raises it, then copies the placeholder's stretch-to-bounds
// transform onto it.
func (a *Actor) placeStreamerView(ctx context.Context, client engineclient.Client, scene string, ph PlaceholderBounds) error {
	newItemID, err := client.DuplicateSceneItem(ctx, scene, ph.ItemID)
	if err != nil {
		return err
	}
	time.Sleep(postSettleDelay)

	if err := client.SetSceneItemEnabled(ctx, scene, newItemID, true); err != nil {
		return err
	}
	if err := client.SetSceneItemIndex(ctx, scene, newItemID, 0); err != nil {
		return err
	}

	transform, err := client.GetTransform(ctx, scene, ph.ItemID)
	if err != nil {
		return err
	}
	transform.BoundsType = "OBS_BOUNDS_STRETCH"
	return client.SetTransform(ctx, scene, newItemID, transform)
}

// cleanupUnreferenced implements spec §4.6 step 6: media inputs not
// referenced by the new roster are either left with scene items removed
// (default), or deleted outright when keep_unused_streams is false.
func (a *Actor) cleanupUnreferenced(ctx context.Context, client engineclient.Client, scene string, keep map[string]struct{}) error {
	vlc, err := client.ListInputsByKind(ctx, "vlc_source")
	if err != nil {
		return err
	}

	items, err := client.ListSceneItems(ctx, scene)
	if err != nil {
		return err
	}

	for _, name := range vlc {
		if !strings.HasPrefix(name, "streamer_") {
			continue
		}
		if _, ok := keep[name]; ok {
			continue
		}
		for _, it := range items {
			if it.SourceName == name {
				client.RemoveSceneItem(ctx, scene, it.ID)
			}
		}
		if !a.settings.KeepUnusedStreams {
			client.RemoveInput(ctx, name)
		}
	}
	return nil
}

// selectLayout implements the priority order from spec §4.6 step 3.
func (a *Actor) selectLayout(ctx context.Context, client engineclient.Client, scenes []engineclient.Scene, stream *domain.Stream, event *domain.Event) (string, error) {
	rosterSize := len(stream.StreamRunners)

	byName := make(map[string]bool, len(scenes))
	for _, s := range scenes {
		byName[s.Name] = true
	}

	if stream.RequestedLayout != nil && byName[*stream.RequestedLayout] {
		return *stream.RequestedLayout, nil
	}

	cardinality := func(scene string) int {
		items, err := client.ListSceneItems(ctx, scene)
		if err != nil {
			return -1
		}
		return len(placeholderSlots(items))
	}

	for _, name := range event.PreferredLayouts {
		if byName[name] && cardinality(name) == rosterSize {
			return name, nil
		}
	}

	for _, s := range scenes {
		if cardinality(s.Name) == rosterSize {
			return s.Name, nil
		}
	}

	return "", domain.ErrUnknownLayout
}
