package streamactor

import (
	"sort"
	"strings"

	"github.com/kestrelrun/marathoncast/internal/domain"
)

// ModKind enumerates the three logical change kinds the diff algorithm
// can emit.
type ModKind int

const (
	ModRunnerView ModKind = iota
	ModLayout
	ModCommentary
)

func (k ModKind) String() string {
	switch k {
	case ModRunnerView:
		return "RunnerView"
	case ModLayout:
		return "Layout"
	case ModCommentary:
		return "Commentary"
	default:
		return "Unknown"
	}
}

// Modification is one entry of the modification set. RunnerID is only
// meaningful when Kind == ModRunnerView.
type Modification struct {
	Kind     ModKind
	RunnerID int64
}

// EffectiveCommentators returns active minus ignored, order-preserving,
// deduplicated by first occurrence — P4.
func EffectiveCommentators(active, ignored string) []string {
	ignoredSet := splitSemicolon(ignored)
	ignoredLookup := make(map[string]struct{}, len(ignoredSet))
	for _, n := range ignoredSet {
		ignoredLookup[strings.ToLower(n)] = struct{}{}
	}

	seen := make(map[string]struct{})
	var out []string
	for _, n := range splitSemicolon(active) {
		key := strings.ToLower(n)
		if _, skip := ignoredLookup[key]; skip {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	return out
}

func splitSemicolon(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func sameStringSlice(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Diff computes the modification set driving minimal reconciliation
// (spec §4.5). Slots are iterated in ascending numeric order — one of the
// spec's explicit redesigns over enumerating a hash map.
func Diff(old, next *domain.Stream) []Modification {
	var mods []Modification

	slots := make([]int, 0, len(next.StreamRunners))
	for slot := range next.StreamRunners {
		slots = append(slots, slot)
	}
	sort.Ints(slots)

	for _, slot := range slots {
		runnerID := next.StreamRunners[slot]
		if oldRunner, ok := old.StreamRunners[slot]; !ok || oldRunner != runnerID {
			mods = append(mods, Modification{Kind: ModRunnerView, RunnerID: runnerID})
		}
	}

	layoutChanged := len(next.StreamRunners) != len(old.StreamRunners)
	if !layoutChanged {
		oldLayout := ""
		if old.RequestedLayout != nil {
			oldLayout = *old.RequestedLayout
		}
		newLayout := ""
		if next.RequestedLayout != nil {
			newLayout = *next.RequestedLayout
		}
		layoutChanged = oldLayout != newLayout
	}
	if layoutChanged {
		mods = append(mods, Modification{Kind: ModLayout})
	}

	oldEffective := EffectiveCommentators(old.ActiveCommentators, old.IgnoredCommentators)
	newEffective := EffectiveCommentators(next.ActiveCommentators, next.IgnoredCommentators)
	if !sameStringSlice(oldEffective, newEffective) {
		mods = append(mods, Modification{Kind: ModCommentary})
	}

	return mods
}

// Contains reports whether the set includes a modification of kind k
// (and, for ModRunnerView, of the given runner).
func Contains(mods []Modification, k ModKind, runnerID int64) bool {
	for _, m := range mods {
		if m.Kind != k {
			continue
		}
		if k == ModRunnerView && m.RunnerID != runnerID {
			continue
		}
		return true
	}
	return false
}
