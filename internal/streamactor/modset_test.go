package streamactor

import (
	"testing"

	"github.com/kestrelrun/marathoncast/internal/domain"
	"github.com/stretchr/testify/assert"
)

func strp(s string) *string { return &s }

func TestDiffScenario1RosterAndLayout(t *testing.T) {
	old := &domain.Stream{StreamRunners: map[int]int64{}}
	next := &domain.Stream{
		StreamRunners:   map[int]int64{1: 100, 2: 200}, // Joe=100, Will=200
		RequestedLayout: strp("two_up"),
	}

	mods := Diff(old, next)

	assert.True(t, Contains(mods, ModRunnerView, 100))
	assert.True(t, Contains(mods, ModRunnerView, 200))
	assert.True(t, Contains(mods, ModLayout, 0))
	assert.False(t, Contains(mods, ModCommentary, 0))
}

func TestDiffScenario2Swap(t *testing.T) {
	old := &domain.Stream{
		StreamRunners:   map[int]int64{1: 100, 2: 200},
		RequestedLayout: strp("two_up"),
	}
	next := &domain.Stream{
		StreamRunners:   map[int]int64{1: 200, 2: 100},
		RequestedLayout: strp("two_up"),
	}

	mods := Diff(old, next)

	assert.True(t, Contains(mods, ModRunnerView, 100))
	assert.True(t, Contains(mods, ModRunnerView, 200))
	assert.False(t, Contains(mods, ModLayout, 0))
}

func TestDiffScenario3Commentary(t *testing.T) {
	old := &domain.Stream{
		StreamRunners:      map[int]int64{1: 100, 2: 200},
		ActiveCommentators: "alice;bob;bot",
	}
	next := &domain.Stream{
		StreamRunners:       map[int]int64{1: 100, 2: 200},
		ActiveCommentators:  "alice;bob;bot",
		IgnoredCommentators: "bot",
	}

	mods := Diff(old, next)

	assert.True(t, Contains(mods, ModCommentary, 0))
	assert.False(t, Contains(mods, ModRunnerView, 100))
	assert.False(t, Contains(mods, ModLayout, 0))

	effective := EffectiveCommentators(next.ActiveCommentators, next.IgnoredCommentators)
	assert.Equal(t, []string{"alice", "bob"}, effective)
}

func TestEffectiveCommentatorsDedupesByFirstOccurrence(t *testing.T) {
	got := EffectiveCommentators("alice;Alice;bob", "")
	assert.Equal(t, []string{"alice", "bob"}, got)
}
