package hostactor

import (
	"regexp"
	"strconv"

	"github.com/kestrelrun/marathoncast/internal/hostactor/engineclient"
)

var placeholderRe = regexp.MustCompile(`^stream_(\d+)_`)

// placeholderSlots groups scene items whose source name matches
// `stream_<slot>_…` by slot.
func placeholderSlots(items []engineclient.SceneItem) map[int][]PlaceholderBounds {
	out := make(map[int][]PlaceholderBounds)
	for _, it := range items {
		m := placeholderRe.FindStringSubmatch(it.SourceName)
		if m == nil {
			continue
		}
		slot, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out[slot] = append(out[slot], PlaceholderBounds{SourceName: it.SourceName, ItemID: it.ID})
	}
	return out
}
