// Package domain holds the plain data types shared across the store and
// the actors: participants, runners, events, runs, layouts and streams.
package domain

import "time"

// Participant is a person who can be bound to a Runner or listed on an
// Event roster. Name uniqueness is enforced case-insensitively by the
// store, not here.
type Participant struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Pronouns  *string `json:"pronouns,omitempty"`
	Location  *string `json:"location,omitempty"`
	DiscordID *string `json:"discordId,omitempty"`
	Photo     []byte  `json:"-"`
	IsHost    bool    `json:"isHost"`
}

// Runner extends a Participant with broadcast-relevant state. The primary
// key is the participant's own ID (a strict 1:1 relationship).
type Runner struct {
	ParticipantID     int64             `json:"participantId"`
	StreamHandle      *string           `json:"streamHandle,omitempty"`
	TelemetryHandle   *string           `json:"telemetryHandle,omitempty"`
	CachedPlaylistURL *string           `json:"cachedPlaylistUrl,omitempty"`
	VolumePercent     int               `json:"volumePercent"`
	Nicknames         []string          `json:"nicknames,omitempty"`
	ResolvedURLs      map[string]string `json:"resolvedUrls,omitempty"`
}

// EventResultKind discriminates the shape of EventRunner.Result.
type EventResultKind string

const (
	ResultKindNone   EventResultKind = ""
	ResultKindSingle EventResultKind = "single"
	ResultKindMulti  EventResultKind = "multi"
)

// EventRunner is a roster entry: a runner entered in an event, with an
// optional result. This backs the abstract `runner_state` map in the
// distilled spec.
type EventRunner struct {
	EventID    int64           `json:"eventId"`
	RunnerID   int64           `json:"runnerId"`
	ResultKind EventResultKind `json:"resultKind,omitempty"`
	Result     []byte          `json:"result,omitempty"`
}

// Event is a race or marathon block: a named container for one or more
// runners and, optionally, one Stream.
type Event struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	Tournament        *string    `json:"tournament,omitempty"`
	ExternalRaceID    *string    `json:"externalRaceId,omitempty"`
	TimerStart        *time.Time `json:"timerStart,omitempty"`
	TimerEnd          *time.Time `json:"timerEnd,omitempty"`
	EventStart        *time.Time `json:"eventStart,omitempty"`
	PreferredLayouts  []string   `json:"preferredLayouts,omitempty"`
	IsRelay           bool       `json:"isRelay"`
	IsMarathon        bool       `json:"isMarathon"`
}

// Split is one entry in a Run's split list.
type Split struct {
	Name        string   `json:"name"`
	PBSplitTime *float64 `json:"pbSplitTime,omitempty"`
	SplitTime   *float64 `json:"splitTime,omitempty"`
}

// Run is the latest telemetry snapshot for a runner. It is overwritten
// wholesale on every incoming telemetry push.
type Run struct {
	RunnerID           int64      `json:"runnerId"`
	PB                 *float64   `json:"pb,omitempty"`
	SOB                *float64   `json:"sob,omitempty"`
	BestPossible       *float64   `json:"bestPossible,omitempty"`
	Delta              *float64   `json:"delta,omitempty"`
	StartedAt          *time.Time `json:"startedAt,omitempty"`
	CurrentComparison  string     `json:"currentComparison,omitempty"`
	CurrentSplitName   string     `json:"currentSplitName,omitempty"`
	CurrentSplitIndex  int        `json:"currentSplitIndex"`
	Splits             []Split    `json:"splits,omitempty"`
}

// Layout mirrors advisory metadata about a broadcast-engine scene used as
// a layout.
type Layout struct {
	Name         string `json:"name"`
	RunnerCount  int    `json:"runnerCount"`
	Default      bool   `json:"default"`
}

// Stream is one broadcast instance bound to exactly one Event and at most
// one Host at a time.
type Stream struct {
	EventID             int64           `json:"eventId"`
	HostName            string          `json:"hostName"`
	ActiveCommentators  string          `json:"activeCommentators"`
	IgnoredCommentators string          `json:"ignoredCommentators"`
	RequestedLayout     *string         `json:"requestedLayout,omitempty"`
	AudibleRunner       *int64          `json:"audibleRunner,omitempty"`
	StreamRunners       map[int]int64   `json:"streamRunners"`
}

// CustomField is a process-wide key/value setting consumed by the
// broadcast renderer.
type CustomField struct {
	Key   string  `json:"key"`
	Value *string `json:"value,omitempty"`
}
