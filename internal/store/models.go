// SPDX-License-Identifier: MIT

package store

import "time"

// TeamConfig is a user-configured team channel.
type TeamConfig struct {
	ID         int64
	Provider   string
	TeamID     string
	League     string
	ChannelID  string
	Name       string
	TemplateID *int64
	Enabled    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FillerPeriod is one pregame or postgame window relative to the event start.
type FillerPeriod struct {
	StartHoursBefore float64 `json:"start_hours_before"`
	EndHoursBefore   float64 `json:"end_hours_before"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
}

// DescriptionOption is one conditional description candidate. Priorities
// 1-99 are conditional; 100 marks an unconditional fallback.
type DescriptionOption struct {
	Priority  int    `json:"priority"`
	Condition string `json:"condition"`
	Body      string `json:"body"`
}

// Template holds the rendering patterns for team and event channels.
// Pattern fields may reference template variables with {name} syntax.
type Template struct {
	ID          int64
	Name        string
	Title       string
	Subtitle    string
	Description string
	ChannelName string

	DescriptionOptions []DescriptionOption
	PregamePeriods     []FillerPeriod
	PostgamePeriods    []FillerPeriod

	NoGameTitle       string
	NoGameDescription string
	IdleTitle         string
	IdleDescription   string

	PregameMinutes int
	DurationHours  int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Create-timing policy values.
const (
	CreateDayOf       = "day_of"
	CreateDayBefore   = "day_before"
	Create2DaysBefore = "2_days_before"
	CreateWeekBefore  = "week_before"
)

// Delete-timing policy values.
const (
	DeleteStreamRemoved = "stream_removed"
	DeleteEndOfDay      = "end_of_day"
	DeleteEndOfNextDay  = "end_of_next_day"
	DeleteManual        = "manual"
)

// EventEPGGroup configures event matching and channel management for one
// host stream group. ChannelStart nil means matches are recorded but no
// host channels are created.
type EventEPGGroup struct {
	ID                int64
	Name              string
	HostGroupID       string
	Leagues           []string
	LeagueWhitelist   []string
	ExceptionKeywords []string
	RefreshMinutes    int
	ChannelStart      *int
	CreateTiming      string
	DeleteTiming      string
	Timezone          string
	EPGSourceID       string
	TemplateID        *int64
	Enabled           bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ManagedChannel is a host channel Teamarr created and owns.
type ManagedChannel struct {
	ID            int64
	GroupID       int64
	HostChannelID string
	HostStreamID  string
	ChannelNumber int
	EventID       string
	League        string
	ChannelName   string
	EventStart    time.Time

	ScheduledDeleteAt *time.Time
	DeletedAt         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CacheEntry is one stream-to-event binding in the stream-match cache.
// EventData is the full normalized event snapshot as JSON.
type CacheEntry struct {
	Fingerprint        string
	GroupID            int64
	StreamID           string
	StreamName         string
	EventID            string
	League             string
	EventData          []byte
	LastSeenGeneration int64
	RefreshFailures    int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Run status values.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// RunCounts are the completion statistics of a generation run.
type RunCounts struct {
	StreamsFetched   int
	StreamsMatched   int
	StreamsUnmatched int
	StreamsCached    int

	ProgrammesTotal    int
	ProgrammesEvents   int
	ProgrammesPregame  int
	ProgrammesPostgame int
	ProgrammesIdle     int
}

// ProcessingRun is one row in the append-only run ledger.
type ProcessingRun struct {
	ID         int64
	RunType    string
	GroupID    *int64
	Status     string
	Generation int64
	StartedAt  time.Time
	CompletedAt *time.Time

	Counts       RunCounts
	ErrorSummary string
	ExtraMetrics []byte
}

// MatchedStream records one stream successfully bound to an event in a run.
type MatchedStream struct {
	ID         int64
	RunID      int64
	GroupID    int64
	StreamID   string
	StreamName string
	EventID    string
	League     string
	Score      int
	Algorithm  string
	Cached     bool
	CreatedAt  time.Time
}

// FailedMatch records one stream that found no event in a run.
type FailedMatch struct {
	ID         int64
	RunID      int64
	GroupID    int64
	StreamID   string
	StreamName string
	Reason     string
	CreatedAt  time.Time
}
