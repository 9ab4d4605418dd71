package types

// Channel is a nudge delivery surface. Each channel carries independent
// budgets and DND rules.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelPush  Channel = "push"
)

func (c Channel) Valid() bool {
	return c == ChannelInApp || c == ChannelPush
}

// Scope is a budget accounting window.
type Scope string

const (
	ScopeDay  Scope = "day"
	ScopeWeek Scope = "week"
)

// FrequencyLevel is the user-facing de-escalation ladder. It only ever moves
// downward, and only through explicit "too frequent" feedback.
type FrequencyLevel string

const (
	FrequencyEager    FrequencyLevel = "eager"
	FrequencyModerate FrequencyLevel = "moderate"
	FrequencySparing  FrequencyLevel = "sparing"
	FrequencySilent   FrequencyLevel = "silent"
)

func (f FrequencyLevel) Valid() bool {
	switch f {
	case FrequencyEager, FrequencyModerate, FrequencySparing, FrequencySilent:
		return true
	}
	return false
}

// Downgrade returns the next level down the ladder. Silent stays silent.
func (f FrequencyLevel) Downgrade() FrequencyLevel {
	switch f {
	case FrequencyEager:
		return FrequencyModerate
	case FrequencyModerate:
		return FrequencySparing
	case FrequencySparing:
		return FrequencySilent
	default:
		return FrequencySilent
	}
}

// Trigger ids known to the session tracker. The gate itself accepts any id;
// the catalog of templates behind them lives outside the engine.
const (
	TriggerDailyCheckin       = "daily_checkin"
	TriggerNightlyWrapup      = "nightly_wrapup"
	TriggerOverloadProtection = "overload_protection"
)

// Feedback tags recorded against fired triggers.
const (
	FeedbackTooFrequent = "too_frequent"
	FeedbackHelpful     = "helpful"
	FeedbackDismissed   = "dismissed"
)

// History entry statuses.
const (
	HistoryStatusShown = "shown"
)
