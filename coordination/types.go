package coordination

import (
	"time"

	"github.com/patterncore/pattern/id"
)

// PatternKind names one of the coordination patterns a Group may run,
// matching entity.Group.Pattern's string values.
type PatternKind string

const (
	PatternRoundRobin PatternKind = "round_robin"
	PatternVoting     PatternKind = "voting"
	PatternPipeline   PatternKind = "pipeline"
	PatternSupervisor PatternKind = "supervisor"
	PatternSleeptime  PatternKind = "sleeptime"
)

// RoundRobinConfig is entity.Group.PatternConfig decoded for
// PatternRoundRobin.
type RoundRobinConfig struct {
	SkipUnavailable bool `mapstructure:"skip_unavailable"`
}

// RoundRobinState is entity.Group.PatternState decoded for
// PatternRoundRobin.
type RoundRobinState struct {
	CurrentIndex int       `mapstructure:"current_index"`
	LastRotation time.Time `mapstructure:"last_rotation"`
}

// TieBreaker names how Voting resolves a tied tally.
type TieBreaker string

const (
	TieBreakRandom        TieBreaker = "random"
	TieBreakFirstVote     TieBreaker = "first_vote"
	TieBreakSpecificAgent TieBreaker = "specific_agent"
	TieBreakNoDecision    TieBreaker = "no_decision"
)

// VotingRules configures Voting's quorum and conflict resolution.
type VotingRules struct {
	VotingTimeout     time.Duration `mapstructure:"voting_timeout"`
	TieBreaker        TieBreaker    `mapstructure:"tie_breaker"`
	TieBreakerAgentID string        `mapstructure:"tie_breaker_agent_id"` // set when TieBreaker == TieBreakSpecificAgent
	WeightByExpertise bool          `mapstructure:"weight_by_expertise"`

	// AllowBelowQuorumOnTimeout, when set, lets a deadline timeout elect a
	// winner from whatever votes have been cast even if quorum was never
	// reached. When unset, a below-quorum timeout returns NoDecision
	// instead of tallying.
	AllowBelowQuorumOnTimeout bool `mapstructure:"allow_below_quorum_on_timeout"`
}

// VotingConfig is entity.Group.PatternConfig decoded for PatternVoting.
// DefaultOptions seeds every new VotingSession's option set (options
// cannot be supplied with the message that opens a vote); a group with
// no DefaultOptions falls back to a plain approve/reject pair.
type VotingConfig struct {
	Quorum         int          `mapstructure:"quorum"`
	Rules          VotingRules  `mapstructure:"voting_rules"`
	DefaultOptions []VoteOption `mapstructure:"default_options"`
}

// VoteOption is one candidate answer in a VotingProposal.
type VoteOption struct {
	ID          string `mapstructure:"id"`
	Description string `mapstructure:"description"`
}

// VotingProposal is what a voting session asks members to decide.
type VotingProposal struct {
	Content string       `mapstructure:"content"`
	Options []VoteOption `mapstructure:"options"`
}

// Vote is one member's cast ballot.
type Vote struct {
	OptionID  string    `mapstructure:"option_id"`
	Weight    float64   `mapstructure:"weight"`
	Reasoning string    `mapstructure:"reasoning"`
	CastAt    time.Time `mapstructure:"cast_at"`
}

// VotingSession is the active round of a Voting pattern.
type VotingSession struct {
	ID        string          `mapstructure:"id"`
	Proposal  VotingProposal  `mapstructure:"proposal"`
	Votes     map[string]Vote `mapstructure:"votes"` // keyed by agent ID string
	StartedAt time.Time       `mapstructure:"started_at"`
	Deadline  time.Time       `mapstructure:"deadline"`
}

// VotingState is entity.Group.PatternState decoded for PatternVoting. A
// nil Session means no vote is in progress.
type VotingState struct {
	Session *VotingSession `mapstructure:"session"`
}

// VotingResult is the tally produced once a VotingSession closes,
// surfaced on the GroupComplete event but not persisted to pattern
// state (a closed session clears state to empty).
type VotingResult struct {
	WinningOption string             `mapstructure:"winning_option"`
	Tally         map[string]float64 `mapstructure:"tally"`
	TieBroken     bool               `mapstructure:"tie_broken"`
	NoDecision    bool               `mapstructure:"no_decision"`
}

// StageFailureMode names what Pipeline does when a stage's agent fails.
type StageFailureMode string

const (
	StageFailSkip     StageFailureMode = "skip"
	StageFailRetry    StageFailureMode = "retry"
	StageFailAbort    StageFailureMode = "abort"
	StageFailFallback StageFailureMode = "fallback"
)

// PipelineStage is one step of a Pipeline's ordered stage list.
type PipelineStage struct {
	Name        string           `mapstructure:"name"`
	AgentIDs    []string         `mapstructure:"agent_ids"`
	Timeout     time.Duration    `mapstructure:"timeout"`
	OnFailure   StageFailureMode `mapstructure:"on_failure"`
	MaxAttempts int              `mapstructure:"max_attempts"` // StageFailRetry
	FallbackID  string           `mapstructure:"fallback_id"`  // StageFailFallback
}

// PipelineConfig is entity.Group.PatternConfig decoded for
// PatternPipeline.
type PipelineConfig struct {
	Stages         []PipelineStage `mapstructure:"stages"`
	ParallelStages bool            `mapstructure:"parallel_stages"`
}

// StageResult records one stage's outcome within a PipelineExecution.
type StageResult struct {
	StageName string        `mapstructure:"stage_name"`
	AgentID   string        `mapstructure:"agent_id"`
	Success   bool          `mapstructure:"success"`
	Duration  time.Duration `mapstructure:"duration"`
	Output    string        `mapstructure:"output"`
}

// PipelineState is entity.Group.PatternState decoded for
// PatternPipeline.
type PipelineState struct {
	CurrentStage int           `mapstructure:"current_stage"`
	Results      []StageResult `mapstructure:"results"`
	StartedAt    time.Time     `mapstructure:"started_at"`
}

// TriggerPriority orders Sleeptime trigger urgency, highest wins.
type TriggerPriority int

const (
	PriorityLow TriggerPriority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// TriggerConditionKind discriminates TriggerCondition's variant fields.
type TriggerConditionKind string

const (
	TriggerTimeElapsed           TriggerConditionKind = "time_elapsed"
	TriggerPatternDetected       TriggerConditionKind = "pattern_detected"
	TriggerThresholdExceeded     TriggerConditionKind = "threshold_exceeded"
	TriggerConstellationActivity TriggerConditionKind = "constellation_activity"
	TriggerCustom                TriggerConditionKind = "custom"
)

// TriggerCondition is one Sleeptime trigger's activation rule.
type TriggerCondition struct {
	Kind             TriggerConditionKind `mapstructure:"kind"`
	Duration         time.Duration        `mapstructure:"duration"`          // TriggerTimeElapsed
	PatternName      string               `mapstructure:"pattern_name"`      // TriggerPatternDetected
	Metric           string               `mapstructure:"metric"`            // TriggerThresholdExceeded
	Threshold        float64              `mapstructure:"threshold"`         // TriggerThresholdExceeded
	MessageThreshold int                  `mapstructure:"message_threshold"` // TriggerConstellationActivity
	TimeThreshold    time.Duration        `mapstructure:"time_threshold"`    // TriggerConstellationActivity
	Evaluator        string               `mapstructure:"evaluator"`         // TriggerCustom
}

// SleeptimeTrigger names and prioritizes one TriggerCondition.
type SleeptimeTrigger struct {
	Name      string           `mapstructure:"name"`
	Condition TriggerCondition `mapstructure:"condition"`
	Priority  TriggerPriority  `mapstructure:"priority"`
}

// SleeptimeConfig is entity.Group.PatternConfig decoded for
// PatternSleeptime.
type SleeptimeConfig struct {
	CheckInterval       time.Duration      `mapstructure:"check_interval"`
	CheckCron           string             `mapstructure:"check_cron"` // optional, overrides CheckInterval
	Triggers            []SleeptimeTrigger `mapstructure:"triggers"`
	InterventionAgentID string             `mapstructure:"intervention_agent_id"`
}

// TriggerEvent records one fired trigger for Sleeptime's history.
type TriggerEvent struct {
	TriggerName           string    `mapstructure:"trigger_name"`
	FiredAt               time.Time `mapstructure:"fired_at"`
	InterventionActivated bool      `mapstructure:"intervention_activated"`
}

// SleeptimeState is entity.Group.PatternState decoded for
// PatternSleeptime.
type SleeptimeState struct {
	LastCheck      time.Time            `mapstructure:"last_check"`
	TriggerHistory []TriggerEvent       `mapstructure:"trigger_history"`
	LastActiveBy   map[string]time.Time `mapstructure:"last_active_by"` // agent ID -> last routed-to time
}

// SupervisorConfig is entity.Group.PatternConfig decoded for
// PatternSupervisor. SelectorName mirrors the original's named-selector-
// strategy shape, but this module ships only the built-in supervisor
// selector. Domain, when set, picks the decision-making member by
// Role == Specialist{Domain} instead of by Role == Supervisor.
type SupervisorConfig struct {
	SelectorName string `mapstructure:"selector_name"`
	Domain       string `mapstructure:"domain"`
}

// SupervisorState is entity.Group.PatternState decoded for
// PatternSupervisor.
type SupervisorState struct {
	RecentSelections []SelectionRecord `mapstructure:"recent_selections"`
}

// SelectionRecord is one past routing decision, kept for load-balancing
// and last-active bookkeeping.
type SelectionRecord struct {
	AgentID    string    `mapstructure:"agent_id"`
	SelectedAt time.Time `mapstructure:"selected_at"`
}

// idString is a small helper so pattern code can compare an id.AgentID
// against the plain strings persisted in PatternConfig/PatternState.
func idString(a id.AgentID) string { return a.String() }
