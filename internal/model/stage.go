package model

// StageStatus represents the terminal state of one pipeline stage.
type StageStatus string

const (
	StageStatusComplete StageStatus = "complete"
	StageStatusSkipped  StageStatus = "skipped"
	StageStatusFailed   StageStatus = "failed"
)

// Stage names, in pipeline execution order.
const (
	StageNormalize = "normalize"
	StagePostal    = "postal"
	StageDiscover  = "discover"
	StageLineType  = "linetype"
	StageGatekeep  = "gatekeep"
	StageDNC       = "dnc"
	StageAge       = "age"
)

// StageOrder is the fixed execution order of pipeline stages.
var StageOrder = []string{
	StageNormalize,
	StagePostal,
	StageDiscover,
	StageLineType,
	StageGatekeep,
	StageDNC,
	StageAge,
}

// StageOutcome is the tagged result of executing one stage for one lead.
// Exactly one of the three statuses applies: Complete (the stage ran and
// contributed whatever it found), Skipped (a precondition or gate decided
// the stage should not run, Reason says why), or Failed (Error holds the
// message, Retryable says whether the failure was transient).
type StageOutcome struct {
	Stage      string      `json:"stage"`
	Status     StageStatus `json:"status"`
	Reason     string      `json:"reason,omitempty"`
	Error      string      `json:"error,omitempty"`
	Retryable  bool        `json:"retryable,omitempty"`
	DurationMS int64       `json:"duration_ms"`
}

// StageEvent is a typed progress event emitted after every stage execution.
// The batch runner consumes these to aggregate progress uniformly.
type StageEvent struct {
	LeadID  string       `json:"lead_id"`
	Outcome StageOutcome `json:"outcome"`
}

// EventFunc receives stage events. A nil EventFunc disables reporting.
type EventFunc func(StageEvent)
