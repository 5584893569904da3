// Package store implements the persistent run record behind the two
// atomic RPCs the orchestrator is allowed to use: SetStepInProgress and
// MergeStep. Application code never read-modify-writes a RunRecord
// directly.
package store

import "time"

// RunStatus is the top-level run status.
type RunStatus string

const (
	RunRunning              RunStatus = "running"
	RunSuccess              RunStatus = "success"
	RunSuccessWithWarning   RunStatus = "success_with_warning"
	RunFailed               RunStatus = "failed"
	RunCancelled            RunStatus = "cancelled"
)

// TriggerType is how a run was started.
type TriggerType string

const (
	TriggerManual TriggerType = "manual"
	TriggerCron   TriggerType = "cron"
)

// StepStatus covers the canonical statuses plus parse_merge's sub-phases.
type StepStatus string

const (
	StepPending             StepStatus = "pending"
	StepInProgress          StepStatus = "in_progress"
	StepRetryDelay          StepStatus = "retry_delay"
	StepCompleted           StepStatus = "completed"
	StepSuccess             StepStatus = "success"
	StepFailed              StepStatus = "failed"
	StepBuildingStockIndex  StepStatus = "building_stock_index"
	StepBuildingPriceIndex  StepStatus = "building_price_index"
	StepPreparingMaterial   StepStatus = "preparing_material"
	StepFinalizing          StepStatus = "finalizing"
)

// TerminalSuccess reports whether s counts toward the completeness gate.
func (s StepStatus) TerminalSuccess() bool {
	return s == StepCompleted || s == StepSuccess
}

// RetryState is the optional retry sub-document on a StepState.
type RetryState struct {
	RetryAttempt   int       `json:"retry_attempt"`
	NextRetryAt    time.Time `json:"next_retry_at"`
	LastHTTPStatus int       `json:"last_http_status"`
	LastError      string    `json:"last_error"`
	Status         string    `json:"status"`
}

// StepState is one entry of RunRecord.Steps. Fields is the step-private,
// orchestrator-opaque payload (cursor_pos, chunk_index, productCount, …);
// it is a plain map so every step can carry its own shape without the
// orchestrator needing to know it.
type StepState struct {
	Status StepStatus             `json:"status"`
	Retry  *RetryState            `json:"retry,omitempty"`
	Fields map[string]interface{} `json:"-"` // flattened into the step doc on the wire
}

// RunRecord is the full persisted run document.
type RunRecord struct {
	RunID            string                `json:"run_id"`
	Status           RunStatus             `json:"status"`
	TriggerType      TriggerType           `json:"trigger_type"`
	StartedAt        time.Time             `json:"started_at"`
	FinishedAt       *time.Time            `json:"finished_at,omitempty"`
	RuntimeMS        int64                 `json:"runtime_ms"`
	Steps            map[string]*StepState `json:"steps"`
	CurrentStep      string                `json:"current_step"`
	Metrics          map[string]int64      `json:"metrics"`
	LocationWarnings map[string]int64      `json:"location_warnings"`
	WarningCount     int                   `json:"warning_count"`
	FileManifest     map[string]string     `json:"file_manifest"`
	CancelRequested  bool                  `json:"cancel_requested"`
	CancelledByUser  bool                  `json:"cancelled_by_user"`
	ErrorMessage     string                `json:"error_message"`
}

// NewRunRecord builds a fresh running run whose current step is firstStep
// (the orchestrator admits runs at import_ftp).
func NewRunRecord(runID string, trigger TriggerType, now time.Time, firstStep string) *RunRecord {
	return &RunRecord{
		RunID:            runID,
		Status:           RunRunning,
		TriggerType:      trigger,
		StartedAt:        now,
		Steps:            map[string]*StepState{firstStep: {Status: StepPending}},
		CurrentStep:      firstStep,
		Metrics:          map[string]int64{},
		LocationWarnings: map[string]int64{},
		FileManifest:     map[string]string{},
	}
}

// EventLevel is the severity of an event log entry.
type EventLevel string

const (
	LevelInfo  EventLevel = "INFO"
	LevelWarn  EventLevel = "WARN"
	LevelError EventLevel = "ERROR"
)

// Event is one append-only structured event.
type Event struct {
	RunID     string                 `json:"run_id"`
	Level     EventLevel             `json:"level"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
