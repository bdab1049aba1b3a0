package model

import "time"

// StageStatus represents the current state of an intake stage.
type StageStatus string

const (
	StageStatusPending    StageStatus = "pending"
	StageStatusInProgress StageStatus = "in_progress"
	StageStatusSuccess    StageStatus = "success"
	StageStatusError      StageStatus = "error"
)

// Stage names reported by the intake workflow, in execution order.
const (
	StageUpload           = "upload"
	StageParseApplication = "parse_application"
	StageParseStatements  = "parse_statements"
	StageReconcile        = "reconcile"
	StagePersist          = "persist"
)

// IntakeStages lists the stage names in execution order.
var IntakeStages = []string{
	StageUpload,
	StageParseApplication,
	StageParseStatements,
	StageReconcile,
	StagePersist,
}

// StageResult holds the outcome of one intake stage.
type StageResult struct {
	Name       string         `json:"name"`
	Status     StageStatus    `json:"status"`
	Detail     string         `json:"detail,omitempty"`
	Duration   int64          `json:"duration_ms"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	TokenUsage TokenUsage     `json:"token_usage"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// TokenUsage tracks LLM token consumption.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Add accumulates other into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}
