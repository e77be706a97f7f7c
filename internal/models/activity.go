package models

import (
	"time"

	"gorm.io/datatypes"
)

// Activity actions recorded by the grading pipeline.
const (
	ActionBatchUploaded    = "batch_uploaded"
	ActionRunStarted       = "run_started"
	ActionRunCompleted     = "run_completed"
	ActionRunFailed        = "run_failed"
	ActionScoreOverridden  = "score_overridden"
	ActionCriteriaCreated  = "criteria_created"
	ActionCriteriaUpdated  = "criteria_updated"
	ActionCriteriaDeleted  = "criteria_deleted"
	ActionCriteriaImported = "criteria_imported"
	ActionReportExported   = "report_exported"
)

// Entity types referenced by activity entries.
const (
	EntityBatch       = "grading_batch"
	EntitySubmission  = "submission"
	EntityGradeRecord = "grade_record"
	EntityCriteriaSet = "criteria_set"
)

// ActivityLog records one auditable grading event: an upload, a run, a
// manual override, a criteria change, or a report export.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    uint              `gorm:"not null" json:"actor_id"`
	ActorRole  string            `gorm:"size:32;not null" json:"actor_role"`
	Action     string            `gorm:"size:64;not null" json:"action"`
	EntityType string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID   *uint             `json:"entity_id"`
	BatchID    *uint             `gorm:"index" json:"batch_id,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}
