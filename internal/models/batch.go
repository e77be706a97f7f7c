package models

import "time"

// GradingBatchStatus enumerates possible batch states.
const (
	BatchStatusPending   = "pending"
	BatchStatusRunning   = "running"
	BatchStatusCompleted = "completed"
	BatchStatusFailed    = "failed"
)

// GradingBatch represents one uploaded bundle of notebook submissions and
// the grading run performed over it.
type GradingBatch struct {
	ID              uint         `gorm:"primaryKey" json:"id"`
	Title           string       `gorm:"size:255;not null" json:"title"`
	ArchiveName     string       `gorm:"size:512;not null" json:"archive_name"`
	ArchiveURL      string       `gorm:"size:512" json:"archive_url"`
	Checksum        string       `gorm:"size:128" json:"checksum"`
	Status          string       `gorm:"size:32;not null" json:"status"`
	CriteriaSetID   *uint        `json:"criteria_set_id"`
	SubmissionCount int          `gorm:"default:0" json:"submission_count"`
	GradedCount     int          `gorm:"default:0" json:"graded_count"`
	FailedCount     int          `gorm:"default:0" json:"failed_count"`
	AverageScore    *float64     `json:"average_score"`
	UploadedBy      uint         `gorm:"default:0" json:"uploaded_by"`
	StartedAt       *time.Time   `json:"started_at"`
	CompletedAt     *time.Time   `json:"completed_at"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	CriteriaSet     *CriteriaSet `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"criteria_set,omitempty"`
	Submissions     []Submission `gorm:"foreignKey:BatchID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"submissions,omitempty"`
}

// IsFinished reports whether the batch reached a terminal state.
func (b GradingBatch) IsFinished() bool {
	return b.Status == BatchStatusCompleted || b.Status == BatchStatusFailed
}
