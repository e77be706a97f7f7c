package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// GradeRecord stores one grading outcome for a submission. Scores holds the
// serialized per-criterion breakdown; a rerun replaces the record in place.
type GradeRecord struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	SubmissionID uint           `gorm:"not null;uniqueIndex" json:"submission_id"`
	TotalPoints  float64        `gorm:"not null" json:"total_points"`
	MaxPossible  float64        `gorm:"not null" json:"max_possible"`
	Percentage   float64        `gorm:"not null" json:"percentage"`
	LetterGrade  string         `gorm:"size:4;not null" json:"letter_grade"`
	Scores       datatypes.JSON `gorm:"type:json;not null" json:"scores"`
	Feedback     string         `gorm:"type:text" json:"feedback"`
	Strengths    datatypes.JSON `gorm:"type:json" json:"strengths"`
	Improvements datatypes.JSON `gorm:"type:json" json:"improvements"`
	Overridden   bool           `gorm:"default:false" json:"overridden"`
	GradedAt     time.Time      `gorm:"not null" json:"graded_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// StrengthList deserializes the stored strengths into a Go slice.
func (g GradeRecord) StrengthList() []string {
	return stringListFromJSON(g.Strengths)
}

// ImprovementList deserializes the stored improvement notes into a Go slice.
func (g GradeRecord) ImprovementList() []string {
	return stringListFromJSON(g.Improvements)
}

func stringListFromJSON(data datatypes.JSON) []string {
	if len(data) == 0 {
		return nil
	}

	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}

	return items
}

// GradeAdjustment is the audit trail for manual score overrides.
type GradeAdjustment struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	GradeRecordID  uint      `gorm:"not null;index" json:"grade_record_id"`
	CriterionName  string    `gorm:"size:255;not null" json:"criterion_name"`
	PreviousPoints float64   `gorm:"not null" json:"previous_points"`
	NewPoints      float64   `gorm:"not null" json:"new_points"`
	Reason         string    `gorm:"type:text" json:"reason"`
	AdjustedBy     uint      `gorm:"default:0" json:"adjusted_by"`
	CreatedAt      time.Time `json:"created_at"`
}
