package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// SubmissionStatus enumerates possible submission states.
const (
	SubmissionStatusReceived   = "received"
	SubmissionStatusUngradable = "ungradable"
	SubmissionStatusGraded     = "graded"
)

// ParseErrorKind values stored on ungradable submissions.
const (
	ParseErrorNotJSON          = "not_json"
	ParseErrorMissingCellArray = "missing_cell_array"
)

// Submission is one notebook extracted from a batch upload. RawSource holds
// the zstd-compressed notebook JSON so reruns never need the original zip.
type Submission struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	BatchID        uint           `gorm:"not null;index" json:"batch_id"`
	StudentName    string         `gorm:"size:255;not null" json:"student_name"`
	FileName       string         `gorm:"size:512;not null" json:"file_name"`
	RawSource      []byte         `json:"-"`
	RawSize        int64          `gorm:"default:0" json:"raw_size"`
	Checksum       string         `gorm:"size:128" json:"checksum"`
	Status         string         `gorm:"size:32;not null" json:"status"`
	ParseErrorKind string         `gorm:"size:32" json:"parse_error_kind,omitempty"`
	ParseWarnings  datatypes.JSON `gorm:"type:json" json:"parse_warnings,omitempty"`
	CellCount      int            `gorm:"default:0" json:"cell_count"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Grade          *GradeRecord   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"grade,omitempty"`
}

// IsGradable reports whether the stored notebook parsed well enough to run
// the engine over it.
func (s Submission) IsGradable() bool {
	return s.Status != SubmissionStatusUngradable
}

// WarningList deserializes the stored parse warnings into a Go slice.
func (s Submission) WarningList() []string {
	if len(s.ParseWarnings) == 0 {
		return nil
	}

	var warnings []string
	if err := json.Unmarshal(s.ParseWarnings, &warnings); err != nil {
		return nil
	}

	return warnings
}
