package models

import (
	"time"

	"gorm.io/datatypes"
)

// CriteriaSet is a named, reusable rubric. Criteria holds the serialized
// criterion list exactly as the grading engine consumes it.
type CriteriaSet struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	Criteria    datatypes.JSON `gorm:"type:json;not null" json:"criteria"`
	IsDefault   bool           `gorm:"default:false" json:"is_default"`
	CreatedBy   uint           `gorm:"default:0" json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
