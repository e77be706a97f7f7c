package dto

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/nilai-go-api/internal/grading"
	"github.com/noah-isme/nilai-go-api/internal/models"
)

// SubmissionFilter describes query string filters for listing submissions.
type SubmissionFilter struct {
	BatchID *uint   `query:"batch_id"`
	Status  *string `query:"status" validate:"omitempty,oneof=received ungradable graded"`
}

// GradeUploadRequest carries the fields accompanying a single-notebook
// synchronous grading upload.
type GradeUploadRequest struct {
	CriteriaSetID *uint `form:"criteria_set_id" json:"criteria_set_id" validate:"omitempty,gt=0"`
}

// ScoreOverrideRequest adjusts one criterion score on a graded submission.
type ScoreOverrideRequest struct {
	CriterionName string   `json:"criterion_name" validate:"required,min=1,max=255"`
	Points        *float64 `json:"points" validate:"required,gte=0"`
	Reason        string   `json:"reason" validate:"required,min=3,max=2000"`
}

// GradeRecordResponse serializes a grading outcome for API clients.
type GradeRecordResponse struct {
	TotalPoints  float64                  `json:"total_points"`
	MaxPossible  float64                  `json:"max_possible"`
	Percentage   float64                  `json:"percentage"`
	LetterGrade  string                   `json:"letter_grade"`
	Scores       []grading.CriterionScore `json:"scores"`
	Feedback     string                   `json:"feedback"`
	Strengths    []string                 `json:"strengths"`
	Improvements []string                 `json:"improvements"`
	Overridden   bool                     `json:"overridden"`
	GradedAt     time.Time                `json:"graded_at"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID             uint                 `json:"id"`
	BatchID        uint                 `json:"batch_id"`
	StudentName    string               `json:"student_name"`
	FileName       string               `json:"file_name"`
	RawSize        int64                `json:"raw_size"`
	Status         string               `json:"status"`
	ParseErrorKind string               `json:"parse_error_kind,omitempty"`
	ParseWarnings  []string             `json:"parse_warnings,omitempty"`
	CellCount      int                  `json:"cell_count"`
	Grade          *GradeRecordResponse `json:"grade,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// NewGradeRecordResponse converts a grade record model into a DTO.
func NewGradeRecordResponse(model models.GradeRecord) GradeRecordResponse {
	return GradeRecordResponse{
		TotalPoints:  model.TotalPoints,
		MaxPossible:  model.MaxPossible,
		Percentage:   model.Percentage,
		LetterGrade:  model.LetterGrade,
		Scores:       scoresFromJSON(model.Scores),
		Feedback:     model.Feedback,
		Strengths:    model.StrengthList(),
		Improvements: model.ImprovementList(),
		Overridden:   model.Overridden,
		GradedAt:     model.GradedAt,
	}
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:             model.ID,
		BatchID:        model.BatchID,
		StudentName:    model.StudentName,
		FileName:       model.FileName,
		RawSize:        model.RawSize,
		Status:         model.Status,
		ParseErrorKind: model.ParseErrorKind,
		ParseWarnings:  model.WarningList(),
		CellCount:      model.CellCount,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}

	if model.Grade != nil {
		grade := NewGradeRecordResponse(*model.Grade)
		response.Grade = &grade
	}

	return response
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(submissions []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}

func scoresFromJSON(data datatypes.JSON) []grading.CriterionScore {
	if len(data) == 0 {
		return nil
	}

	var scores []grading.CriterionScore
	if err := json.Unmarshal(data, &scores); err != nil {
		return nil
	}

	return scores
}

// NotebookGradeResponse is the outcome of grading a single uploaded
// notebook synchronously. Nothing is persisted for these requests.
type NotebookGradeResponse struct {
	StudentName  string                   `json:"student_name"`
	FileName     string                   `json:"file_name"`
	TotalPoints  float64                  `json:"total_points"`
	MaxPossible  float64                  `json:"max_possible"`
	Percentage   float64                  `json:"percentage"`
	LetterGrade  string                   `json:"letter_grade"`
	Scores       []grading.CriterionScore `json:"scores"`
	Feedback     string                   `json:"feedback"`
	Strengths    []string                 `json:"strengths"`
	Improvements []string                 `json:"improvements"`
	Warnings     []string                 `json:"warnings,omitempty"`
}

// NewNotebookGradeResponse converts an engine result into a DTO.
func NewNotebookGradeResponse(result grading.Result, warnings []string) NotebookGradeResponse {
	return NotebookGradeResponse{
		StudentName:  result.StudentIdentifier,
		FileName:     result.FileName,
		TotalPoints:  result.TotalPoints,
		MaxPossible:  result.MaxPossible,
		Percentage:   result.Percentage,
		LetterGrade:  result.LetterGrade,
		Scores:       result.Scores,
		Feedback:     result.Feedback,
		Strengths:    result.Strengths,
		Improvements: result.Improvements,
		Warnings:     warnings,
	}
}
