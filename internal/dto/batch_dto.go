package dto

import (
	"time"

	"github.com/noah-isme/nilai-go-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// BatchUploadRequest captures the multipart fields accompanying a bundle
// upload. The archive itself travels as the "archive" file part.
type BatchUploadRequest struct {
	Title         string `form:"title" json:"title" validate:"required,min=3,max=255"`
	CriteriaSetID *uint  `form:"criteria_set_id" json:"criteria_set_id" validate:"omitempty,gt=0"`
}

// BatchListRequest defines filters for listing batches.
type BatchListRequest struct {
	Page     int
	PageSize int
	Status   string
}

// GradeBatchRequest tunes a grading run trigger.
type GradeBatchRequest struct {
	Rerun bool `json:"rerun"`
}

// BatchResponse describes a grading batch for API clients.
type BatchResponse struct {
	ID              uint       `json:"id"`
	Title           string     `json:"title"`
	ArchiveName     string     `json:"archive_name"`
	ArchiveURL      string     `json:"archive_url,omitempty"`
	Checksum        string     `json:"checksum,omitempty"`
	Status          string     `json:"status"`
	CriteriaSetID   *uint      `json:"criteria_set_id,omitempty"`
	CriteriaSetName string     `json:"criteria_set_name,omitempty"`
	SubmissionCount int        `json:"submission_count"`
	GradedCount     int        `json:"graded_count"`
	FailedCount     int        `json:"failed_count"`
	AverageScore    *float64   `json:"average_score,omitempty"`
	UploadedBy      uint       `json:"uploaded_by"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// BatchListResponse wraps a paginated batch listing.
type BatchListResponse struct {
	Items      []BatchResponse `json:"items"`
	Pagination PaginationMeta  `json:"pagination"`
}

// NewBatchResponse converts a model into a DTO.
func NewBatchResponse(model models.GradingBatch) BatchResponse {
	response := BatchResponse{
		ID:              model.ID,
		Title:           model.Title,
		ArchiveName:     model.ArchiveName,
		ArchiveURL:      model.ArchiveURL,
		Checksum:        model.Checksum,
		Status:          model.Status,
		CriteriaSetID:   model.CriteriaSetID,
		SubmissionCount: model.SubmissionCount,
		GradedCount:     model.GradedCount,
		FailedCount:     model.FailedCount,
		AverageScore:    model.AverageScore,
		UploadedBy:      model.UploadedBy,
		StartedAt:       model.StartedAt,
		CompletedAt:     model.CompletedAt,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}

	if model.CriteriaSet != nil {
		response.CriteriaSetName = model.CriteriaSet.Name
	}

	return response
}

// NewBatchResponseSlice converts batch models into DTOs.
func NewBatchResponseSlice(batches []models.GradingBatch) []BatchResponse {
	responses := make([]BatchResponse, 0, len(batches))
	for _, batch := range batches {
		responses = append(responses, NewBatchResponse(batch))
	}

	return responses
}
