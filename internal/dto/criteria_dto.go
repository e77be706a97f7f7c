package dto

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/nilai-go-api/internal/grading"
	"github.com/noah-isme/nilai-go-api/internal/models"
)

// CriterionPayload is one rubric entry inside a criteria set payload.
type CriterionPayload struct {
	Name        string   `json:"name" validate:"required,min=1,max=255"`
	MaxPoints   float64  `json:"max_points" validate:"required,gt=0"`
	Description string   `json:"description" validate:"omitempty,max=2000"`
	Rubric      []string `json:"rubric" validate:"omitempty,dive,min=1"`
}

// ToCriterion converts the payload into the engine's criterion shape.
func (p CriterionPayload) ToCriterion() grading.Criterion {
	return grading.Criterion{
		Name:        p.Name,
		MaxPoints:   p.MaxPoints,
		Description: p.Description,
		Rubric:      p.Rubric,
	}
}

// CriteriaSetCreateRequest captures the payload for creating a criteria set.
type CriteriaSetCreateRequest struct {
	Name        string             `json:"name" validate:"required,min=3,max=255"`
	Description string             `json:"description" validate:"omitempty,max=2000"`
	Criteria    []CriterionPayload `json:"criteria" validate:"required,min=1,dive"`
}

// CriteriaSetUpdateRequest captures partial updates for a criteria set.
type CriteriaSetUpdateRequest struct {
	Name        *string            `json:"name" validate:"omitempty,min=3,max=255"`
	Description *string            `json:"description" validate:"omitempty,max=2000"`
	Criteria    []CriterionPayload `json:"criteria" validate:"omitempty,min=1,dive"`
}

// CriteriaSetResponse serializes a criteria set for API clients.
type CriteriaSetResponse struct {
	ID          uint                `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Criteria    []grading.Criterion `json:"criteria"`
	MaxPossible float64             `json:"max_possible"`
	IsDefault   bool                `json:"is_default"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// NewCriteriaSetResponse converts a model into a DTO.
func NewCriteriaSetResponse(model models.CriteriaSet) CriteriaSetResponse {
	criteria := criteriaFromJSON(model.Criteria)

	var maxPossible float64
	for _, criterion := range criteria {
		maxPossible += criterion.MaxPoints
	}

	return CriteriaSetResponse{
		ID:          model.ID,
		Name:        model.Name,
		Description: model.Description,
		Criteria:    criteria,
		MaxPossible: maxPossible,
		IsDefault:   model.IsDefault,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// NewCriteriaSetResponseSlice converts criteria set models into DTOs.
func NewCriteriaSetResponseSlice(sets []models.CriteriaSet) []CriteriaSetResponse {
	responses := make([]CriteriaSetResponse, 0, len(sets))
	for _, set := range sets {
		responses = append(responses, NewCriteriaSetResponse(set))
	}

	return responses
}

func criteriaFromJSON(data datatypes.JSON) []grading.Criterion {
	if len(data) == 0 {
		return nil
	}

	var criteria []grading.Criterion
	if err := json.Unmarshal(data, &criteria); err != nil {
		return nil
	}

	return criteria
}
