package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/nilai-go-api/internal/models"
)

// GradeSnapshot is the slim projection analytics aggregates over.
type GradeSnapshot struct {
	Percentage  float64
	LetterGrade string
}

// AnalyticsRepository supplies data for the grading analytics summary.
type AnalyticsRepository interface {
	CountBatches(ctx context.Context) (int64, error)
	CountSubmissions(ctx context.Context) (int64, error)
	CountSubmissionsByStatus(ctx context.Context, status string) (int64, error)
	ListGradeSnapshots(ctx context.Context) ([]GradeSnapshot, error)
}

type analyticsRepository struct {
	db *gorm.DB
}

// NewAnalyticsRepository constructs the analytics repository.
func NewAnalyticsRepository(db *gorm.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

func (r *analyticsRepository) CountBatches(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.GradingBatch{}).Count(&count).Error
	return count, err
}

func (r *analyticsRepository) CountSubmissions(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Submission{}).Count(&count).Error
	return count, err
}

func (r *analyticsRepository) CountSubmissionsByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

func (r *analyticsRepository) ListGradeSnapshots(ctx context.Context) ([]GradeSnapshot, error) {
	var snapshots []GradeSnapshot
	err := r.db.WithContext(ctx).
		Model(&models.GradeRecord{}).
		Select("percentage", "letter_grade").
		Find(&snapshots).Error
	if err != nil {
		return nil, err
	}

	return snapshots, nil
}
